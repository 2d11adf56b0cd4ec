// Package classify holds the ban-signature rule and small text extraction
// helpers shared by both protocol adapters.
package classify

import (
	"regexp"
	"strings"
)

// Default rule: the vendor's notification sender plus the subject wording
// of its deactivation notices. The keyword list is policy, kept exactly as
// observed in real notices rather than widened.
var (
	defaultSenderMarker    = "openai"
	defaultSubjectKeywords = []string{"access deactivated", "deactivated"}
)

// Classifier flags suspension notices by (sender, subject). Total and
// case-insensitive: any input yields a verdict, never an error.
type Classifier struct {
	senderMarker    string
	subjectKeywords []string
}

// NewClassifier builds a classifier with a custom rule.
func NewClassifier(senderMarker string, subjectKeywords []string) *Classifier {
	return &Classifier{
		senderMarker:    strings.ToLower(senderMarker),
		subjectKeywords: lowerAll(subjectKeywords),
	}
}

// NewDefault returns the classifier for the watched vendor.
func NewDefault() *Classifier {
	return NewClassifier(defaultSenderMarker, defaultSubjectKeywords)
}

// Classify returns true only when the sender carries the vendor marker AND
// the subject contains one of the suspension keywords. The sender check
// dominates: keyword matches from unrelated senders are ignored.
func (c *Classifier) Classify(sender, subject string) bool {
	sender = strings.ToLower(sender)
	if !strings.Contains(sender, c.senderMarker) {
		return false
	}

	subject = strings.ToLower(subject)
	for _, kw := range c.subjectKeywords {
		if strings.Contains(subject, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

// ExtractCode returns the first run of exactly six consecutive digits in
// text, or "" when none exists. Verification mails embed such codes in
// surrounding prose.
func ExtractCode(text string) string {
	if m := codePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
