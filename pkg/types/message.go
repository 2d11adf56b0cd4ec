package types

import "strings"

// Message is a protocol-independent view of a mailbox message header.
// Both the REST adapter and the IMAP adapter normalize into this shape.
type Message struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	CreatedAt string `json:"created_at"`
	Folder    string `json:"folder"`
}

// MessageBody is a fully fetched message.
type MessageBody struct {
	ID            string `json:"id"`
	Sender        string `json:"sender"`
	Subject       string `json:"subject"`
	Text          string `json:"text"`
	HTML          string `json:"html,omitempty"`
	ExtractedCode string `json:"extracted_code,omitempty"`
}

// BareAddress strips an angle-bracket display name from an address header
// value, returning just the address ("Foo Bar <foo@bar.com>" -> "foo@bar.com").
func BareAddress(addr string) string {
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		if j := strings.Index(addr[i:], ">"); j > 0 {
			return strings.TrimSpace(addr[i+1 : i+j])
		}
	}
	return strings.TrimSpace(addr)
}
