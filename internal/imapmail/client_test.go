package imapmail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/frd21313123123/auto-reg/pkg/types"
)

func TestNormalizeFolders(t *testing.T) {
	tests := []struct {
		name    string
		folders []string
		want    []string
	}{
		{
			name:    "inbox moved to front",
			folders: []string{"Sent", "Drafts", "INBOX"},
			want:    []string{"INBOX", "Sent", "Drafts"},
		},
		{
			name:    "inbox case-insensitive",
			folders: []string{"Trash", "Inbox"},
			want:    []string{"INBOX", "Trash"},
		},
		{
			name:    "missing inbox prepended",
			folders: []string{"Archive"},
			want:    []string{"INBOX", "Archive"},
		},
		{
			name:    "empty listing",
			folders: nil,
			want:    []string{"INBOX"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFolders(tt.folders))
		})
	}
}

func TestFetchWindow(t *testing.T) {
	tests := []struct {
		name  string
		total uint32
		limit int
		want  uint32
	}{
		{"mailbox smaller than limit", 10, 50, 1},
		{"mailbox equal to limit", 50, 50, 1},
		{"mailbox larger than limit", 120, 50, 71},
		{"limit of one", 7, 1, 7},
		{"no limit fetches everything", 120, 0, 1},
		{"negative limit fetches everything", 120, -3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fetchWindow(tt.total, tt.limit))
		})
	}
}

func TestNewestFirst(t *testing.T) {
	msgs := []types.Message{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}
	newestFirst(msgs)

	got := make([]string, len(msgs))
	for i, m := range msgs {
		got[i] = m.ID
	}
	assert.Equal(t, []string{"4", "3", "2", "1"}, got)

	var empty []types.Message
	newestFirst(empty)
	assert.Empty(t, empty)

	one := []types.Message{{ID: "9"}}
	newestFirst(one)
	assert.Equal(t, "9", one[0].ID)
}

func TestExtractBodyPrefersPlainText(t *testing.T) {
	raw := strings.Join([]string{
		"From: noreply@tm.openai.com",
		"To: user@example.com",
		"Subject: Access deactivated",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="frontier"`,
		"",
		"--frontier",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Your access has been deactivated.",
		"--frontier",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Your access has been <b>deactivated</b>.</p>",
		"--frontier--",
		"",
	}, "\r\n")

	got := extractBody([]byte(raw))
	assert.Contains(t, got, "Your access has been deactivated.")
	assert.NotContains(t, got, "<p>")
}

func TestExtractBodyFallsBackToHTML(t *testing.T) {
	raw := strings.Join([]string{
		"From: svc@example.com",
		"Subject: hello",
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Your code is 482913</p>",
		"",
	}, "\r\n")

	got := extractBody([]byte(raw))
	assert.Contains(t, got, "482913")
}

func TestExtractBodyRawFallback(t *testing.T) {
	// Not a parseable MIME message at all.
	got := extractBody([]byte("just some raw bytes"))
	assert.NotEmpty(t, got)
}

func TestNewClientDoesNotDial(t *testing.T) {
	c := NewClient("imap.example.com", 993, 0, nil)
	assert.Equal(t, "imap.example.com", c.Host())

	// Logout on a never-connected client is a no-op.
	c.Logout()
}
