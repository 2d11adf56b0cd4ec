// Package imapmail is the fallback mailbox-protocol adapter: raw IMAP over
// TLS against whichever host the connection manager settles on.
package imapmail

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/sirupsen/logrus"

	"github.com/frd21313123123/auto-reg/pkg/types"
)

// DefaultFolder is the folder every listing starts from.
const DefaultFolder = "INBOX"

// Client wraps an IMAP connection to a single host.
type Client struct {
	host    string
	port    int
	timeout time.Duration
	logger  *logrus.Logger
	client  *client.Client
}

// NewClient creates an IMAP client (does not connect immediately)
func NewClient(host string, port int, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		host:    host,
		port:    port,
		timeout: timeout,
		logger:  logger,
	}
}

// Host returns the host this client dials.
func (c *Client) Host() string {
	return c.host
}

// Login dials the host and authenticates. A non-nil error means the host
// could not be reached; (false, nil) means the host was reached and
// rejected the credentials. Callers rely on that distinction to pick the
// right fallback rule.
func (c *Client) Login(email, password string) (bool, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	dialer := &net.Dialer{Timeout: c.timeout}

	cl, err := client.DialWithDialerTLS(dialer, addr, &tls.Config{
		ServerName: c.host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return false, fmt.Errorf("failed to connect to IMAP host %s: %w", c.host, err)
	}
	cl.Timeout = c.timeout

	if err := cl.Login(email, password); err != nil {
		c.logger.WithError(err).WithField("host", c.host).Debug("IMAP login rejected")
		cl.Logout() //nolint:errcheck
		return false, nil
	}

	c.client = cl
	c.logger.WithFields(logrus.Fields{"host": c.host, "email": email}).Info("Connected to IMAP server")
	return true, nil
}

// Logout closes the connection. Safe to call repeatedly or on a client
// that never logged in.
func (c *Client) Logout() {
	if c.client == nil {
		return
	}
	if err := c.client.Logout(); err != nil {
		c.logger.WithError(err).Debug("IMAP logout failed")
	}
	c.client = nil
}

// ListFolders lists all mailboxes with the default folder always first.
func (c *Client) ListFolders() ([]string, error) {
	if c.client == nil {
		return nil, fmt.Errorf("not logged in")
	}

	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)

	go func() {
		done <- c.client.List("", "*", mailboxes)
	}()

	var folders []string
	for m := range mailboxes {
		folders = append(folders, m.Name)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	return NormalizeFolders(folders), nil
}

// SelectFolder selects the named folder, degrading to the default folder
// when that fails rather than aborting the whole fetch.
func (c *Client) SelectFolder(name string) (*imap.MailboxStatus, error) {
	if c.client == nil {
		return nil, fmt.Errorf("not logged in")
	}

	mbox, err := c.client.Select(name, true)
	if err == nil {
		return mbox, nil
	}
	if name == DefaultFolder {
		return nil, fmt.Errorf("failed to select folder %s: %w", name, err)
	}

	c.logger.WithError(err).WithField("folder", name).Debug("Folder select failed, retrying default")
	mbox, err = c.client.Select(DefaultFolder, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select folder %s: %w", DefaultFolder, err)
	}
	return mbox, nil
}

// ListMessageHeaders fetches envelope data only for the most recent
// messages in the folder, newest first, capped at limit.
func (c *Client) ListMessageHeaders(limit int, folder string) ([]types.Message, error) {
	if folder == "" {
		folder = DefaultFolder
	}
	mbox, err := c.SelectFolder(folder)
	if err != nil {
		return nil, err
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(fetchWindow(mbox.Messages, limit), mbox.Messages)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- c.client.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope}, messages)
	}()

	var result []types.Message
	for msg := range messages {
		result = append(result, parseEnvelope(msg, folder))
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch headers: %w", err)
	}

	newestFirst(result)
	return result, nil
}

// fetchWindow returns the first sequence number of the newest limit
// messages in a mailbox holding total messages. A limit of zero or less
// means the whole mailbox.
func fetchWindow(total uint32, limit int) uint32 {
	if limit > 0 && total > uint32(limit) {
		return total - uint32(limit) + 1
	}
	return 1
}

// newestFirst reverses in place: servers deliver ascending sequence
// numbers, callers want the most recent message at index zero.
func newestFirst(msgs []types.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func parseEnvelope(msg *imap.Message, folder string) types.Message {
	m := types.Message{
		ID:     strconv.FormatUint(uint64(msg.SeqNum), 10),
		Folder: folder,
	}
	if msg.Envelope == nil {
		return m
	}

	m.Subject = DecodeHeader(msg.Envelope.Subject)
	if !msg.Envelope.Date.IsZero() {
		m.CreatedAt = msg.Envelope.Date.Format(time.RFC3339)
	}
	if len(msg.Envelope.From) > 0 {
		m.Sender = types.BareAddress(msg.Envelope.From[0].Address())
	}
	return m
}

// ReadMessageBody fetches the full message and extracts its text: prefer
// the plain-text MIME part, fall back to HTML, then to a best-effort
// decode of the raw bytes.
func (c *Client) ReadMessageBody(id string, folder string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("not logged in")
	}
	if folder == "" {
		folder = DefaultFolder
	}
	if _, err := c.SelectFolder(folder); err != nil {
		return "", err
	}

	seq, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return "", fmt.Errorf("invalid message id %q: %w", id, err)
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(seq))

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.client.Fetch(seqSet, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var raw []byte
	for msg := range messages {
		for _, literal := range msg.Body {
			raw = readLiteral(literal)
			if len(raw) > 0 {
				break
			}
		}
	}

	if err := <-done; err != nil {
		return "", fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("empty response for message %s", id)
	}

	return extractBody(raw), nil
}

// extractBody turns a raw RFC822 message into displayable text.
func extractBody(raw []byte) string {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err == nil {
		if env.Text != "" {
			return env.Text
		}
		if env.HTML != "" {
			return env.HTML
		}
	}
	body := DecodeBody(raw)
	if body == "" {
		return "No text content found."
	}
	return body
}

func readLiteral(literal imap.Literal) []byte {
	if literal == nil {
		return nil
	}
	data, err := io.ReadAll(literal)
	if err != nil {
		return data
	}
	return data
}

// NormalizeFolders moves the default folder to the front of the list,
// regardless of the order the server reported. A listing that somehow
// lacks the default folder gets it prepended.
func NormalizeFolders(folders []string) []string {
	out := make([]string, 0, len(folders)+1)
	out = append(out, DefaultFolder)
	for _, f := range folders {
		if !strings.EqualFold(f, DefaultFolder) {
			out = append(out, f)
		}
	}
	return out
}
