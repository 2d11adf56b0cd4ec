// Package mailtm is the client for the token-authenticated REST mail API.
package mailtm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/frd21313123123/auto-reg/internal/classify"
	"github.com/frd21313123123/auto-reg/internal/httpx"
	"github.com/frd21313123123/auto-reg/pkg/types"
)

var (
	// ErrAuth means the server was reached and rejected the credentials.
	// Never returned for transport failures, which stay ordinary errors.
	ErrAuth = errors.New("mailtm: invalid credentials")

	// ErrTokenExpired means a previously issued bearer token was rejected.
	ErrTokenExpired = errors.New("mailtm: token expired")
)

// Client talks to a single REST mail API endpoint. Stateless beyond the
// bearer token its caller holds.
type Client struct {
	baseURL string
	http    *httpx.Client
	logger  *logrus.Logger
}

// NewClient creates a REST mail client on top of a resilient HTTP client.
func NewClient(baseURL string, httpClient *httpx.Client, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger,
	}
}

// ResetSession rebuilds the underlying HTTP transport.
func (c *Client) ResetSession() {
	c.http.ResetSession()
}

type tokenRequest struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Authenticate exchanges credentials for a bearer token.
// 200 -> token, 401 -> ErrAuth, anything else -> network-class error.
func (c *Client) Authenticate(ctx context.Context, email, password string) (string, error) {
	payload, err := json.Marshal(tokenRequest{Address: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", ErrAuth
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("token exchange returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("token response contained no token")
	}

	c.logger.WithField("email", email).Debug("Authenticated against REST mail API")
	return tr.Token, nil
}

type wireAddress struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type wireMessage struct {
	ID        string      `json:"id"`
	From      wireAddress `json:"from"`
	Subject   string      `json:"subject"`
	CreatedAt string      `json:"createdAt"`
}

type messageList struct {
	Members []wireMessage `json:"hydra:member"`
}

// ListMessages lists inbox messages for the token's account.
func (c *Client) ListMessages(ctx context.Context, token string) ([]types.Message, error) {
	resp, err := c.get(ctx, "/messages", token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var list messageList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode message list: %w", err)
	}

	messages := make([]types.Message, 0, len(list.Members))
	for _, m := range list.Members {
		messages = append(messages, types.Message{
			ID:        m.ID,
			Sender:    types.BareAddress(m.From.Address),
			Subject:   m.Subject,
			CreatedAt: m.CreatedAt,
			Folder:    "INBOX",
		})
	}
	return messages, nil
}

type wireMessageBody struct {
	ID      string      `json:"id"`
	From    wireAddress `json:"from"`
	Subject string      `json:"subject"`
	Text    string      `json:"text"`
	HTML    []string    `json:"html"`
}

// ReadMessage fetches a single message. Body preference: plain text, then
// HTML, then a placeholder; never silently empty.
func (c *Client) ReadMessage(ctx context.Context, token, id string) (*types.MessageBody, error) {
	resp, err := c.get(ctx, "/messages/"+id, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var wire wireMessageBody
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}

	html := joinNonEmpty(wire.HTML)
	text := wire.Text
	if text == "" {
		text = html
	}
	if text == "" {
		text = "No text content found."
	}

	return &types.MessageBody{
		ID:            wire.ID,
		Sender:        types.BareAddress(wire.From.Address),
		Subject:       wire.Subject,
		Text:          text,
		HTML:          html,
		ExtractedCode: classify.ExtractCode(text),
	}, nil
}

func (c *Client) get(ctx context.Context, path, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrTokenExpired
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func joinNonEmpty(parts []string) string {
	var buf bytes.Buffer
	for _, p := range parts {
		if p == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(p)
	}
	return buf.String()
}
