// Package conn decides, per account, which mail protocol to use and keeps
// the resulting session usable across token expiry and network loss.
package conn

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/frd21313123123/auto-reg/internal/classify"
	"github.com/frd21313123123/auto-reg/internal/imapmail"
	"github.com/frd21313123123/auto-reg/internal/mailtm"
	"github.com/frd21313123123/auto-reg/pkg/types"
)

// Protocol identifies which adapter a state is bound to. Selected once at
// connect time and never re-inspected by string comparison.
type Protocol int

const (
	ProtocolNone Protocol = iota
	ProtocolRest
	ProtocolMailbox
)

func (p Protocol) String() string {
	switch p {
	case ProtocolRest:
		return "rest"
	case ProtocolMailbox:
		return "mailbox"
	default:
		return "none"
	}
}

// OwnerKey scopes a connection state so accounts of different callers
// never collide.
type OwnerKey struct {
	UserID    string
	AccountID string
}

// RestClient is the capability surface of the REST mail adapter.
type RestClient interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
	ListMessages(ctx context.Context, token string) ([]types.Message, error)
	ReadMessage(ctx context.Context, token, id string) (*types.MessageBody, error)
	ResetSession()
}

// MailboxSession is the capability surface of the mailbox-protocol adapter.
type MailboxSession interface {
	Login(email, password string) (bool, error)
	ListFolders() ([]string, error)
	ListMessageHeaders(limit int, folder string) ([]types.Message, error)
	ReadMessageBody(id, folder string) (string, error)
	Logout()
	Host() string
}

// MailboxDialer builds a session for one candidate host.
type MailboxDialer func(host string) MailboxSession

// State is a fully connected per-account session. Exactly one of token or
// session is populated once proto != ProtocolNone. States are replaced
// wholesale on reconnect, never partially mutated.
type State struct {
	owner   OwnerKey
	cred    types.Credential
	proto   Protocol
	token   string
	session MailboxSession
	host    string
}

// Protocol returns the protocol this state is bound to.
func (s *State) Protocol() Protocol { return s.proto }

// Email returns the account address of this state.
func (s *State) Email() string { return s.cred.Email }

// Host returns the mailbox host, if connected over the mailbox protocol.
func (s *State) Host() string { return s.host }

// Options tunes a Manager.
type Options struct {
	DefaultHost  string
	MessageLimit int
}

// Manager runs the connect cascade and dispatches fetches. One Manager per
// worker: it owns its REST transport. The domain and host caches are shared
// across managers and safe for concurrent use.
type Manager struct {
	rest    RestClient
	dial    MailboxDialer
	domains *mailtm.DomainCache
	hosts   *HostCache
	opts    Options
	logger  *logrus.Logger
}

// NewManager wires a connection manager from its collaborators.
func NewManager(rest RestClient, dial MailboxDialer, domains *mailtm.DomainCache, hosts *HostCache, opts Options, logger *logrus.Logger) *Manager {
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = 50
	}
	return &Manager{
		rest:    rest,
		dial:    dial,
		domains: domains,
		hosts:   hosts,
		opts:    opts,
		logger:  logger,
	}
}

// Connect establishes a fresh state for the credential. The REST token
// exchange is always attempted first, even for domains the directory does
// not list, because new domains lag the cached listing. On REST auth
// failure or network error the mailbox cascade runs: last working host for
// the domain, then the default host, then one derived from the domain,
// duplicates skipped. Callers get either a fully connected state or a
// ConnectError, never anything half-initialized.
func (m *Manager) Connect(ctx context.Context, owner OwnerKey, cred types.Credential) (*State, error) {
	cred = types.NewCredential(cred.Email, cred.Password)
	domain := cred.Domain()

	m.domains.Load(ctx, false)

	token, err := m.rest.Authenticate(ctx, cred.Email, cred.Password)
	if err == nil {
		return &State{owner: owner, cred: cred, proto: ProtocolRest, token: token}, nil
	}

	restRejected := errors.Is(err, mailtm.ErrAuth)
	m.logger.WithError(err).WithFields(logrus.Fields{
		"email":       cred.Email,
		"rest_domain": m.domains.Contains(domain),
	}).Debug("REST token exchange failed, trying mailbox protocol")

	credsRejected := restRejected
	var lastErr error

	for _, host := range m.hostCandidates(domain) {
		session := m.dial(host)
		ok, dialErr := session.Login(cred.Email, cred.Password)
		if dialErr != nil {
			// Host unreachable: never treated as a password failure.
			lastErr = dialErr
			m.hosts.Forget(domain, host)
			m.logger.WithError(dialErr).WithField("host", host).Debug("Mailbox host unreachable")
			continue
		}
		if !ok {
			// Reached but rejected. Wrong password on one host does not
			// imply wrong password on another candidate, so keep going.
			credsRejected = true
			continue
		}

		m.hosts.Set(domain, host)
		m.logger.WithFields(logrus.Fields{"email": cred.Email, "host": host}).Info("Connected via mailbox protocol")
		return &State{owner: owner, cred: cred, proto: ProtocolMailbox, session: session, host: host}, nil
	}

	if credsRejected {
		reason := types.ReasonIMAPLoginFailed
		if restRejected {
			reason = types.ReasonWrongCredentials
		}
		return nil, &ConnectError{Kind: KindAuth, Reason: reason}
	}
	return nil, &ConnectError{Kind: KindUnavailable, Reason: types.ReasonIMAPConnectionFailed, Err: lastErr}
}

// hostCandidates returns the ordered cascade for a domain with duplicates
// and empties removed.
func (m *Manager) hostCandidates(domain string) []string {
	raw := []string{
		m.hosts.Get(domain),
		m.opts.DefaultHost,
	}
	if domain != "" {
		raw = append(raw, "imap."+domain)
	}

	seen := make(map[string]struct{}, len(raw))
	candidates := make([]string, 0, len(raw))
	for _, h := range raw {
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		candidates = append(candidates, h)
	}
	return candidates
}

// FetchMessages lists the most recent messages through whichever adapter
// the state is bound to. An expired token or a broken transport triggers
// one transparent full reconnect before the error surfaces.
func (m *Manager) FetchMessages(ctx context.Context, st *State) ([]types.Message, error) {
	msgs, err := m.fetchMessagesOnce(ctx, st)
	if err == nil {
		return msgs, nil
	}
	if rerr := m.recover(ctx, st, err); rerr != nil {
		return nil, rerr
	}
	return m.fetchMessagesOnce(ctx, st)
}

func (m *Manager) fetchMessagesOnce(ctx context.Context, st *State) ([]types.Message, error) {
	switch st.proto {
	case ProtocolRest:
		return m.rest.ListMessages(ctx, st.token)
	case ProtocolMailbox:
		return st.session.ListMessageHeaders(m.opts.MessageLimit, imapmail.DefaultFolder)
	default:
		return nil, fmt.Errorf("not connected")
	}
}

// FetchMessage reads one message body. hint carries the already listed
// sender/subject, which the mailbox protocol cannot cheaply re-fetch.
func (m *Manager) FetchMessage(ctx context.Context, st *State, id string, hint types.Message) (*types.MessageBody, error) {
	body, err := m.fetchMessageOnce(ctx, st, id, hint)
	if err == nil {
		return body, nil
	}
	if rerr := m.recover(ctx, st, err); rerr != nil {
		return nil, rerr
	}
	return m.fetchMessageOnce(ctx, st, id, hint)
}

func (m *Manager) fetchMessageOnce(ctx context.Context, st *State, id string, hint types.Message) (*types.MessageBody, error) {
	switch st.proto {
	case ProtocolRest:
		return m.rest.ReadMessage(ctx, st.token, id)
	case ProtocolMailbox:
		text, err := st.session.ReadMessageBody(id, hint.Folder)
		if err != nil {
			return nil, err
		}
		return &types.MessageBody{
			ID:            id,
			Sender:        hint.Sender,
			Subject:       hint.Subject,
			Text:          text,
			ExtractedCode: classify.ExtractCode(text),
		}, nil
	default:
		return nil, fmt.Errorf("not connected")
	}
}

// recover handles a failed fetch: reset the REST transport if that is the
// active protocol (pooled connections may be dead after a network path
// change), then run one full reconnect and swap the state wholesale. The
// original fetch error surfaces when reconnecting fails too.
func (m *Manager) recover(ctx context.Context, st *State, cause error) error {
	if ctx.Err() != nil {
		return cause
	}

	if st.proto == ProtocolRest && !errors.Is(cause, mailtm.ErrTokenExpired) {
		m.rest.ResetSession()
	}

	m.logger.WithError(cause).WithFields(logrus.Fields{
		"email":    st.cred.Email,
		"protocol": st.proto.String(),
	}).Debug("Fetch failed, reconnecting")

	fresh, err := m.Connect(ctx, st.owner, st.cred)
	if err != nil {
		return fmt.Errorf("reconnect after fetch failure: %w", cause)
	}

	m.Disconnect(st)
	*st = *fresh
	return nil
}

// Close releases the manager's pooled transport resources. Workers call
// this once when their share of a batch is done.
func (m *Manager) Close() error {
	m.rest.ResetSession()
	return nil
}

// Disconnect tears the state down. Safe to call repeatedly.
func (m *Manager) Disconnect(st *State) {
	if st == nil {
		return
	}
	if st.session != nil {
		st.session.Logout()
	}
	st.session = nil
	st.token = ""
	st.proto = ProtocolNone
}
