package checker

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frd21313123123/auto-reg/internal/classify"
	"github.com/frd21313123123/auto-reg/internal/conn"
	"github.com/frd21313123123/auto-reg/pkg/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// stubConnector scripts outcomes by email prefix: "banned", "badpass" and
// "down" select their failure mode, everything else connects clean.
type stubConnector struct {
	connects *int32
	gate     chan struct{}
}

func (s *stubConnector) Connect(ctx context.Context, owner conn.OwnerKey, cred types.Credential) (*conn.State, error) {
	if s.connects != nil {
		atomic.AddInt32(s.connects, 1)
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
		}
	}

	switch {
	case strings.HasPrefix(cred.Email, "badpass"):
		return nil, &conn.ConnectError{Kind: conn.KindAuth, Reason: types.ReasonWrongCredentials}
	case strings.HasPrefix(cred.Email, "down"):
		return nil, &conn.ConnectError{Kind: conn.KindUnavailable, Reason: types.ReasonIMAPConnectionFailed}
	}
	return &conn.State{}, nil
}

func (s *stubConnector) FetchMessages(_ context.Context, _ *conn.State) ([]types.Message, error) {
	return []types.Message{
		{ID: "1", Sender: "friend@example.com", Subject: "hello"},
	}, nil
}

func (s *stubConnector) Disconnect(_ *conn.State) {}

// bannedConnector returns a deactivation notice for every account.
type bannedConnector struct{ stubConnector }

func (b *bannedConnector) FetchMessages(_ context.Context, _ *conn.State) ([]types.Message, error) {
	return []types.Message{
		{ID: "1", Sender: "friend@example.com", Subject: "hello"},
		{ID: "2", Sender: "noreply@tm.openai.com", Subject: "Your access has been deactivated"},
	}, nil
}

func newChecker(factory ConnectorFactory) *Checker {
	return New(factory, classify.NewDefault(), testLogger())
}

func TestCheckOneVerdicts(t *testing.T) {
	c := newChecker(nil)
	ctx := context.Background()

	t.Run("clean inbox", func(t *testing.T) {
		res := c.CheckOne(ctx, &stubConnector{}, types.NewCredential("ok@mail.tm", "pw"))
		assert.Equal(t, types.VerdictOk, res.Verdict)
		assert.Equal(t, types.ReasonNoBanFound, res.Reason)
	})

	t.Run("deactivation notice", func(t *testing.T) {
		res := c.CheckOne(ctx, &bannedConnector{}, types.NewCredential("banned@mail.tm", "pw"))
		assert.Equal(t, types.VerdictBanned, res.Verdict)
		assert.Equal(t, types.ReasonAccessDeactivated, res.Reason)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		res := c.CheckOne(ctx, &stubConnector{}, types.NewCredential("badpass@mail.tm", "pw"))
		assert.Equal(t, types.VerdictInvalidPassword, res.Verdict)
		assert.Equal(t, types.ReasonWrongCredentials, res.Reason)
	})

	t.Run("unreachable servers", func(t *testing.T) {
		res := c.CheckOne(ctx, &stubConnector{}, types.NewCredential("down@mail.tm", "pw"))
		assert.Equal(t, types.VerdictError, res.Verdict)
		assert.Equal(t, types.ReasonIMAPConnectionFailed, res.Reason)
	})
}

func TestCheckManyAggregates(t *testing.T) {
	accounts := []types.Account{
		{Credential: types.NewCredential("ok@mail.tm", "pw"), Status: types.StatusRegistered},
		{Credential: types.NewCredential("badpass@mail.tm", "pw"), Status: types.StatusRegistered},
		{Credential: types.NewCredential("down@mail.tm", "pw"), Status: types.StatusRegistered},
	}

	c := newChecker(func() Connector { return &stubConnector{} })
	report := c.CheckMany(context.Background(), accounts, Options{Concurrency: 2})

	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 0, report.Banned)
	assert.Equal(t, 1, report.InvalidPassword)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 0, report.Skipped)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.Results, 3)
}

func TestCheckManySkipsTerminalStatuses(t *testing.T) {
	accounts := []types.Account{
		{Credential: types.NewCredential("a@mail.tm", "pw"), Status: types.StatusBanned},
		{Credential: types.NewCredential("b@mail.tm", "pw"), Status: types.StatusInvalidPassword},
		{Credential: types.NewCredential("c@mail.tm", "pw"), Status: types.StatusRegistered},
	}

	var connects int32
	c := newChecker(func() Connector { return &stubConnector{connects: &connects} })
	report := c.CheckMany(context.Background(), accounts, Options{Concurrency: 2, SkipKnown: true})

	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, int32(1), atomic.LoadInt32(&connects), "skipped accounts must not touch the network")
}

func TestCheckManyRechecksTerminalWhenSkipDisabled(t *testing.T) {
	accounts := []types.Account{
		{Credential: types.NewCredential("a@mail.tm", "pw"), Status: types.StatusBanned},
	}

	var connects int32
	c := newChecker(func() Connector { return &stubConnector{connects: &connects} })
	report := c.CheckMany(context.Background(), accounts, Options{Concurrency: 1, SkipKnown: false})

	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, int32(1), atomic.LoadInt32(&connects))
}

func TestCheckManyCancellationKeepsCompletedWork(t *testing.T) {
	const total = 20
	accounts := make([]types.Account, total)
	for i := range accounts {
		accounts[i] = types.Account{
			Credential: types.NewCredential(fmt.Sprintf("user%d@mail.tm", i), "pw"),
			Status:     types.StatusRegistered,
		}
	}

	gate := make(chan struct{})
	c := newChecker(func() Connector {
		return &stubConnector{gate: gate}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *types.Report, 1)
	go func() {
		done <- c.CheckMany(ctx, accounts, Options{Concurrency: 5})
	}()

	// Let a few checks through, then cancel mid-batch.
	for i := 0; i < 5; i++ {
		gate <- struct{}{}
	}
	cancel()
	close(gate)

	report := <-done
	require.GreaterOrEqual(t, report.Checked, 5)
	require.Less(t, report.Checked, total)
	require.Len(t, report.Results, report.Checked)

	seen := make(map[int]bool)
	for _, res := range report.Results {
		assert.False(t, seen[res.AccountID], "result recorded twice for account %d", res.AccountID)
		seen[res.AccountID] = true
	}
}

func TestCheckManyEmptyBatch(t *testing.T) {
	c := newChecker(func() Connector { return &stubConnector{} })
	report := c.CheckMany(context.Background(), nil, Options{Concurrency: 4})

	assert.Equal(t, 0, report.Checked)
	assert.Empty(t, report.Results)
}

func TestCheckManyProgressReachesTotal(t *testing.T) {
	accounts := []types.Account{
		{Credential: types.NewCredential("a@mail.tm", "pw")},
		{Credential: types.NewCredential("b@mail.tm", "pw")},
	}

	var last types.Progress
	c := newChecker(func() Connector { return &stubConnector{} })
	c.CheckMany(context.Background(), accounts, Options{
		Concurrency: 1,
		Progress:    func(p types.Progress) { last = p },
	})

	assert.Equal(t, 2, last.Processed)
	assert.Equal(t, 2, last.Total)
}

func TestClampWorkers(t *testing.T) {
	tests := []struct {
		requested, accounts, want int
	}{
		{0, 10, 1},
		{-3, 10, 1},
		{5, 10, 5},
		{100, 500, maxWorkers},
		{10, 3, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampWorkers(tt.requested, tt.accounts), "clampWorkers(%d, %d)", tt.requested, tt.accounts)
	}
}
