// Package checker runs the ban verification workflow across many accounts
// with bounded parallelism.
package checker

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/frd21313123123/auto-reg/internal/classify"
	"github.com/frd21313123123/auto-reg/internal/conn"
	"github.com/frd21313123123/auto-reg/pkg/types"
)

// maxWorkers caps the pool no matter what the caller asks for.
const maxWorkers = 60

// progressInterval is the minimum gap between progress callbacks.
const progressInterval = 200 * time.Millisecond

// Connector is the slice of the connection manager the checker needs.
// *conn.Manager implements it.
type Connector interface {
	Connect(ctx context.Context, owner conn.OwnerKey, cred types.Credential) (*conn.State, error)
	FetchMessages(ctx context.Context, st *conn.State) ([]types.Message, error)
	Disconnect(st *conn.State)
}

// ConnectorFactory builds one connector per worker. Each worker owns its
// connector (and therefore its transport) for the whole batch, so session
// setup cost is amortized across the accounts that worker handles.
type ConnectorFactory func() Connector

// Options tunes a batch run.
type Options struct {
	Concurrency int
	SkipKnown   bool
	Progress    func(types.Progress)
}

// Checker orchestrates ban checks.
type Checker struct {
	factory    ConnectorFactory
	classifier *classify.Classifier
	logger     *logrus.Logger
}

// New creates a checker.
func New(factory ConnectorFactory, classifier *classify.Classifier, logger *logrus.Logger) *Checker {
	return &Checker{
		factory:    factory,
		classifier: classifier,
		logger:     logger,
	}
}

// CheckOne verifies a single account: connect, fetch the most recent
// messages, classify each until the first ban signature. Connection
// failures map onto verdicts instead of propagating.
func (c *Checker) CheckOne(ctx context.Context, connector Connector, cred types.Credential) types.BanCheckResult {
	result := types.BanCheckResult{Email: cred.Email}

	owner := conn.OwnerKey{UserID: "checker", AccountID: cred.Email}
	st, err := connector.Connect(ctx, owner, cred)
	if err != nil {
		if conn.IsAuthFailure(err) {
			result.Verdict = types.VerdictInvalidPassword
		} else {
			result.Verdict = types.VerdictError
		}
		result.Reason = conn.FailReason(err)
		return result
	}
	defer connector.Disconnect(st)

	messages, err := connector.FetchMessages(ctx, st)
	if err != nil {
		result.Verdict = types.VerdictError
		result.Reason = types.ReasonNetworkError
		return result
	}

	for _, msg := range messages {
		if c.classifier.Classify(msg.Sender, msg.Subject) {
			result.Verdict = types.VerdictBanned
			result.Reason = types.ReasonAccessDeactivated
			return result
		}
	}

	result.Verdict = types.VerdictOk
	result.Reason = types.ReasonNoBanFound
	return result
}

// CheckMany runs CheckOne across a bounded worker pool and aggregates the
// outcome. Accounts whose recorded status is already terminal are skipped
// without a network call when opts.SkipKnown is set. Cancelling the
// context stops dispatch; in-flight checks finish and their results are
// kept, so the returned report covers everything actually processed.
func (c *Checker) CheckMany(ctx context.Context, accounts []types.Account, opts Options) *types.Report {
	start := time.Now()
	report := &types.Report{
		RunID:   uuid.NewString(),
		Results: make([]types.BanCheckResult, 0, len(accounts)),
	}
	total := len(accounts)
	if total == 0 {
		return report
	}

	workers := clampWorkers(opts.Concurrency, total)
	c.logger.WithFields(logrus.Fields{
		"run_id":   report.RunID,
		"accounts": total,
		"workers":  workers,
	}).Info("Starting ban check")

	type job struct {
		index   int
		account types.Account
	}

	jobs := make(chan job)
	var mu sync.Mutex
	var wg sync.WaitGroup
	throttle := rate.NewLimiter(rate.Every(progressInterval), 1)

	record := func(index int, res types.BanCheckResult) {
		mu.Lock()
		res.AccountID = index
		report.Results = append(report.Results, res)
		report.Checked++
		switch res.Verdict {
		case types.VerdictBanned:
			report.Banned++
		case types.VerdictInvalidPassword:
			report.InvalidPassword++
		case types.VerdictSkipped:
			report.Skipped++
		case types.VerdictError:
			report.Errors++
		}
		snapshot := types.Progress{
			Processed:    report.Checked,
			Total:        total,
			CurrentEmail: res.Email,
			Banned:       report.Banned,
			Checked:      report.Checked,
		}
		mu.Unlock()

		// Flooding a UI with one event per completion helps nobody.
		if opts.Progress != nil && (throttle.Allow() || snapshot.Processed == total) {
			opts.Progress(snapshot)
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			connector := c.factory()
			if closer, ok := connector.(io.Closer); ok {
				defer closer.Close() //nolint:errcheck
			}
			for j := range jobs {
				record(j.index, c.CheckOne(ctx, connector, j.account.Credential))
			}
		}()
	}

dispatch:
	for i, account := range accounts {
		if opts.SkipKnown && account.TerminalNegative() {
			record(i, types.BanCheckResult{
				Email:   account.Email,
				Verdict: types.VerdictSkipped,
				Reason:  types.ReasonSkippedKnownStatus,
			})
			continue
		}

		select {
		case jobs <- job{index: i, account: account}:
		case <-ctx.Done():
			c.logger.WithField("run_id", report.RunID).Warn("Ban check cancelled, draining in-flight work")
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	report.Elapsed = time.Since(start)
	c.logger.WithFields(logrus.Fields{
		"run_id":  report.RunID,
		"checked": report.Checked,
		"banned":  report.Banned,
		"elapsed": report.Elapsed.Round(time.Millisecond).String(),
	}).Info("Ban check finished")
	return report
}

func clampWorkers(requested, accounts int) int {
	if requested < 1 {
		requested = 1
	}
	if requested > maxWorkers {
		requested = maxWorkers
	}
	if requested > accounts {
		requested = accounts
	}
	return requested
}
