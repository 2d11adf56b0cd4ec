package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frd21313123123/auto-reg/internal/checker"
	"github.com/frd21313123123/auto-reg/internal/classify"
	"github.com/frd21313123123/auto-reg/internal/config"
	"github.com/frd21313123123/auto-reg/internal/conn"
	"github.com/frd21313123123/auto-reg/internal/httpx"
	"github.com/frd21313123123/auto-reg/internal/imapmail"
	"github.com/frd21313123123/auto-reg/internal/mailtm"
	"github.com/frd21313123123/auto-reg/internal/store"
	"github.com/frd21313123123/auto-reg/pkg/types"
)

var (
	version     = "dev"
	showVersion = flag.Bool("version", false, "Show version information")
	accountsArg = flag.String("accounts", "", "Accounts file (overrides ACCOUNTS_FILE)")
	threads     = flag.Int("threads", 5, "Number of concurrent workers")
	interval    = flag.Int("interval", 30, "Minutes between checks")
	once        = flag.Bool("once", false, "Run a single check and exit")
	skipKnown   = flag.Bool("skip-known", true, "Skip accounts already marked banned or invalid_password")
	exportExcel = flag.Bool("excel", false, "Export accounts to an xlsx file after each check")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("bancheck version %s\n", version)
		os.Exit(0)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if *accountsArg != "" {
		cfg.AccountsFile = *accountsArg
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	history, err := store.NewHistory(cfg.HistoryPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open check history")
	}
	defer history.Close() //nolint:errcheck

	// Shared across all workers: the domain directory and the per-domain
	// host affinity table.
	directoryHTTP := httpx.New(httpx.Interactive, logger)
	directory := mailtm.NewDomainCache(mailtm.NewClient(cfg.APIBaseURL, directoryHTTP, logger), logger)
	hosts := conn.NewHostCache()

	factory := func() checker.Connector {
		rest := mailtm.NewClient(cfg.APIBaseURL, httpx.New(httpx.Bulk, logger), logger)
		dial := func(host string) conn.MailboxSession {
			return imapmail.NewClient(host, cfg.IMAPPort, cfg.IMAPTimeout, logger)
		}
		return conn.NewManager(rest, dial, directory, hosts, conn.Options{
			DefaultHost:  cfg.DefaultIMAPHost,
			MessageLimit: cfg.BulkMessageLimit,
		}, logger)
	}
	chk := checker.New(factory, classify.NewDefault(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for cycle := 1; ; cycle++ {
		if err := runCycle(ctx, chk, cfg, history, logger); err != nil {
			logger.WithError(err).Error("Check cycle failed")
		}
		if *once || ctx.Err() != nil {
			break
		}

		logger.WithField("minutes", *interval).Info("Waiting for next check")
		select {
		case <-time.After(time.Duration(*interval) * time.Minute):
		case <-ctx.Done():
			logger.Info("Stopped")
			return
		}
	}
}

func runCycle(ctx context.Context, chk *checker.Checker, cfg *config.Config, history *store.History, logger *logrus.Logger) error {
	accounts, err := store.LoadAccounts(cfg.AccountsFile)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		logger.WithField("file", cfg.AccountsFile).Warn("No accounts to check")
		return nil
	}

	report := chk.CheckMany(ctx, accounts, checker.Options{
		Concurrency: *threads,
		SkipKnown:   *skipKnown,
		Progress: func(p types.Progress) {
			fmt.Printf("\r[%d/%d] %-40s banned: %d", p.Processed, p.Total, truncate(p.CurrentEmail, 40), p.Banned)
		},
	})
	fmt.Println()

	store.ApplyReport(accounts, report)
	if err := store.SaveAccounts(cfg.AccountsFile, accounts); err != nil {
		logger.WithError(err).Error("Failed to save accounts")
	}
	if err := history.RecordRun(report); err != nil {
		logger.WithError(err).Error("Failed to record run")
	}
	if *exportExcel {
		if err := store.ExportExcel(cfg.ExcelFile, accounts); err != nil {
			logger.WithError(err).Error("Failed to export spreadsheet")
		}
	}

	printSummary(report)
	return nil
}

func printSummary(r *types.Report) {
	fmt.Println("============================================================")
	fmt.Printf("  Checked:           %d\n", r.Checked)
	fmt.Printf("  OK:                %d\n", r.Checked-r.Banned-r.InvalidPassword-r.Skipped-r.Errors)
	fmt.Printf("  Banned:            %d\n", r.Banned)
	fmt.Printf("  Invalid password:  %d\n", r.InvalidPassword)
	fmt.Printf("  Skipped:           %d\n", r.Skipped)
	fmt.Printf("  Errors:            %d\n", r.Errors)
	fmt.Printf("  Elapsed:           %.1fs\n", r.Elapsed.Seconds())
	fmt.Println("============================================================")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
