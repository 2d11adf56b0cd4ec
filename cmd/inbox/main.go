// Command inbox connects to a single mailbox interactively: list the most
// recent messages, optionally read one and surface any verification code.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/frd21313123123/auto-reg/internal/config"
	"github.com/frd21313123123/auto-reg/internal/conn"
	"github.com/frd21313123123/auto-reg/internal/httpx"
	"github.com/frd21313123123/auto-reg/internal/imapmail"
	"github.com/frd21313123123/auto-reg/internal/mailtm"
	"github.com/frd21313123123/auto-reg/pkg/types"
)

var (
	email    = flag.String("email", "", "Account address")
	password = flag.String("password", "", "Account password")
	read     = flag.Int("read", 0, "Read the Nth listed message (1-based)")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: inbox -email ADDRESS -password PASSWORD [-read N]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Interactive browsing gets the generous retry profile; it is not
	// bound by any batch pool.
	rest := mailtm.NewClient(cfg.APIBaseURL, httpx.New(httpx.Interactive, logger), logger)
	directory := mailtm.NewDomainCache(rest, logger)
	dial := func(host string) conn.MailboxSession {
		return imapmail.NewClient(host, cfg.IMAPPort, cfg.IMAPTimeout, logger)
	}
	manager := conn.NewManager(rest, dial, directory, conn.NewHostCache(), conn.Options{
		DefaultHost:  cfg.DefaultIMAPHost,
		MessageLimit: cfg.InteractiveMessageLimit,
	}, logger)

	cred := types.NewCredential(*email, *password)
	st, err := manager.Connect(ctx, conn.OwnerKey{UserID: "inbox", AccountID: cred.Email}, cred)
	if err != nil {
		logger.WithError(err).Fatal("Login failed")
	}
	defer manager.Disconnect(st)

	fmt.Printf("Connected via %s", st.Protocol())
	if st.Host() != "" {
		fmt.Printf(" (%s)", st.Host())
	}
	fmt.Println()

	messages, err := manager.FetchMessages(ctx, st)
	if err != nil {
		logger.WithError(err).Fatal("Failed to fetch messages")
	}
	if len(messages) == 0 {
		fmt.Println("Mailbox is empty.")
		return
	}

	for i, msg := range messages {
		fmt.Printf("%3d  %-30s  %-50s  %s\n", i+1, truncate(msg.Sender, 30), truncate(msg.Subject, 50), msg.CreatedAt)
	}

	if *read < 1 {
		return
	}
	if *read > len(messages) {
		fmt.Fprintf(os.Stderr, "no message %s\n", strconv.Itoa(*read))
		os.Exit(1)
	}

	msg := messages[*read-1]
	body, err := manager.FetchMessage(ctx, st, msg.ID, msg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to read message")
	}

	fmt.Println("--------------------------------------------------")
	fmt.Printf("From:    %s\n", body.Sender)
	fmt.Printf("Subject: %s\n", body.Subject)
	if body.ExtractedCode != "" {
		fmt.Printf("Code:    %s\n", body.ExtractedCode)
	}
	fmt.Println("--------------------------------------------------")
	fmt.Println(body.Text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
