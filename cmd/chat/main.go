package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"market-chat/config"
	"market-chat/internal/channel"
	"market-chat/internal/conversation"
	"market-chat/internal/session"
	"market-chat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()
	appLog := logger.New(cfg.AppMode)
	defer func() { _ = appLog.Logger.Sync() }()

	if cfg.UserID == 0 {
		log.Fatalf("USER_ID must be set")
	}

	opts := channel.DefaultOptions()
	opts.DialTimeout = time.Duration(cfg.DialTimeoutSec) * time.Second
	opts.ReconnectDelay = time.Duration(cfg.ReconnectDelayMS) * time.Millisecond
	opts.MaxReconnectAttempts = cfg.MaxReconnectAttempts

	mgr, err := channel.NewManager(cfg.ServerURL, cfg.UserID, opts, appLog)
	if err != nil {
		log.Fatalf("Failed to build channel: %v", err)
	}

	sess := session.New(session.Options{
		UserID:       cfg.UserID,
		BaseURL:      cfg.ServerURL,
		SendDebounce: time.Duration(cfg.SendDebounceMS) * time.Millisecond,
	}, mgr, appLog)

	sess.OnNotice = func(msg string) {
		fmt.Printf("** %s\n", msg)
	}
	sess.View().OnAppend = printEntry

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go func() {
		if err := mgr.Run(ctx); err != nil && ctx.Err() == nil {
			appLog.Errorf("channel stopped: %v", err)
		}
	}()
	go sess.Run(ctx)

	if cfg.PeerID != 0 {
		sess.SelectPeer(ctx, cfg.PeerID)
	} else {
		fmt.Println("No peer selected. Use /peer <id> to start a conversation.")
	}

	// Stdin is the composer: plain lines send, /peer switches conversation.
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			mgr.Close()
			return
		case line == "/retry":
			sess.RetryHistory(ctx)
		case strings.HasPrefix(line, "/peer "):
			id, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/peer ")))
			if err != nil || id == 0 {
				fmt.Println("** Usage: /peer <id>")
				continue
			}
			sess.SelectPeer(ctx, id)
		default:
			sess.Gate().SetDraft(line)
			if err := sess.Send(line); err != nil {
				appLog.Warnf("send: %v", err)
			}
		}
	}

	mgr.Close()
}

func printEntry(e conversation.Entry) {
	if e.Kind == conversation.KindDayDivider {
		fmt.Printf("--- %s ---\n", e.Label)
		return
	}
	fmt.Printf("[%s] %s: %s\n", e.TimeLabel, e.Sender, e.Body)
}
