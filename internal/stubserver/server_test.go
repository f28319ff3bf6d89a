package stubserver_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"market-chat/internal/channel"
	"market-chat/internal/conversation"
	"market-chat/internal/domain"
	"market-chat/internal/session"
	"market-chat/internal/stubserver"
	"market-chat/pkg/logger"
)

func fastOptions() channel.Options {
	opts := channel.DefaultOptions()
	opts.DialTimeout = time.Second
	opts.ReconnectDelay = 10 * time.Millisecond
	return opts
}

type engine struct {
	mgr  *channel.Manager
	sess *session.ConversationSync
}

func startEngine(t *testing.T, ctx context.Context, baseURL string, userID int, onNotice func(string)) *engine {
	t.Helper()
	log := logger.NewNop()
	mgr, err := channel.NewManager(baseURL, userID, fastOptions(), log)
	if err != nil {
		t.Fatal(err)
	}
	sess := session.New(session.Options{UserID: userID, BaseURL: baseURL}, mgr, log)
	if onNotice != nil {
		sess.OnNotice = onNotice
	}
	go func() { _ = mgr.Run(ctx) }()
	go sess.Run(ctx)
	t.Cleanup(mgr.Close)
	return &engine{mgr: mgr, sess: sess}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestChatRoundTrip(t *testing.T) {
	srv := httptest.NewServer(stubserver.New(logger.NewNop()).Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := startEngine(t, ctx, srv.URL, 1, nil)
	bob := startEngine(t, ctx, srv.URL, 2, nil)

	alice.sess.SelectPeer(ctx, 2)
	bob.sess.SelectPeer(ctx, 1)

	waitFor(t, "both engines connected", func() bool {
		return alice.mgr.State() == domain.StateConnected &&
			bob.mgr.State() == domain.StateConnected
	})
	waitFor(t, "empty histories rendered", func() bool {
		return alice.sess.View().State() == conversation.ViewEmpty &&
			bob.sess.View().State() == conversation.ViewEmpty
	})

	if err := alice.sess.Send("hello bob"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// Bob sees the message live, Alice sees her echo; neither refetches.
	waitFor(t, "bob to receive the message", func() bool {
		entries := bob.sess.View().Entries()
		return len(entries) == 1 &&
			entries[0].Body == "hello bob" &&
			entries[0].Direction == conversation.Received
	})
	waitFor(t, "alice to see the echo", func() bool {
		entries := alice.sess.View().Entries()
		return len(entries) == 1 &&
			entries[0].Body == "hello bob" &&
			entries[0].Direction == conversation.Sent
	})

	if got := bob.sess.View().Entries()[0].Sender; got != "student-1" {
		t.Errorf("sender name = %q, want student-1", got)
	}
}

func TestHistoryServedToLateJoiner(t *testing.T) {
	srv := httptest.NewServer(stubserver.New(logger.NewNop()).Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := startEngine(t, ctx, srv.URL, 1, nil)
	alice.sess.SelectPeer(ctx, 2)
	waitFor(t, "alice connected", func() bool {
		return alice.mgr.State() == domain.StateConnected
	})
	if err := alice.sess.Send("are you there?"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "message stored", func() bool {
		return len(alice.sess.View().Entries()) == 1
	})

	// Bob connects after the fact and loads the durable transcript.
	bob := startEngine(t, ctx, srv.URL, 2, nil)
	bob.sess.SelectPeer(ctx, 1)
	waitFor(t, "bob to load history", func() bool {
		entries := bob.sess.View().Entries()
		// One day divider plus the message.
		return len(entries) == 2 &&
			entries[0].Kind == conversation.KindDayDivider &&
			entries[0].Label == "Today" &&
			entries[1].Body == "are you there?" &&
			entries[1].Direction == conversation.Received
	})
}

func TestServerRejectsInvalidSends(t *testing.T) {
	srv := httptest.NewServer(stubserver.New(logger.NewNop()).Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var notices []string
	noticeCh := make(chan string, 8)
	alice := startEngine(t, ctx, srv.URL, 1, func(msg string) {
		select {
		case noticeCh <- msg:
		default:
		}
	})
	alice.sess.SelectPeer(ctx, 1) // self
	waitFor(t, "alice connected", func() bool {
		return alice.mgr.State() == domain.StateConnected
	})

	if err := alice.sess.Send("talking to myself"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	waitFor(t, "server error notice", func() bool {
		for {
			select {
			case n := <-noticeCh:
				notices = append(notices, n)
			default:
				for _, n := range notices {
					if n == "Cannot send message to yourself" {
						return true
					}
				}
				return false
			}
		}
	})
}
