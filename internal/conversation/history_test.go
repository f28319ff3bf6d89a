package conversation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	chat_errors "market-chat/pkg/errors"
	"market-chat/pkg/logger"
)

func historyServer(t *testing.T, hits *atomic.Int64, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadRendersHistoryInOrder(t *testing.T) {
	var hits atomic.Int64
	srv := historyServer(t, &hits, http.StatusOK, `[
		{"id":1,"content":"hey","timestamp":"2024-01-01 10:00:00","is_sender":false,"sender_name":"student-7"},
		{"id":2,"content":"hello back","timestamp":"2024-01-02 09:00:00","is_sender":true,"sender_name":"me"}
	]`)

	loader := NewHistoryLoader(srv.URL, 1, srv.Client(), logger.NewNop())
	tr := NewTranscript()
	if err := loader.Load(context.Background(), 7, tr); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if tr.State() != ViewReady {
		t.Errorf("State() = %s, want ready", tr.State())
	}
	entries := tr.Entries()
	// divider, msg, divider, msg: exactly one divider between the two days.
	if len(entries) != 4 {
		t.Fatalf("rendered %d entries, want 4", len(entries))
	}
	if entries[0].Kind != KindDayDivider || entries[2].Kind != KindDayDivider {
		t.Errorf("dividers not where expected: %+v", entries)
	}
	if entries[1].Direction != Received || entries[3].Direction != Sent {
		t.Errorf("directions wrong: %+v", entries)
	}
	if entries[3].Sender != "You" {
		t.Errorf("own history entry sender = %q, want You", entries[3].Sender)
	}
}

func TestLoadEmptyHistoryShowsPlaceholder(t *testing.T) {
	var hits atomic.Int64
	srv := historyServer(t, &hits, http.StatusOK, `[]`)

	loader := NewHistoryLoader(srv.URL, 1, srv.Client(), logger.NewNop())
	tr := NewTranscript()
	if err := loader.Load(context.Background(), 7, tr); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if tr.State() != ViewEmpty {
		t.Errorf("State() = %s, want empty", tr.State())
	}
	if tr.Len() != 0 {
		t.Errorf("Len() = %d, want no message nodes and no divider", tr.Len())
	}
	if !loader.Loaded(7) {
		t.Error("empty history should still count as loaded")
	}
}

func TestLoadIsIdempotentPerPeer(t *testing.T) {
	var hits atomic.Int64
	srv := historyServer(t, &hits, http.StatusOK, `[]`)

	loader := NewHistoryLoader(srv.URL, 1, srv.Client(), logger.NewNop())
	tr := NewTranscript()
	for i := 0; i < 3; i++ {
		if err := loader.Load(context.Background(), 7, tr); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}

	// A peer switch resets the guard.
	loader.Reset()
	if err := loader.Load(context.Background(), 8, tr); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hit %d times after reset, want 2", got)
	}
}

func TestLoadFailureAllowsRetry(t *testing.T) {
	var hits atomic.Int64
	srv := historyServer(t, &hits, http.StatusInternalServerError, `{"error":"boom"}`)

	loader := NewHistoryLoader(srv.URL, 1, srv.Client(), logger.NewNop())
	tr := NewTranscript()
	err := loader.Load(context.Background(), 7, tr)
	if !errors.Is(err, chat_errors.ErrHistoryLoad) {
		t.Fatalf("Load() error = %v, want ErrHistoryLoad", err)
	}
	if tr.State() != ViewError {
		t.Errorf("State() = %s, want error", tr.State())
	}
	if loader.Loaded(7) {
		t.Error("failed load must not set the loaded flag")
	}

	// Retry hits the server again.
	_ = loader.Load(context.Background(), 7, tr)
	if got := hits.Load(); got != 2 {
		t.Errorf("server hit %d times, want 2", got)
	}
}
