package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"market-chat/internal/domain"
	chat_errors "market-chat/pkg/errors"
	"market-chat/pkg/logger"
)

// HistoryLoader fetches the durable transcript for a conversation and
// renders it once. Loading is idempotent per peer: a second call for the
// same peer is a no-op until Reset (peer switch). Failures do not mark the
// peer as loaded, so a retry is always possible.
type HistoryLoader struct {
	baseURL string
	userID  int
	client  *http.Client
	log     *logger.Logger

	mu         sync.Mutex
	loaded     bool
	loadedPeer int
}

func NewHistoryLoader(baseURL string, userID int, client *http.Client, log *logger.Logger) *HistoryLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HistoryLoader{baseURL: baseURL, userID: userID, client: client, log: log}
}

// Loaded reports whether history for peerID has already been rendered in
// this session.
func (l *HistoryLoader) Loaded(peerID int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded && l.loadedPeer == peerID
}

// Reset forgets the loaded flag, e.g. when the active peer changes.
func (l *HistoryLoader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = false
	l.loadedPeer = 0
}

// Load fetches and renders the conversation with peerID into view.
func (l *HistoryLoader) Load(ctx context.Context, peerID int, view *Transcript) error {
	if l.Loaded(peerID) {
		return nil
	}

	msgs, err := l.fetch(ctx, peerID)
	if err != nil {
		l.log.Errorf("load conversation %d: %v", peerID, err)
		view.SetError()
		return fmt.Errorf("%w: %v", chat_errors.ErrHistoryLoad, err)
	}

	view.Reset()
	if len(msgs) == 0 {
		view.SetEmpty()
	} else {
		for _, msg := range msgs {
			dir := Received
			sender := msg.SenderName
			if msg.IsSender {
				dir = Sent
				sender = "You"
			}
			view.AppendHistory(dir, sender, msg.Content, msg.Timestamp.Time)
		}
	}

	l.mu.Lock()
	l.loaded = true
	l.loadedPeer = peerID
	l.mu.Unlock()
	return nil
}

func (l *HistoryLoader) fetch(ctx context.Context, peerID int) ([]domain.Message, error) {
	url := fmt.Sprintf("%s/api/conversations/%d?user_id=%d", l.baseURL, peerID, l.userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", chat_errors.ErrUnexpectedStatus, resp.Status)
	}

	var msgs []domain.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
