package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"market-chat/internal/channel"
	"market-chat/internal/composer"
	"market-chat/internal/conversation"
	"market-chat/internal/domain"
	"market-chat/internal/events"
	"market-chat/pkg/logger"
)

// Channel is the slice of the connection manager the session consumes.
type Channel interface {
	Emit(events.Envelope) error
	State() domain.ConnState
	Events() <-chan events.Envelope
}

var _ Channel = (*channel.Manager)(nil)

// Options configure one ConversationSync instance.
type Options struct {
	UserID       int
	BaseURL      string
	HTTPClient   *http.Client
	SendDebounce time.Duration
}

// ConversationSync is the per-view chat engine: it owns the active peer,
// the transcript, the history loader, the live reconciler, and the composer
// gate, and processes every channel event through one Handle loop so
// handlers run to completion in order.
type ConversationSync struct {
	log     *logger.Logger
	userID  int
	channel Channel
	history *conversation.HistoryLoader
	view    *conversation.Transcript
	rec     *conversation.Reconciler
	gate    *composer.Gate

	mu          sync.Mutex
	activePeer  int
	lastCanSend bool

	// OnNotice surfaces transient, non-blocking status text (connection
	// lost, send rejected, server errors). Never nil.
	OnNotice func(string)
	// OnComposerChange fires when the derived can-send state flips.
	OnComposerChange func(bool)
}

func New(opts Options, ch Channel, log *logger.Logger) *ConversationSync {
	if opts.SendDebounce == 0 {
		opts.SendDebounce = 100 * time.Millisecond
	}
	s := &ConversationSync{
		log:              log,
		userID:           opts.UserID,
		channel:          ch,
		view:             conversation.NewTranscript(),
		OnNotice:         func(string) {},
		OnComposerChange: func(bool) {},
	}
	s.history = conversation.NewHistoryLoader(opts.BaseURL, opts.UserID, opts.HTTPClient, log)
	s.rec = conversation.NewReconciler(s.view, s.ActivePeer, log)
	s.gate = composer.NewGate(ch, opts.UserID, opts.SendDebounce, func(msg string) {
		s.OnNotice(msg)
	}, log)
	return s
}

func (s *ConversationSync) View() *conversation.Transcript { return s.view }

func (s *ConversationSync) Gate() *composer.Gate { return s.gate }

func (s *ConversationSync) ActivePeer() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePeer
}

// SelectPeer switches the active conversation. The previous transcript is
// discarded, the loaded flag reset, and interest in the old peer's live
// events is cancelled by filtering. History loads immediately when the
// channel is already up, otherwise at the next connect.
func (s *ConversationSync) SelectPeer(ctx context.Context, peerID int) {
	s.mu.Lock()
	if s.activePeer == peerID {
		s.mu.Unlock()
		return
	}
	s.activePeer = peerID
	s.mu.Unlock()

	s.history.Reset()
	s.view.Reset()
	s.gate.SetRecipient(peerID)

	if peerID != 0 && s.channel.State() == domain.StateConnected {
		s.loadHistory(ctx, peerID)
	}
	s.refreshComposer()
}

// Send routes a user-initiated send through the composer gate.
func (s *ConversationSync) Send(content string) error {
	err := s.gate.TrySend(content)
	s.refreshComposer()
	return err
}

// Run processes channel events until ctx is cancelled. The ticker is a
// safety net for composer enablement; correctness does not depend on it.
func (s *ConversationSync) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-s.channel.Events():
			if !ok {
				return
			}
			s.Handle(ctx, env)
		case <-ticker.C:
			s.refreshComposer()
		}
	}
}

// Handle processes one channel event to completion. Exported so tests can
// drive the state machine deterministically without a transport.
func (s *ConversationSync) Handle(ctx context.Context, env events.Envelope) {
	switch env.Event {
	case events.EventConnect:
		s.OnNotice("Connected and secure!")
		peer := s.ActivePeer()
		// Reload only if this peer's history is not already rendered,
		// so transient blips never duplicate the transcript.
		if peer != 0 && !s.history.Loaded(peer) {
			s.loadHistory(ctx, peer)
		}

	case events.EventJoined:
		var p events.JoinedPayload
		if err := env.Decode(&p); err == nil {
			s.log.Infof("joined room %s", p.Room)
		}

	case events.EventDisconnect:
		s.OnNotice("Connection lost. Reconnecting...")

	case events.EventReconnect:
		var p events.ReconnectPayload
		_ = env.Decode(&p)
		s.log.Infof("reconnect attempt %d", p.Attempt)

	case events.EventConnectError:
		var p events.ErrorPayload
		_ = env.Decode(&p)
		s.OnNotice(p.Message)

	case events.EventReconnectFailed:
		var p events.ErrorPayload
		_ = env.Decode(&p)
		s.OnNotice(p.Message)

	case events.EventError:
		var p events.ErrorPayload
		if err := env.Decode(&p); err == nil && p.Message != "" {
			s.OnNotice(p.Message)
		}

	case events.EventNewMessage:
		var msg domain.Message
		if err := env.Decode(&msg); err != nil {
			s.log.Errorf("new_message: %v", err)
			return
		}
		s.rec.HandleNewMessage(msg)

	case events.EventMessageSent:
		var msg domain.Message
		if err := env.Decode(&msg); err != nil {
			s.log.Errorf("message_sent: %v", err)
			return
		}
		s.rec.HandleMessageSent(msg)

	default:
		s.log.Warnf("unhandled event %q", env.Event)
	}

	s.refreshComposer()
}

func (s *ConversationSync) loadHistory(ctx context.Context, peerID int) {
	if err := s.history.Load(ctx, peerID, s.view); err != nil {
		s.OnNotice("Error loading messages. Please retry.")
	}
}

// RetryHistory re-attempts a failed history load for the active peer. It is
// the manual-retry affordance behind the error placeholder; after a
// successful load it is a no-op.
func (s *ConversationSync) RetryHistory(ctx context.Context) {
	peer := s.ActivePeer()
	if peer == 0 || s.history.Loaded(peer) {
		return
	}
	s.loadHistory(ctx, peer)
}

func (s *ConversationSync) refreshComposer() {
	can := s.gate.CanSend() && s.gate.Enabled()
	s.mu.Lock()
	changed := can != s.lastCanSend
	s.lastCanSend = can
	s.mu.Unlock()
	if changed {
		s.OnComposerChange(can)
	}
}
