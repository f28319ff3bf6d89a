package composer

import (
	"strings"
	"sync"
	"time"

	"market-chat/internal/domain"
	"market-chat/internal/events"
	"market-chat/internal/validator"
	chat_errors "market-chat/pkg/errors"
	"market-chat/pkg/logger"
)

// Emitter is the slice of the channel the gate needs: emit one envelope and
// read the connection state.
type Emitter interface {
	Emit(events.Envelope) error
	State() domain.ConnState
}

// Gate governs every user-initiated send. A send goes out only when the
// content is non-empty, a recipient is selected, and the channel is
// connected; accepted sends open a short debounce window during which
// further sends are rejected, preventing double submission. The eventual
// sent-confirmation is rendered by the reconciler, not here.
type Gate struct {
	emitter  Emitter
	userID   int
	debounce time.Duration
	validate *validator.Validator
	notify   func(string)
	log      *logger.Logger
	now      func() time.Time

	mu            sync.Mutex
	recipient     int
	draft         string
	disabledUntil time.Time
}

func NewGate(emitter Emitter, userID int, debounce time.Duration, notify func(string), log *logger.Logger) *Gate {
	if notify == nil {
		notify = func(string) {}
	}
	return &Gate{
		emitter:  emitter,
		userID:   userID,
		debounce: debounce,
		validate: validator.New(),
		notify:   notify,
		log:      log,
		now:      time.Now,
	}
}

func (g *Gate) SetRecipient(id int) {
	g.mu.Lock()
	g.recipient = id
	g.mu.Unlock()
}

func (g *Gate) ClearRecipient() {
	g.SetRecipient(0)
}

func (g *Gate) Recipient() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.recipient
}

// SetDraft records the current composer content so CanSend can be
// recomputed on every keystroke.
func (g *Gate) SetDraft(content string) {
	g.mu.Lock()
	g.draft = content
	g.mu.Unlock()
}

// Enabled reports whether the send control is active: outside the debounce
// window and connected.
func (g *Gate) Enabled() bool {
	g.mu.Lock()
	until := g.disabledUntil
	g.mu.Unlock()
	return g.now().After(until) && g.emitter.State() == domain.StateConnected
}

// CanSend is the derived composer state: non-empty draft, recipient
// selected, channel connected.
func (g *Gate) CanSend() bool {
	g.mu.Lock()
	draft := g.draft
	recipient := g.recipient
	g.mu.Unlock()
	return strings.TrimSpace(draft) != "" &&
		recipient != 0 &&
		g.emitter.State() == domain.StateConnected
}

// TrySend emits one send_message event if every condition holds. Empty
// content and a missing recipient are rejected silently (no network call);
// sending while disconnected additionally surfaces a transient notice.
func (g *Gate) TrySend(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return chat_errors.ErrEmptyContent
	}

	g.mu.Lock()
	recipient := g.recipient
	until := g.disabledUntil
	g.mu.Unlock()

	if recipient == 0 {
		return chat_errors.ErrNoRecipient
	}
	if !g.now().After(until) {
		return chat_errors.ErrSendInFlight
	}
	if g.emitter.State() != domain.StateConnected {
		g.notify("Not connected. Your message was not sent.")
		return chat_errors.ErrNotConnected
	}

	payload := events.SendMessagePayload{
		SenderID:   g.userID,
		ReceiverID: recipient,
		Content:    content,
	}
	if errs := g.validate.ValidateStruct(payload); len(errs) > 0 {
		g.notify("Message too long (max 1000 characters)")
		g.log.Warnf("send rejected: %s invalid", errs[0].Field)
		return chat_errors.ErrContentTooLong
	}

	env, err := events.NewEnvelope(events.EventSendMessage, payload)
	if err != nil {
		return err
	}
	if err := g.emitter.Emit(env); err != nil {
		return err
	}

	g.mu.Lock()
	g.draft = ""
	g.disabledUntil = g.now().Add(g.debounce)
	g.mu.Unlock()
	return nil
}
