package conversation

import (
	"market-chat/internal/domain"
	"market-chat/pkg/logger"
)

// Reconciler merges live channel messages into an already-rendered view.
// It is append-only relative to the history render and filters by the
// currently active peer: events for any other conversation are ignored,
// which is how interest in a previous peer is cancelled.
type Reconciler struct {
	view       *Transcript
	activePeer func() int
	log        *logger.Logger
}

func NewReconciler(view *Transcript, activePeer func() int, log *logger.Logger) *Reconciler {
	return &Reconciler{view: view, activePeer: activePeer, log: log}
}

// HandleNewMessage renders an incoming message iff its sender is the active
// peer. Returns whether the message was rendered.
func (r *Reconciler) HandleNewMessage(msg domain.Message) bool {
	peer := r.activePeer()
	if peer == 0 || msg.SenderID != peer {
		return false
	}
	sender := msg.SenderName
	if sender == "" {
		sender = "They"
	}
	r.view.AppendLive(Received, sender, msg.Content, msg.Timestamp.Time)
	return true
}

// HandleMessageSent renders the echo of our own message iff its receiver is
// the active peer.
func (r *Reconciler) HandleMessageSent(msg domain.Message) bool {
	peer := r.activePeer()
	if peer == 0 || msg.ReceiverID != peer {
		return false
	}
	r.view.AppendLive(Sent, "You", msg.Content, msg.Timestamp.Time)
	return true
}
