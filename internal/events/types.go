package events

// Application events carried over the channel.
const (
	// Outbound
	EventJoin        = "join"
	EventSendMessage = "send_message"

	// Inbound
	EventJoined      = "joined"
	EventError       = "error"
	EventNewMessage  = "new_message"
	EventMessageSent = "message_sent"
)

// Transport events raised locally by the connection manager. They share the
// envelope shape so the session handles everything through one loop.
const (
	EventConnect         = "connect"
	EventConnectError    = "connect_error"
	EventDisconnect      = "disconnect"
	EventReconnect       = "reconnect"
	EventReconnectFailed = "reconnect_failed"
)

type JoinPayload struct {
	UserID int `json:"user_id"`
}

type JoinedPayload struct {
	Room   string `json:"room"`
	UserID int    `json:"user_id"`
}

// SendMessagePayload mirrors the server's required fields and limits.
type SendMessagePayload struct {
	SenderID   int    `json:"sender_id" validate:"required"`
	ReceiverID int    `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required,max=1000"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type DisconnectPayload struct {
	Reason string `json:"reason"`
}

type ReconnectPayload struct {
	Attempt int `json:"attempt"`
}
