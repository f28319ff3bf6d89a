package chat_errors

import (
	"errors"
)

// Common errors
var (
	ErrEmptyContent       = errors.New("message content cannot be empty")
	ErrNoRecipient        = errors.New("no recipient selected")
	ErrNotConnected       = errors.New("not connected")
	ErrSendInFlight       = errors.New("send already in flight")
	ErrContentTooLong     = errors.New("message too long")
	ErrSelfMessage        = errors.New("cannot send message to yourself")
	ErrInvalidInput       = errors.New("invalid input")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrHistoryLoad        = errors.New("error loading conversation")
	ErrRequestRejected    = errors.New("request rejected")
	ErrUnexpectedStatus   = errors.New("unexpected response status")
)
