package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the wire format the backend uses for message timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Timestamp wraps time.Time to (de)serialize the backend's plain
// "YYYY-MM-DD HH:MM:SS" format. Values are interpreted in local time,
// matching how the view groups messages by calendar day.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", t.Format(TimeLayout))), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		// Some deployments return RFC 3339 timestamps instead.
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	t.Time = parsed
	return nil
}

// Message is one chat line. Messages are created server-side on send and
// never mutated by the client after receipt.
type Message struct {
	ID         int       `json:"id,omitempty"`
	SenderID   int       `json:"sender_id,omitempty"`
	ReceiverID int       `json:"receiver_id,omitempty"`
	Content    string    `json:"content"`
	Timestamp  Timestamp `json:"timestamp"`
	IsSender   bool      `json:"is_sender,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
}
