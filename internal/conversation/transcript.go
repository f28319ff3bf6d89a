package conversation

import (
	"html"
	"sync"
	"time"
)

type EntryKind int

const (
	KindMessage EntryKind = iota
	KindDayDivider
)

type Direction int

const (
	Received Direction = iota
	Sent
)

func (d Direction) String() string {
	if d == Sent {
		return "sent"
	}
	return "received"
}

// Entry is one rendered line of the conversation view: a message or a day
// divider. Message bodies are HTML-escaped before they are stored here, so
// an Entry is always safe to inject into markup as-is.
type Entry struct {
	Kind      EntryKind
	Direction Direction
	Sender    string
	Body      string
	TimeLabel string
	Label     string
	At        time.Time
}

type ViewState int

const (
	ViewLoading ViewState = iota
	ViewReady
	ViewEmpty
	ViewError
)

func (s ViewState) String() string {
	switch s {
	case ViewLoading:
		return "loading"
	case ViewReady:
		return "ready"
	case ViewEmpty:
		return "empty"
	case ViewError:
		return "error"
	default:
		return "unknown"
	}
}

// Transcript is the ordered conversation view for exactly one peer. Entries
// are append-only and never re-sorted; history appends insert a divider when
// the local calendar day changes, live appends never do.
type Transcript struct {
	mu      sync.Mutex
	state   ViewState
	entries []Entry
	lastDay time.Time
	now     func() time.Time

	// OnAppend, when set, observes every appended entry. Used by the
	// terminal client to print lines as they arrive.
	OnAppend func(Entry)
}

func NewTranscript() *Transcript {
	return &Transcript{state: ViewLoading, now: time.Now}
}

// Reset clears all rendered entries, e.g. before re-rendering history or
// after a peer switch.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.lastDay = time.Time{}
	t.state = ViewLoading
}

func (t *Transcript) SetEmpty() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = ViewEmpty
}

func (t *Transcript) SetError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = ViewError
}

func (t *Transcript) State() ViewState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// AppendHistory renders one durable history message, inserting a day
// divider whenever the local calendar date changes.
func (t *Transcript) AppendHistory(dir Direction, sender, content string, at time.Time) {
	t.mu.Lock()
	var appended []Entry
	if !sameDay(t.lastDay, at) {
		divider := Entry{
			Kind:  KindDayDivider,
			Label: DayLabel(at, t.now()),
			At:    at,
		}
		t.entries = append(t.entries, divider)
		t.lastDay = at
		appended = append(appended, divider)
	}
	entry := t.messageEntry(dir, sender, content, at)
	t.entries = append(t.entries, entry)
	t.state = ViewReady
	appended = append(appended, entry)
	t.mu.Unlock()

	t.notify(appended)
}

// AppendLive renders one message that arrived over the channel. Live
// messages are assumed to arrive after anything already shown; no divider
// is inserted retroactively.
func (t *Transcript) AppendLive(dir Direction, sender, content string, at time.Time) {
	t.mu.Lock()
	entry := t.messageEntry(dir, sender, content, at)
	t.entries = append(t.entries, entry)
	t.state = ViewReady
	t.mu.Unlock()

	t.notify([]Entry{entry})
}

func (t *Transcript) messageEntry(dir Direction, sender, content string, at time.Time) Entry {
	return Entry{
		Kind:      KindMessage,
		Direction: dir,
		Sender:    html.EscapeString(sender),
		Body:      html.EscapeString(content),
		TimeLabel: at.Format("3:04 PM"),
		At:        at,
	}
}

func (t *Transcript) notify(appended []Entry) {
	if t.OnAppend == nil {
		return
	}
	for _, e := range appended {
		t.OnAppend(e)
	}
}

// DayLabel formats a divider label: Today, Yesterday, or the full local
// date for anything older.
func DayLabel(day, now time.Time) string {
	switch {
	case sameDay(day, now):
		return "Today"
	case sameDay(day, now.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("Monday, January 2, 2006")
	}
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
