package conversation

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTranscriptEscapesContent(t *testing.T) {
	tr := NewTranscript()
	tr.AppendHistory(Received, "mallory", `<script>x</script>`, time.Now())
	tr.AppendLive(Sent, "You", `<img src=x onerror=alert(1)>`, time.Now())

	var bodies []string
	for _, e := range tr.Entries() {
		if e.Kind == KindMessage {
			bodies = append(bodies, e.Body)
		}
	}
	want := []string{
		"&lt;script&gt;x&lt;/script&gt;",
		"&lt;img src=x onerror=alert(1)&gt;",
	}
	if diff := cmp.Diff(want, bodies); diff != "" {
		t.Errorf("rendered bodies mismatch (-want +got):\n%s", diff)
	}
}

func TestDayDividerInsertedOncePerDayChange(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.Local)
	tr := NewTranscript()
	tr.now = func() time.Time { return now }

	first := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	second := time.Date(2024, 1, 2, 9, 0, 0, 0, time.Local)
	third := time.Date(2024, 1, 2, 11, 0, 0, 0, time.Local)

	tr.AppendHistory(Received, "alice", "one", first)
	tr.AppendHistory(Sent, "You", "two", second)
	tr.AppendHistory(Received, "alice", "three", third)

	var got []string
	for _, e := range tr.Entries() {
		if e.Kind == KindDayDivider {
			got = append(got, e.Label)
		} else {
			got = append(got, e.Body)
		}
	}
	want := []string{
		"Monday, January 1, 2024",
		"one",
		"Tuesday, January 2, 2024",
		"two",
		"three",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("transcript order mismatch (-want +got):\n%s", diff)
	}
}

func TestDayLabel(t *testing.T) {
	now := time.Date(2024, 3, 15, 20, 0, 0, 0, time.Local)
	tests := []struct {
		name string
		day  time.Time
		want string
	}{
		{"Today", time.Date(2024, 3, 15, 1, 0, 0, 0, time.Local), "Today"},
		{"Yesterday", time.Date(2024, 3, 14, 23, 0, 0, 0, time.Local), "Yesterday"},
		{"Older", time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local), "Monday, January 1, 2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayLabel(tt.day, now); got != tt.want {
				t.Errorf("DayLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLiveAppendNeverInsertsDivider(t *testing.T) {
	tr := NewTranscript()
	yesterday := time.Now().AddDate(0, 0, -1)
	tr.AppendHistory(Received, "alice", "old", yesterday)

	// A live message on a new day is still appended without a divider.
	tr.AppendLive(Received, "alice", "new", time.Now())

	dividers := 0
	for _, e := range tr.Entries() {
		if e.Kind == KindDayDivider {
			dividers++
		}
	}
	if dividers != 1 {
		t.Errorf("got %d dividers, want 1", dividers)
	}
	last := tr.Entries()[tr.Len()-1]
	if last.Kind != KindMessage || last.Body != "new" {
		t.Errorf("last entry = %+v, want the live message", last)
	}
}

func TestResetClearsView(t *testing.T) {
	tr := NewTranscript()
	tr.AppendHistory(Sent, "You", "hello", time.Now())
	tr.Reset()
	if tr.Len() != 0 {
		t.Errorf("Len() = %d after Reset, want 0", tr.Len())
	}
	if tr.State() != ViewLoading {
		t.Errorf("State() = %s after Reset, want loading", tr.State())
	}
}

func TestOnAppendObservesEntries(t *testing.T) {
	tr := NewTranscript()
	var seen []Entry
	tr.OnAppend = func(e Entry) { seen = append(seen, e) }

	tr.AppendHistory(Received, "alice", "hi", time.Now())
	if len(seen) != 2 { // divider + message
		t.Fatalf("observed %d entries, want 2", len(seen))
	}
	if seen[0].Kind != KindDayDivider || seen[1].Body != "hi" {
		t.Errorf("unexpected observed entries: %+v", seen)
	}
}
