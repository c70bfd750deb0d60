package sdk

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultPendingTimeout is how long a composed entry may wait for its echo
// before ExpirePending marks it failed.
const DefaultPendingTimeout = 10 * time.Second

// Message is the client-side view of one logical message. An entry starts
// either confirmed (fetched or pushed) or optimistic (composed locally under
// a temporary correlation id) and moves optimistic -> confirmed exactly once,
// in place.
type Message struct {
	ServerID        int64          `json:"messageId"`
	ChannelID       int64          `json:"channelId"`
	ParentMessageID int64          `json:"parentMessageId"`
	UserID          int64          `json:"userId"`
	Content         string         `json:"content"`
	Deleted         bool           `json:"deleted"`
	PostedAt        time.Time      `json:"postedAt"`
	ReactionCounts  map[string]int `json:"reactionCounts"`

	ClientTempID string `json:"-"`
	Pending      bool   `json:"-"`
	Failed       bool   `json:"-"`
}

// Confirmed reports whether the server has committed this entry.
func (m Message) Confirmed() bool {
	return m.ServerID > 0
}

// Timeline merges the three message sources a channel view renders: the
// fetched history snapshot, pushes that arrive while the view is open, and
// the user's own optimistic entries. It is deliberately not safe for
// concurrent use: the client delivers events on one goroutine and the UI
// composes from the same one.
type Timeline struct {
	selfUserID     int64
	pendingTimeout time.Duration

	channelID int64
	parentID  int64

	entries []Message
	seen    map[int64]bool
}

// NewTimeline builds a reconciler for the given user. Call Open before
// feeding it history or events.
func NewTimeline(selfUserID int64) *Timeline {
	return &Timeline{
		selfUserID:     selfUserID,
		pendingTimeout: DefaultPendingTimeout,
		seen:           make(map[int64]bool),
	}
}

// SetPendingTimeout overrides how long a composed entry may stay unconfirmed.
func (t *Timeline) SetPendingTimeout(d time.Duration) {
	if d > 0 {
		t.pendingTimeout = d
	}
}

// Open switches the view to a channel (parentMessageID 0) or a thread and
// drops everything accumulated for the previous view, pending entries
// included.
func (t *Timeline) Open(channelID, parentMessageID int64) {
	t.channelID = channelID
	t.parentID = parentMessageID
	t.entries = nil
	t.seen = make(map[int64]bool)
}

// LoadHistory installs the fetched snapshot. Entries that arrived while the
// fetch was in flight survive the merge: confirmed ones deduplicate against
// the snapshot by server id, optimistic ones are kept as they are.
func (t *Timeline) LoadHistory(history []Message) {
	carried := t.entries
	t.entries = make([]Message, 0, len(history)+len(carried))
	t.seen = make(map[int64]bool, len(history))
	for _, m := range history {
		m.Pending = false
		m.Failed = false
		t.add(m)
	}
	for _, m := range carried {
		t.add(m)
	}
}

func (t *Timeline) add(m Message) {
	if m.ServerID > 0 {
		if t.seen[m.ServerID] {
			return
		}
		t.seen[m.ServerID] = true
	}
	t.entries = append(t.entries, m)
}

// Compose appends an optimistic entry for immediate rendering and returns it.
// The caller posts the content under the entry's ClientTempID; the echoed
// identifier later confirms the entry in place.
func (t *Timeline) Compose(content string) Message {
	entry := Message{
		ClientTempID:    "tmp-" + uuid.NewString(),
		ChannelID:       t.channelID,
		ParentMessageID: t.parentID,
		UserID:          t.selfUserID,
		Content:         content,
		PostedAt:        time.Now(),
		Pending:         true,
	}
	t.entries = append(t.entries, entry)
	return entry
}

// Apply folds one push into the view. Events for other channels or threads
// and kinds without timeline effect are ignored.
func (t *Timeline) Apply(event Event) {
	switch ev := event.(type) {
	case MessageCreated:
		t.applyMessage(ev)
	case ReactionAdded:
		t.adjustReaction(ev.MessageID, ev.Emoji, 1)
	case ReactionRemoved:
		t.adjustReaction(ev.MessageID, ev.Emoji, -1)
	case Connected, Subscribed, ChannelCreated, ChannelUpdated, ChannelArchived,
		UserStatusUpdate, UserProfileUpdated:
		// No timeline effect.
	}
}

func (t *Timeline) applyMessage(ev MessageCreated) {
	if ev.ChannelID != t.channelID || ev.ParentMessageID != t.parentID {
		return
	}
	if ev.UserID == t.selfUserID && ev.Identifier != "" {
		for i := range t.entries {
			e := &t.entries[i]
			if e.ClientTempID == ev.Identifier && e.ServerID == 0 {
				e.ServerID = ev.MessageID
				e.Content = ev.Content
				e.PostedAt = ev.PostedAt
				e.Pending = false
				e.Failed = false
				t.seen[ev.MessageID] = true
				return
			}
		}
	}
	t.add(Message{
		ServerID:        ev.MessageID,
		ChannelID:       ev.ChannelID,
		ParentMessageID: ev.ParentMessageID,
		UserID:          ev.UserID,
		Content:         ev.Content,
		PostedAt:        ev.PostedAt,
	})
}

func (t *Timeline) adjustReaction(serverID int64, emoji string, delta int) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.ServerID != serverID {
			continue
		}
		if e.ReactionCounts == nil {
			e.ReactionCounts = make(map[string]int)
		}
		next := e.ReactionCounts[emoji] + delta
		if next <= 0 {
			delete(e.ReactionCounts, emoji)
		} else {
			e.ReactionCounts[emoji] = next
		}
		return
	}
}

// Messages returns the rendered list: at most one entry per logical message,
// ascending by posted time. The slice is a copy; mutating it does not affect
// the timeline.
func (t *Timeline) Messages() []Message {
	out := make([]Message, len(t.entries))
	copy(out, t.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PostedAt.Before(out[j].PostedAt)
	})
	return out
}

// ExpirePending marks optimistic entries older than the pending timeout as
// failed and returns them so the caller can offer a retry.
func (t *Timeline) ExpirePending(now time.Time) []Message {
	var expired []Message
	for i := range t.entries {
		e := &t.entries[i]
		if e.Pending && now.Sub(e.PostedAt) >= t.pendingTimeout {
			e.Pending = false
			e.Failed = true
			expired = append(expired, *e)
		}
	}
	return expired
}

// Retry re-arms a failed entry with a fresh timestamp and returns it. The
// caller re-posts the content under the same ClientTempID, so a late echo of
// the first attempt still confirms the entry.
func (t *Timeline) Retry(tempID string) (Message, bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.ClientTempID == tempID && e.Failed {
			e.Failed = false
			e.Pending = true
			e.PostedAt = time.Now()
			return *e, true
		}
	}
	return Message{}, false
}
