// Package chat is a local stand-in for team chat: an in-process bus that keeps
// a bounded history and fans messages out to subscribed identities.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"agencyops/internal/domain"
	"agencyops/internal/validate"
)

const defaultMaxHistory = 1000

// Message is a direct message when To is set, otherwise a post to the
// sender's department channel.
type Message struct {
	ID         string            `json:"id"`
	From       string            `json:"from"`
	To         string            `json:"to,omitempty"`
	Department domain.Department `json:"department"`
	Content    string            `json:"content"`
	SentAt     time.Time         `json:"sent_at"`
}

// Handler receives messages delivered to a subscriber.
type Handler func(ctx context.Context, msg Message) error

type subscriber struct {
	id         int
	department domain.Department
	handler    Handler
}

// Bus is safe for concurrent use.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]subscriber // identity id -> handlers
	history []Message
	maxHist int
	nextID  int

	Now func() time.Time
}

func NewBus() *Bus {
	return &Bus{
		subs:    make(map[string][]subscriber),
		maxHist: defaultMaxHistory,
		Now:     time.Now,
	}
}

// SendOptions is the body of a chat post.
type SendOptions struct {
	To      string `json:"to,omitempty"`
	Content string `json:"content" validate:"notblank,max=2000"`
}

// Send records a message from id and delivers it. Handler errors do not undo
// the send; the first one is returned after every handler ran.
func (b *Bus) Send(ctx context.Context, id *domain.Identity, opts SendOptions) (Message, error) {
	if id == nil {
		return Message{}, domain.ForbiddenError{Action: "send messages"}
	}
	verr := validate.Struct("message", opts)
	if strings.TrimSpace(opts.To) == id.ID {
		if verr == nil {
			verr = &domain.ValidationError{}
		}
		verr.Add("message", "", "to", "cannot message yourself")
	}
	if err := verr.OrNil(); err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:         uuid.NewString(),
		From:       id.ID,
		To:         strings.TrimSpace(opts.To),
		Department: id.Department,
		Content:    strings.TrimSpace(opts.Content),
		SentAt:     b.now(),
	}

	b.mu.Lock()
	b.history = append(b.history, msg)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}
	// collect handlers to invoke outside the lock
	var targets []Handler
	for who, entries := range b.subs {
		for _, s := range entries {
			if who == msg.From || delivers(msg, who, s.department) {
				targets = append(targets, s.handler)
			}
		}
	}
	b.mu.Unlock()

	var errs []error
	for _, h := range targets {
		if err := h(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return msg, fmt.Errorf("deliver: %d handler error(s): %w", len(errs), errs[0])
	}
	return msg, nil
}

func delivers(msg Message, identityID string, department domain.Department) bool {
	if msg.To != "" {
		return msg.To == identityID
	}
	return msg.Department == department
}

// Subscribe registers handler for messages visible to id. The returned
// function removes it.
func (b *Bus) Subscribe(id domain.Identity, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	entry := subscriber{id: b.nextID, department: id.Department, handler: handler}
	b.subs[id.ID] = append(b.subs[id.ID], entry)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.subs[id.ID]
		filtered := entries[:0]
		for _, e := range entries {
			if e.id != entry.id {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			delete(b.subs, id.ID)
		} else {
			b.subs[id.ID] = filtered
		}
	}
}

// History returns up to limit of the most recent messages visible to id, in
// chronological order. With peer set only the direct conversation with peer
// is returned. Directors read every department channel.
func (b *Bus) History(id *domain.Identity, peer string, limit int) []Message {
	if id == nil {
		return []Message{}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Message{}
	for i := len(b.history) - 1; i >= 0; i-- {
		m := b.history[i]
		if !visible(id, m, peer) {
			continue
		}
		result = append(result, m)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result
}

func visible(id *domain.Identity, m Message, peer string) bool {
	if peer != "" {
		return (m.From == id.ID && m.To == peer) || (m.From == peer && m.To == id.ID)
	}
	if m.To != "" {
		return m.To == id.ID || m.From == id.ID
	}
	return m.Department == id.Department || m.From == id.ID || id.Role == domain.RoleDirector
}

func (b *Bus) now() time.Time {
	if b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}
