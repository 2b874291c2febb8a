// Package feed fans change events out to live subscribers such as
// websocket clients.
package feed

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Collections that publish change events.
const (
	CollectionInventory     = "inventory"
	CollectionReports       = "reports"
	CollectionRequests      = "requests"
	CollectionAccounts      = "accounts"
	CollectionNotifications = "notifications"
)

// Operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpNotify = "notify"
)

// Event describes one change to a collection. Username and Roles form the
// audience: the event reaches that account and every account holding one of
// the roles. An event with neither is a broadcast.
type Event struct {
	Collection string    `json:"collection"`
	Op         string    `json:"op"`
	ID         string    `json:"id,omitempty"`
	Username   string    `json:"username,omitempty"`
	Roles      []string  `json:"-"`
	Data       any       `json:"data,omitempty"`
	At         time.Time `json:"at"`
}

// VisibleTo reports whether an account with the given username and role is
// in the event's audience.
func (ev Event) VisibleTo(username, role string) bool {
	if ev.Username == "" && len(ev.Roles) == 0 {
		return true
	}
	if ev.Username != "" && ev.Username == username {
		return true
	}
	return slices.Contains(ev.Roles, role)
}

// Filter selects which events a subscriber receives.
type Filter func(Event) bool

// bufferSize is the per-subscriber queue length. Events for a subscriber
// whose queue is full are dropped.
const bufferSize = 32

type subscriber struct {
	ch     chan Event
	filter Filter
}

// Broker is an in-process publish/subscribe hub.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]*subscriber)}
}

// Subscribe registers a subscriber until ctx is cancelled, after which the
// returned channel is closed. A nil filter receives every event.
func (b *Broker) Subscribe(ctx context.Context, filter Filter) <-chan Event {
	sub := &subscriber{ch: make(chan Event, bufferSize), filter: filter}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(sub.ch)
		b.mu.Unlock()
	}()

	return sub.ch
}

// Publish delivers ev to every matching subscriber without blocking.
func (b *Broker) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("feed subscriber lagging, event dropped", "collection", ev.Collection, "id", ev.ID)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// ForUser matches events whose audience includes username or role, limited
// to the given collections (all collections when none are given).
func ForUser(username, role string, collections ...string) Filter {
	want := make(map[string]bool, len(collections))
	for _, c := range collections {
		want[c] = true
	}
	return func(ev Event) bool {
		if !ev.VisibleTo(username, role) {
			return false
		}
		return len(want) == 0 || want[ev.Collection]
	}
}
