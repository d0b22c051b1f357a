// Package sse streams rule and document change events to HTTP clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeRuleAdded       = "rule.added"
	TypeRuleUpdated     = "rule.updated"
	TypeRuleDeleted     = "rule.deleted"
	TypeDocumentChanged = "document.changed"
	TypeRefresh         = "rules.refresh"
)

// Heartbeat is how often an idle stream gets a comment line, so proxies keep
// the connection open.
var Heartbeat = 25 * time.Second

// Event is a single server-sent event.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// RuleData is the payload of rule.* events.
type RuleData struct {
	Path  string `json:"path"`
	Index int    `json:"index"`
	Rule  string `json:"rule"`
}

// DocumentData is the payload of document.changed events.
type DocumentData struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

// Broker fans events out to subscribed clients.
//
// One goroutine owns the client set and the refresh timestamp; the exported
// methods talk to it over channels.
type Broker struct {
	refreshMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. Change events are followed by a rules.refresh
// event at most once per refreshThrottle.
func NewBroker(refreshThrottle time.Duration) *Broker {
	if refreshThrottle <= 0 {
		refreshThrottle = 2 * time.Second
	}

	b := &Broker{
		refreshMin:    refreshThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", e.Type, payload), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastRefresh time.Time

	broadcast := func(e Event) {
		raw, err := encode(e)
		if err != nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// slow client, drop
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case e := <-b.publishCh:
			broadcast(e)

		case e := <-b.changeCh:
			broadcast(e)
			now := time.Now()
			if now.Sub(lastRefresh) >= b.refreshMin {
				lastRefresh = now
				broadcast(Event{Type: TypeRefresh, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the broker and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all clients as is.
func (b *Broker) Publish(e Event) {
	b.send(b.publishCh, e)
}

// PublishRule announces a rule mutation. op is "added", "updated" or
// "deleted"; other values are ignored.
func (b *Broker) PublishRule(op string, data RuleData) {
	var typ string
	switch op {
	case "added", "add":
		typ = TypeRuleAdded
	case "updated", "update":
		typ = TypeRuleUpdated
	case "deleted", "delete":
		typ = TypeRuleDeleted
	default:
		return
	}
	b.send(b.changeCh, Event{Type: typ, Data: data})
}

// PublishDocumentChanged announces new document content seen on disk.
func (b *Broker) PublishDocumentChanged(path, checksum string) {
	b.send(b.changeCh, Event{Type: TypeDocumentChanged, Data: DocumentData{Path: path, Checksum: checksum}})
}

func (b *Broker) send(ch chan Event, e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case ch <- e:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client until it disconnects.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(Heartbeat)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
