// Package sse streams analysis status transitions to connected journal
// frontends over Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// writeTimeout bounds a single client write so a stale connection cannot
// stall a broadcast.
const writeTimeout = 2 * time.Second

// Event is one message on the stream. Type is "status" for analyzer
// transitions and "journal" for store-level changes (clear, reload).
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Client is one connected event-stream subscriber.
type Client struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
	id      string
}

// Broadcaster fans events out to every connected client.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[string]*Client
	nextID  int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[string]*Client)}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends an event to all connected clients. Clients that fail or
// time out are dropped.
func (b *Broadcaster) Broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to marshal event")
		return
	}
	message := fmt.Sprintf("data: %s\n\n", payload)

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	dead := make(chan string, len(clients))
	var wg sync.WaitGroup
	for _, c := range clients {
		select {
		case <-c.done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			b.write(c, message, dead)
		}(c)
	}
	wg.Wait()
	close(dead)

	for id := range dead {
		b.drop(id)
	}
}

func (b *Broadcaster) write(c *Client, message string, dead chan<- string) {
	written := make(chan struct{})
	go func() {
		defer close(written)
		if _, err := c.writer.Write([]byte(message)); err != nil {
			log.Debug().Str("clientId", c.id).Err(err).Msg("Client write failed")
			dead <- c.id
			return
		}
		c.flusher.Flush()
	}()

	select {
	case <-written:
	case <-time.After(writeTimeout):
		log.Warn().Str("clientId", c.id).Msg("Client write timed out")
		dead <- c.id
	case <-c.done:
	}
}

func (b *Broadcaster) add(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	c := &Client{
		id:      fmt.Sprintf("client-%d", b.nextID),
		writer:  w,
		flusher: flusher,
		done:    make(chan struct{}),
	}
	b.clients[c.id] = c
	total := len(b.clients)
	b.mu.Unlock()

	log.Debug().Str("clientId", c.id).Int("totalClients", total).Msg("Event-stream client connected")
	return c, nil
}

func (b *Broadcaster) remove(c *Client) {
	b.mu.Lock()
	delete(b.clients, c.id)
	total := len(b.clients)
	b.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}

	log.Debug().Str("clientId", c.id).Int("totalClients", total).Msg("Event-stream client disconnected")
}

func (b *Broadcaster) drop(id string) {
	b.mu.Lock()
	c, ok := b.clients[id]
	if ok {
		delete(b.clients, id)
	}
	b.mu.Unlock()

	if ok {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
}

// HandleSSE upgrades the request to an event stream, sends the initial
// snapshot, and holds the connection open until the client goes away.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request, snapshot Event) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	c, err := b.add(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.remove(c)

	if payload, err := json.Marshal(snapshot); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", payload)
		c.flusher.Flush()
	}

	<-r.Context().Done()
}
