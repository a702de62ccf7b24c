package api

import (
	"io"
	"net/http"
	"sync"
	"time"

	"tomoseq/domain/core"
	"tomoseq/internal"
	"tomoseq/ports"

	"github.com/gin-gonic/gin"
)

// allRuns is the subscription key of clients that follow every run.
const allRuns core.RunID = ""

// EventHub fans run events out to Server-Sent Events clients. It implements
// ports.RunObserver.
type EventHub struct {
	clients   map[core.RunID]map[chan ports.RunEvent]struct{}
	clientsMu sync.RWMutex
	buffer    int
	keepAlive time.Duration
	logger    *internal.Logger
}

var _ ports.RunObserver = (*EventHub)(nil)

// NewEventHub creates a hub whose clients buffer up to buffer events.
func NewEventHub(buffer int, logger *internal.Logger) *EventHub {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &EventHub{
		clients:   make(map[core.RunID]map[chan ports.RunEvent]struct{}),
		buffer:    max(1, buffer),
		keepAlive: 30 * time.Second,
		logger:    logger,
	}
}

// Subscribe registers a client for one run, or for every run when runID is
// empty. The returned function unsubscribes and closes the channel.
func (h *EventHub) Subscribe(runID core.RunID) (<-chan ports.RunEvent, func()) {
	ch := make(chan ports.RunEvent, h.buffer)

	h.clientsMu.Lock()
	if h.clients[runID] == nil {
		h.clients[runID] = make(map[chan ports.RunEvent]struct{})
	}
	h.clients[runID][ch] = struct{}{}
	h.logger.Debug("[SSE] client registered for run %q (total clients: %d)", runID, len(h.clients[runID]))
	h.clientsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.clientsMu.Lock()
			defer h.clientsMu.Unlock()
			if clients, ok := h.clients[runID]; ok {
				delete(clients, ch)
				if len(clients) == 0 {
					delete(h.clients, runID)
				}
			}
			close(ch)
		})
	}
}

// ObserveRun delivers event to the run's clients and to the clients of all
// runs. A client whose buffer is full misses the event.
func (h *EventHub) ObserveRun(event ports.RunEvent) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	keys := []core.RunID{allRuns}
	if event.RunID != allRuns {
		keys = append(keys, event.RunID)
	}
	for _, key := range keys {
		for ch := range h.clients[key] {
			select {
			case ch <- event:
			default:
				h.logger.Warn("[SSE] client channel full for run %q, dropping %s event", key, event.Type)
			}
		}
	}
}

// ClientCount returns the number of clients subscribed under runID.
func (h *EventHub) ClientCount(runID core.RunID) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[runID])
}

// HandleSSE handles GET /api/v1/events[?run_id=...]
func (h *EventHub) HandleSSE(c *gin.Context) {
	runID := allRuns
	if raw := c.Query("run_id"); raw != "" {
		id, err := core.ParseRunID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody{Error: errorDetail{Code: "INVALID_INPUT", Message: err.Error()}})
			return
		}
		runID = id
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events, unsubscribe := h.Subscribe(runID)
	defer unsubscribe()

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("run", event)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"status": "alive", "timestamp": time.Now().Format(time.RFC3339)})
			return true
		case <-ctx.Done():
			return false
		}
	})
}
