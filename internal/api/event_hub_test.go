package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tomoseq/app"
	"tomoseq/domain/core"
	"tomoseq/domain/peaks"
	"tomoseq/internal/testkit"
	"tomoseq/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub_SubscribeAndDeliver(t *testing.T) {
	hub := NewEventHub(2, nil)
	runA, runB := core.NewRunID(), core.NewRunID()

	onlyA, unsubA := hub.Subscribe(runA)
	all, unsubAll := hub.Subscribe("")
	defer unsubAll()
	assert.Equal(t, 1, hub.ClientCount(runA))

	hub.ObserveRun(ports.RunEvent{RunID: runA, Type: ports.RunStarted})
	hub.ObserveRun(ports.RunEvent{RunID: runB, Type: ports.RunStarted})

	assert.Equal(t, runA, (<-onlyA).RunID)
	assert.Empty(t, onlyA)
	assert.Equal(t, runA, (<-all).RunID)
	assert.Equal(t, runB, (<-all).RunID)

	// a full buffer drops instead of blocking
	for i := 0; i < 5; i++ {
		hub.ObserveRun(ports.RunEvent{RunID: runA, Type: ports.RunProgress, Done: i})
	}
	assert.Len(t, onlyA, 2)

	unsubA()
	unsubA()
	assert.Equal(t, 0, hub.ClientCount(runA))
	for range onlyA {
	}
}

func TestEventHub_StreamsRunEvents(t *testing.T) {
	hub := NewEventHub(64, nil)
	kit := testkit.NewTestKit()
	service := app.NewPeakService(kit.RNG(), nil).WithObserver(hub)
	server := httptest.NewServer(NewServer(service, nil, Options{Defaults: peaks.DefaultParams(), Events: hub}).Handler())
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.ClientCount("") == 1 }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Post(server.URL+"/api/v1/peaks", "application/json", bytes.NewReader(scenarioBody(t)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var types []string
	scanner := bufio.NewScanner(stream.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var ev ports.RunEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &ev))
		types = append(types, ev.Type)
		if ev.Type == ports.RunCompleted {
			break
		}
	}
	require.NotEmpty(t, types)
	assert.Equal(t, ports.RunStarted, types[0])
	assert.Equal(t, ports.RunCompleted, types[len(types)-1])
	assert.Contains(t, types, ports.RunProgress)
}

func TestEventHub_RejectsBadRunID(t *testing.T) {
	hub := NewEventHub(1, nil)
	s := NewServer(app.NewPeakService(nil, nil), nil, Options{Events: hub})
	rec := do(s, http.MethodGet, "/api/v1/events?run_id=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
