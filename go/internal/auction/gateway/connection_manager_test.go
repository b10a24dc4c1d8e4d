package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/dropauction/go/internal/models"
)

func newTestManager(sendBuffer int) *ConnectionManager {
	cfg := DefaultConnectionConfig()
	cfg.SendBufferSize = sendBuffer
	return NewConnectionManager(cfg)
}

// countingMetrics records registry observations.
type countingMetrics struct {
	mu        sync.Mutex
	opened    int
	closed    int
	delivered int
	failed    int
}

func (m *countingMetrics) ConnectionOpened() {
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()
}

func (m *countingMetrics) ConnectionClosed() {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
}

func (m *countingMetrics) BroadcastDelivered(d, f int) {
	m.mu.Lock()
	m.delivered += d
	m.failed += f
	m.mu.Unlock()
}

func entryCount(cm *ConnectionManager) int {
	n := 0
	cm.items.Range(func(_, _ any) bool { n++; return true })
	return n
}

func TestConnectionManager_RegisterAndUnregister(t *testing.T) {
	cm := newTestManager(4)
	a := cm.newConnection(nil, "jacket", "alice")
	b := cm.newConnection(nil, "jacket", "bob")

	cm.Register(a, "jacket")
	cm.Register(b, "jacket")
	assert.Equal(t, 2, cm.ViewerCount("jacket"))

	cm.Unregister(a, "jacket")
	assert.Equal(t, 1, cm.ViewerCount("jacket"))
	assert.Equal(t, 1, entryCount(cm))

	cm.Unregister(b, "jacket")
	assert.Zero(t, cm.ViewerCount("jacket"))
	assert.Zero(t, entryCount(cm), "empty item entries must be removed")
}

func TestConnectionManager_UnregisterIsIdempotent(t *testing.T) {
	cm := newTestManager(4)
	metrics := &countingMetrics{}
	cm.SetMetrics(metrics)

	a := cm.newConnection(nil, "jacket", "alice")
	cm.Register(a, "jacket")

	cm.Unregister(a, "jacket")
	cm.Unregister(a, "jacket")
	cm.Unregister(a, "never-registered")

	assert.Equal(t, 1, metrics.opened)
	assert.Equal(t, 1, metrics.closed)
}

func TestConnectionManager_BroadcastWithoutViewers(t *testing.T) {
	cm := newTestManager(4)

	report := cm.Broadcast("jacket", []byte(`{}`))
	assert.Zero(t, report.Delivered)
	assert.Empty(t, report.Failed)
	assert.Zero(t, entryCount(cm), "broadcast must not create entries")
}

func TestConnectionManager_BroadcastIsolatesFailures(t *testing.T) {
	cm := newTestManager(1)
	metrics := &countingMetrics{}
	cm.SetMetrics(metrics)

	slow := cm.newConnection(nil, "jacket", "slow")
	gone := cm.newConnection(nil, "jacket", "gone")
	healthy := cm.newConnection(nil, "jacket", "healthy")
	for _, c := range []*Connection{slow, gone, healthy} {
		cm.Register(c, "jacket")
	}

	require.True(t, slow.enqueue([]byte("backlog")))
	gone.closeSend()

	report := cm.Broadcast("jacket", []byte("update"))

	assert.Equal(t, 1, report.Delivered)
	assert.ElementsMatch(t, []*Connection{slow, gone}, report.Failed)
	assert.Equal(t, 1, cm.ViewerCount("jacket"))
	assert.Equal(t, []byte("update"), <-healthy.send)

	assert.Equal(t, 1, metrics.delivered)
	assert.Equal(t, 2, metrics.failed)
}

func TestConnectionManager_ItemsAreIsolated(t *testing.T) {
	cm := newTestManager(4)
	a := cm.newConnection(nil, "jacket", "alice")
	b := cm.newConnection(nil, "boots", "bob")
	cm.Register(a, "jacket")
	cm.Register(b, "boots")

	report := cm.Broadcast("jacket", []byte("update"))
	assert.Equal(t, 1, report.Delivered)
	assert.Len(t, a.send, 1)
	assert.Empty(t, b.send)
}

func TestConnectionManager_ConcurrentChurn(t *testing.T) {
	cm := newTestManager(4)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item := fmt.Sprintf("item-%d", i%5)
			c := cm.newConnection(nil, item, "")
			cm.Register(c, item)
			cm.Broadcast(item, []byte("x"))
			cm.Unregister(c, item)
		}(i)
	}
	wg.Wait()

	stats := cm.GetConnectionStats()
	assert.Zero(t, stats.TotalConnections)
	assert.Zero(t, stats.ActiveItems)
	assert.Zero(t, entryCount(cm))
}

func TestConnectionManager_RegisterAfterEntryRemoved(t *testing.T) {
	cm := newTestManager(4)
	a := cm.newConnection(nil, "jacket", "alice")
	cm.Register(a, "jacket")
	cm.Unregister(a, "jacket")

	b := cm.newConnection(nil, "jacket", "bob")
	cm.Register(b, "jacket")
	assert.Equal(t, 1, cm.ViewerCount("jacket"))
	assert.Equal(t, 1, cm.Broadcast("jacket", []byte("x")).Delivered)
}

func TestConnectionManager_PublishPriceUpdate(t *testing.T) {
	cm := newTestManager(4)
	a := cm.newConnection(nil, "jacket", "alice")
	cm.Register(a, "jacket")

	total := int64(3)
	require.NoError(t, cm.PublishPriceUpdate(context.Background(), models.PriceUpdate{
		ItemID: "jacket", NewPrice: 147, TotalShares: &total,
	}))

	var frame map[string]any
	require.NoError(t, json.Unmarshal(<-a.send, &frame))
	assert.Equal(t, map[string]any{
		"type":         "price_update",
		"item_id":      "jacket",
		"new_price":    147.0,
		"total_shares": 3.0,
	}, frame)
}

func TestConnectionManager_PublishWithoutCountOmitsTotal(t *testing.T) {
	cm := newTestManager(4)
	a := cm.newConnection(nil, "jacket", "alice")
	cm.Register(a, "jacket")

	require.NoError(t, cm.PublishPriceUpdate(context.Background(), models.PriceUpdate{ItemID: "jacket", NewPrice: 147}))

	var frame map[string]any
	require.NoError(t, json.Unmarshal(<-a.send, &frame))
	assert.NotContains(t, frame, "total_shares")
}

func TestConnectionManager_CloseAll(t *testing.T) {
	cm := newTestManager(4)
	conns := []*Connection{
		cm.newConnection(nil, "jacket", "a"),
		cm.newConnection(nil, "jacket", "b"),
		cm.newConnection(nil, "boots", "c"),
	}
	for _, c := range conns {
		cm.Register(c, c.ItemID)
	}

	cm.CloseAll()

	assert.Zero(t, entryCount(cm))
	for _, c := range conns {
		assert.False(t, c.enqueue([]byte("x")), "send queue must be closed")
	}
}

func TestConnection_ReplyAfterCloseIsDropped(t *testing.T) {
	cm := newTestManager(4)
	a := cm.newConnection(nil, "jacket", "alice")
	cm.Register(a, "jacket")
	cm.Unregister(a, "jacket")

	assert.NotPanics(t, func() { a.reply(ErrorFrame{Error: "ended"}) })
}
