package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/dropauction/go/internal/models"
)

func envelope(t *testing.T, origin string, update models.PriceUpdate) []byte {
	t.Helper()
	data, err := json.Marshal(relayEnvelope{Origin: origin, PublishedAt: time.Now(), Update: update})
	require.NoError(t, err)
	return data
}

func TestRelay_DeliversPeerUpdates(t *testing.T) {
	cm := newTestManager(4)
	viewer := cm.newConnection(nil, "jacket", "alice")
	cm.Register(viewer, "jacket")

	relay := newRelay(cm, nil, DefaultRelayConfig())
	total := int64(4)
	relay.handleMessage(envelope(t, "other-instance", models.PriceUpdate{ItemID: "jacket", NewPrice: 146, TotalShares: &total}))

	require.Len(t, viewer.send, 1)
	var frame PriceUpdateFrame
	require.NoError(t, json.Unmarshal(<-viewer.send, &frame))
	assert.Equal(t, FrameTypePriceUpdate, frame.Type)
	assert.Equal(t, 146.0, frame.NewPrice)
	require.NotNil(t, frame.TotalShares)
	assert.Equal(t, int64(4), *frame.TotalShares)
}

func TestRelay_SkipsOwnEchoes(t *testing.T) {
	cm := newTestManager(4)
	viewer := cm.newConnection(nil, "jacket", "alice")
	cm.Register(viewer, "jacket")

	relay := newRelay(cm, nil, DefaultRelayConfig())
	relay.handleMessage(envelope(t, relay.instanceID, models.PriceUpdate{ItemID: "jacket", NewPrice: 146}))

	assert.Empty(t, viewer.send)
}

func TestRelay_DropsInvalidMessages(t *testing.T) {
	cm := newTestManager(4)
	viewer := cm.newConnection(nil, "jacket", "alice")
	cm.Register(viewer, "jacket")

	relay := newRelay(cm, nil, DefaultRelayConfig())
	relay.handleMessage([]byte("{broken"))
	relay.handleMessage(envelope(t, "other-instance", models.PriceUpdate{NewPrice: 146}))

	assert.Empty(t, viewer.send)
}

func TestRelay_Subject(t *testing.T) {
	cfg := DefaultRelayConfig()
	cfg.SubjectPrefix = "drops"
	assert.Equal(t, "drops.price_update", newRelay(newTestManager(1), nil, cfg).subject())
}

func TestRelay_StopWithoutConnection(t *testing.T) {
	assert.NoError(t, newRelay(newTestManager(1), nil, DefaultRelayConfig()).Stop())
}

func TestRelay_FansOutBetweenInstances(t *testing.T) {
	srv := natstest.RunRandClientPortServer()
	defer srv.Shutdown()

	cfg := DefaultRelayConfig()
	cfg.URL = srv.ClientURL()
	cfg.SubjectPrefix = "fanout"

	cmA, cmB := newTestManager(4), newTestManager(4)
	relayA, err := NewRelay(cmA, cfg)
	require.NoError(t, err)
	relayB, err := NewRelay(cmB, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	for _, r := range []*Relay{relayA, relayB} {
		go func(r *Relay) {
			assert.NoError(t, r.Start(ctx))
			done <- struct{}{}
		}(r)
	}
	defer func() {
		cancel()
		<-done
		<-done
		assert.NoError(t, relayA.Stop())
		assert.NoError(t, relayB.Stop())
	}()

	require.Eventually(t, func() bool { return srv.NumSubscriptions() == 2 }, 5*time.Second, 10*time.Millisecond)

	viewerA := cmA.newConnection(nil, "jacket", "alice")
	cmA.Register(viewerA, "jacket")
	bootsA := cmA.newConnection(nil, "boots", "alice")
	cmA.Register(bootsA, "boots")
	viewerB := cmB.newConnection(nil, "jacket", "bob")
	cmB.Register(viewerB, "jacket")

	total := int64(1)
	require.NoError(t, relayA.PublishPriceUpdate(ctx, models.PriceUpdate{ItemID: "jacket", NewPrice: 148, TotalShares: &total}))

	// Local viewers are served directly, before anything reaches NATS.
	require.Len(t, viewerA.send, 1)
	require.Eventually(t, func() bool { return len(viewerB.send) == 1 }, 5*time.Second, 10*time.Millisecond)

	var frame PriceUpdateFrame
	require.NoError(t, json.Unmarshal(<-viewerB.send, &frame))
	assert.Equal(t, "jacket", frame.ItemID)
	assert.Equal(t, 148.0, frame.NewPrice)

	// A later update from B reaches A only after A's own echo was handled,
	// so once it arrives the jacket viewer must still hold a single frame.
	require.NoError(t, relayB.PublishPriceUpdate(ctx, models.PriceUpdate{ItemID: "boots", NewPrice: 90}))
	require.Eventually(t, func() bool { return len(bootsA.send) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, viewerA.send, 1)
}
