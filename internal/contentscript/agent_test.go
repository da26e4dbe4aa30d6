package contentscript

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bidscanner/internal/messaging"
	"bidscanner/internal/models"
	"bidscanner/internal/scraper"
	"bidscanner/internal/watcher"
)

const copartListing = `
<html><head><title>2015 GMC Yukon</title></head><body>
	<h1>2015 GMC Yukon Denali</h1>
	<span data-uname="lotsearchVin"> 1GKS1AKC8FR106564 </span>
	<div class="price-box">Current Bid: $4,250.00</div>
</body></html>`

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type fixture struct {
	bus    *messaging.Bus
	agent  *Agent
	panel  chan models.Message
	sender messaging.Sender
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	logger := quietLogger()
	bus := messaging.New(messaging.WithLogger(logger))

	panel := make(chan models.Message, 16)
	require.NoError(t, bus.Register(messaging.Panel, messaging.HandlerFunc(
		func(_ context.Context, m models.Message, _ messaging.Sender, _ messaging.Responder) bool {
			panel <- m
			return false
		})))

	if cfg.Page == nil {
		page, err := scraper.NewStaticPage("https://www.copart.com/lot/12345678", copartListing)
		require.NoError(t, err)
		cfg.Page = page
	}
	if cfg.TabID == 0 {
		cfg.TabID = 3
	}
	cfg.Logger = logger

	agent := New(bus, scraper.NewExtractor(scraper.DefaultRegistry()), cfg)
	t.Cleanup(func() {
		agent.Close()
		bus.Close()
	})
	return &fixture{bus: bus, agent: agent, panel: panel, sender: messaging.Sender{Address: messaging.Panel}}
}

func (f *fixture) request(t *testing.T, typ models.MessageType) models.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := f.bus.Request(ctx, f.agent.Address(), f.sender, models.Message{Type: typ})
	require.NoError(t, err)
	return resp
}

// never fires during a test
var parked = watcher.Config{InitialDelay: time.Hour, RescanDelay: time.Hour}

func TestGetExtractedDataBeforeFirstScan(t *testing.T) {
	f := newFixture(t, Config{Watcher: parked})
	require.NoError(t, f.agent.Start(context.Background(), nil))

	resp := f.request(t, models.GetExtractedData)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.False(t, resp.Data.Scanned())
	assert.Nil(t, resp.Data.Vehicle)
	assert.NotNil(t, resp.Data.Bids)
	assert.Empty(t, resp.Data.Bids)
}

func TestScanVehicleData(t *testing.T) {
	f := newFixture(t, Config{Watcher: parked})
	require.NoError(t, f.agent.Start(context.Background(), nil))

	resp := f.request(t, models.ScanVehicleData)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	require.NotNil(t, resp.Data.Vehicle)
	assert.Equal(t, "1GKS1AKC8FR106564", resp.Data.Vehicle.VIN)
	require.Len(t, resp.Data.Bids, 1)
	assert.Equal(t, "$4,250.00", resp.Data.Bids[0].Price)

	select {
	case m := <-f.panel:
		assert.Equal(t, models.VehicleDataExtracted, m.Type)
		var pushed models.ExtractionResult
		require.NoError(t, m.DecodePayload(&pushed))
		assert.True(t, pushed.SameContent(*resp.Data))
	case <-time.After(time.Second):
		t.Fatal("scan result was not broadcast")
	}

	cached := f.request(t, models.GetExtractedData)
	require.NotNil(t, cached.Data)
	assert.True(t, cached.Data.SameContent(*resp.Data))
}

func TestUnknownMessageType(t *testing.T) {
	f := newFixture(t, Config{Watcher: parked})
	require.NoError(t, f.agent.Start(context.Background(), nil))

	resp := f.request(t, models.MessageType("FOO"))
	assert.Equal(t, models.ErrUnknownMessageType, resp.Error)
	assert.False(t, resp.Success)
}

func TestInitialScanAndMutationRescan(t *testing.T) {
	f := newFixture(t, Config{Watcher: watcher.Config{
		InitialDelay: 10 * time.Millisecond,
		RescanDelay:  10 * time.Millisecond,
	}})

	mutations := make(chan watcher.MutationBatch, 1)
	require.NoError(t, f.agent.Start(context.Background(), mutations))

	assert.Eventually(t, func() bool { return f.agent.Session().Scans() == 1 }, time.Second, 5*time.Millisecond)

	mutations <- watcher.MutationBatch{AddedNodes: 2, At: time.Now()}
	assert.Eventually(t, func() bool { return f.agent.Session().Scans() == 2 }, time.Second, 5*time.Millisecond)
}

func TestAutoScanInterval(t *testing.T) {
	f := newFixture(t, Config{
		Watcher: parked,
		Options: models.Options{AutoScan: true, ScanInterval: 1},
	})
	require.NoError(t, f.agent.Start(context.Background(), nil))

	assert.Eventually(t, func() bool { return f.agent.Session().Scans() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestCloseUnregisters(t *testing.T) {
	f := newFixture(t, Config{Watcher: parked})
	require.NoError(t, f.agent.Start(context.Background(), nil))
	assert.True(t, f.bus.Registered(messaging.TabAddress(3)))

	f.agent.Close()
	f.agent.Close()

	_, err := f.bus.Request(context.Background(), messaging.TabAddress(3), f.sender, models.Message{Type: models.GetExtractedData})
	assert.ErrorIs(t, err, messaging.ErrNoReceiver)
	assert.Equal(t, 0, f.agent.Watcher().Pending())
}

func TestStartTwiceIsNoop(t *testing.T) {
	f := newFixture(t, Config{Watcher: parked})
	require.NoError(t, f.agent.Start(context.Background(), nil))
	require.NoError(t, f.agent.Start(context.Background(), nil))
}
