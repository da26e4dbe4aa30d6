package messaging

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bidscanner/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestBus(t *testing.T, opts ...Option) *Bus {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	b := New(append([]Option{WithLogger(logger)}, opts...)...)
	t.Cleanup(b.Close)
	return b
}

func msg(t models.MessageType) models.Message {
	return models.Message{Type: t}
}

var fromPanel = Sender{Address: Panel}

func TestTabAddress(t *testing.T) {
	addr := TabAddress(42)
	assert.Equal(t, Address("tab/42"), addr)
	assert.True(t, addr.IsTab())
	id, ok := addr.TabID()
	assert.True(t, ok)
	assert.Equal(t, 42, id)

	_, ok = Background.TabID()
	assert.False(t, ok)
	_, ok = Address("tab/x").TabID()
	assert.False(t, ok)
}

func TestRequestNoReceiver(t *testing.T) {
	b := newTestBus(t)
	_, err := b.Request(context.Background(), TabAddress(1), fromPanel, msg(models.GetExtractedData))
	assert.ErrorIs(t, err, ErrNoReceiver)
}

func TestRegisterTwice(t *testing.T) {
	b := newTestBus(t)
	h := HandlerFunc(func(context.Context, models.Message, Sender, Responder) bool { return false })
	require.NoError(t, b.Register(Background, h))
	assert.ErrorIs(t, b.Register(Background, h), ErrAlreadyRegistered)
	assert.Equal(t, []Address{Background}, b.Addresses())
}

func TestRequestSyncResponse(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.Register(Background, HandlerFunc(
		func(_ context.Context, m models.Message, s Sender, respond Responder) bool {
			assert.Equal(t, Panel, s.Address)
			respond(models.AuthStatus(true))
			return false
		})))

	resp, err := b.Request(context.Background(), Background, fromPanel, msg(models.GetAuthStatus))
	require.NoError(t, err)
	require.NotNil(t, resp.IsAuthenticated)
	assert.True(t, *resp.IsAuthenticated)
}

func TestRequestAsyncResponse(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.Register(Background, HandlerFunc(
		func(_ context.Context, _ models.Message, _ Sender, respond Responder) bool {
			go func() {
				time.Sleep(10 * time.Millisecond)
				respond(models.OK())
			}()
			return true
		})))

	resp, err := b.Request(context.Background(), Background, fromPanel, msg(models.OpenSidePanel))
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestRequestNoResponse(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.Register(Background, HandlerFunc(
		func(context.Context, models.Message, Sender, Responder) bool { return false })))

	_, err := b.Request(context.Background(), Background, fromPanel, msg(models.VehicleDataExtracted))
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestRequestFirstResponseWins(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.Register(Background, HandlerFunc(
		func(_ context.Context, _ models.Message, _ Sender, respond Responder) bool {
			respond(models.OK())
			respond(models.Fail("second"))
			return false
		})))

	resp, err := b.Request(context.Background(), Background, fromPanel, msg(models.SetAuthStatus))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Error)
}

func TestHandlerPanicBecomesInternalError(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.Register(Background, HandlerFunc(
		func(context.Context, models.Message, Sender, Responder) bool { panic("boom") })))

	resp, err := b.Request(context.Background(), Background, fromPanel, msg(models.GetAuthStatus))
	require.NoError(t, err)
	assert.Equal(t, models.ErrInternal, resp.Error)

	// the loop survives the panic
	resp, err = b.Request(context.Background(), Background, fromPanel, msg(models.GetAuthStatus))
	require.NoError(t, err)
	assert.Equal(t, models.ErrInternal, resp.Error)
}

func TestUnregisterResolvesPendingRequest(t *testing.T) {
	b := newTestBus(t)
	entered := make(chan struct{})
	require.NoError(t, b.Register(TabAddress(7), HandlerFunc(
		func(context.Context, models.Message, Sender, Responder) bool {
			close(entered)
			return true // never responds
		})))

	errc := make(chan error, 1)
	go func() {
		_, err := b.Request(context.Background(), TabAddress(7), fromPanel, msg(models.ScanVehicleData))
		errc <- err
	}()

	<-entered
	assert.True(t, b.Unregister(TabAddress(7)))
	assert.False(t, b.Unregister(TabAddress(7)))
	assert.ErrorIs(t, <-errc, ErrNoReceiver)
	assert.False(t, b.Registered(TabAddress(7)))
}

func TestRequestHonorsContext(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.Register(Background, HandlerFunc(
		func(context.Context, models.Message, Sender, Responder) bool { return true })))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Request(ctx, Background, fromPanel, msg(models.OpenSidePanel))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPush(t *testing.T) {
	b := newTestBus(t)
	got := make(chan models.Message, 1)
	require.NoError(t, b.Register(Panel, HandlerFunc(
		func(_ context.Context, m models.Message, _ Sender, respond Responder) bool {
			respond(models.OK()) // no-op for pushes
			got <- m
			return false
		})))

	assert.ErrorIs(t, b.Push(context.Background(), Popup, FromTab(1, 1), msg(models.VehicleDataExtracted)), ErrNoReceiver)
	require.NoError(t, b.Push(context.Background(), Panel, FromTab(1, 1), msg(models.VehicleDataExtracted)))

	select {
	case m := <-got:
		assert.Equal(t, models.VehicleDataExtracted, m.Type)
	case <-time.After(time.Second):
		t.Fatal("push was not delivered")
	}
	select {
	case <-got:
		t.Fatal("push delivered twice")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPushDropsWhenInboxFull(t *testing.T) {
	b := newTestBus(t, WithInboxSize(1))
	release := make(chan struct{})
	entered := make(chan struct{}, 4)
	require.NoError(t, b.Register(Panel, HandlerFunc(
		func(context.Context, models.Message, Sender, Responder) bool {
			entered <- struct{}{}
			<-release
			return false
		})))

	from := FromTab(1, 1)
	require.NoError(t, b.Push(context.Background(), Panel, from, msg(models.VehicleDataExtracted)))
	<-entered // the loop is busy with the first message
	require.NoError(t, b.Push(context.Background(), Panel, from, msg(models.VehicleDataExtracted)))
	assert.ErrorIs(t, b.Push(context.Background(), Panel, from, msg(models.VehicleDataExtracted)), ErrDropped)
	close(release)
}

func TestBroadcastSkipsTabsAndSender(t *testing.T) {
	b := newTestBus(t)
	var wg sync.WaitGroup
	var panelHits, popupHits, bgHits, tabHits atomic.Int32
	counter := func(c *atomic.Int32) Handler {
		return HandlerFunc(func(context.Context, models.Message, Sender, Responder) bool {
			c.Add(1)
			wg.Done()
			return false
		})
	}
	require.NoError(t, b.Register(Panel, counter(&panelHits)))
	require.NoError(t, b.Register(Popup, counter(&popupHits)))
	require.NoError(t, b.Register(Background, counter(&bgHits)))
	require.NoError(t, b.Register(TabAddress(2), counter(&tabHits)))

	wg.Add(2)
	n := b.Broadcast(context.Background(), Sender{Address: Background}, msg(models.VehicleDataExtracted))
	wg.Wait()

	assert.Equal(t, 2, n)
	assert.EqualValues(t, 1, panelHits.Load())
	assert.EqualValues(t, 1, popupHits.Load())
	assert.EqualValues(t, 0, bgHits.Load())
	assert.EqualValues(t, 0, tabHits.Load())
}

func TestHandlerSeesOneMessageAtATime(t *testing.T) {
	b := newTestBus(t)
	var active, maxActive atomic.Int32
	require.NoError(t, b.Register(Background, HandlerFunc(
		func(_ context.Context, _ models.Message, _ Sender, respond Responder) bool {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			respond(models.OK())
			return false
		})))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Request(context.Background(), Background, fromPanel, msg(models.GetAuthStatus))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, maxActive.Load())
}
