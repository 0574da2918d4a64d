package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportbar2312/reservation-bot/internal/cache"
	"github.com/sportbar2312/reservation-bot/internal/observability/metrics"
	"github.com/sportbar2312/reservation-bot/internal/venue"
	"github.com/sportbar2312/reservation-bot/internal/wizard"
	"github.com/sportbar2312/reservation-bot/pkg/logging"
)

var testNow = time.Date(2026, time.October, 19, 15, 30, 0, 0, time.UTC)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestService(t *testing.T, backend cache.Backend, opts ...Option) (*Service, *MemoryStateStore, *cache.Cache) {
	t.Helper()
	store := NewMemoryStateStore()
	c := cache.New(backend, 0)
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithSleep(noSleep),
		WithMetrics(metrics.NewWizardMetrics(prometheus.NewRegistry())),
	}, opts...)
	svc := NewService(wizard.New(venue.Default()), store, c, logging.New("error"), opts...)
	return svc, store, c
}

func handle(t *testing.T, svc *Service, id string, ev wizard.Event) *Result {
	t.Helper()
	res, err := svc.Handle(context.Background(), Request{ConversationID: id, ClientKey: "client-1", Event: ev})
	require.NoError(t, err)
	return res
}

func TestService_FullBooking(t *testing.T) {
	svc, store, c := newTestService(t, cache.NewMemoryBackend())
	ctx := context.Background()

	started, err := svc.Start(ctx, "conv-1", "client-1")
	require.NoError(t, err)
	assert.Equal(t, "awaiting_name", started.Step)
	require.Len(t, started.Outputs, 1)

	res := handle(t, svc, "conv-1", wizard.Text("Juan"))
	assert.Equal(t, "awaiting_zone", res.Step)
	assert.Empty(t, res.CacheErrors)
	name, err := c.LoadName(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "Juan", name)

	res = handle(t, svc, "conv-1", wizard.Text("Quiero reservar para 4 personas en VIP mañana a las 20:00"))
	assert.Equal(t, "awaiting_table_preference", res.Step)

	st, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "20 oct 2026", st.Booking.Date)
	assert.Equal(t, "20:00", st.Booking.Time)

	res = handle(t, svc, "conv-1", wizard.PickTable(wizard.NoPreference))
	assert.Equal(t, "awaiting_marketing_opt_in", res.Step)

	res = handle(t, svc, "conv-1", wizard.Text("sí, dale"))
	assert.Equal(t, "complete", res.Step)
	require.Len(t, res.Outputs, 3)
	assert.Equal(t, wizard.OutputHandoff, res.Outputs[2].Kind)

	history, err := c.History(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "vip", history[0].Zone.ID)
	assert.True(t, *history[0].Offers)

	last, err := c.LastBooking(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Completed)
	assert.Equal(t, testNow, *last.CompletedAt)
}

func TestService_ReturningCustomer(t *testing.T) {
	svc, _, c := newTestService(t, cache.NewMemoryBackend())
	ctx := context.Background()
	require.NoError(t, c.SaveName(ctx, "client-1", "Ana"))

	started, err := svc.Start(ctx, "", "client-1")
	require.NoError(t, err)
	assert.NotEmpty(t, started.ConversationID)
	require.Len(t, started.Outputs, 2)
	assert.Contains(t, started.Outputs[1].Text, "¿Eres Ana?")

	res := handle(t, svc, started.ConversationID, wizard.Text("si"))
	assert.Equal(t, "awaiting_zone", res.Step)
	assert.Equal(t, "Hola Ana 👋", res.Outputs[0].Text)
}

func TestService_ResetUsesCachedName(t *testing.T) {
	svc, store, c := newTestService(t, cache.NewMemoryBackend())
	ctx := context.Background()

	_, err := svc.Start(ctx, "conv-1", "client-1")
	require.NoError(t, err)
	handle(t, svc, "conv-1", wizard.Text("Juan"))
	handle(t, svc, "conv-1", wizard.SelectZone("barra"))

	require.NoError(t, c.SaveName(ctx, "client-1", "Juancho"))
	res := handle(t, svc, "conv-1", wizard.Reset(""))
	assert.Equal(t, "awaiting_name", res.Step)

	st, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, wizard.State{Step: wizard.StepName, Booking: wizard.Booking{Name: "Juancho", Table: wizard.NoPreference}}, st)
}

func TestService_Resume(t *testing.T) {
	svc, _, _ := newTestService(t, cache.NewMemoryBackend())
	ctx := context.Background()

	res, err := svc.Resume(ctx, "conv-9", "client-1")
	require.NoError(t, err)
	assert.Equal(t, "awaiting_name", res.Step)

	handle(t, svc, "conv-9", wizard.Text("Juan"))
	res, err = svc.Resume(ctx, "conv-9", "client-1")
	require.NoError(t, err)
	assert.Equal(t, "awaiting_zone", res.Step)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, wizard.EventSelectZone, res.Outputs[0].Action)
}

func TestService_UnknownConversationStartsFresh(t *testing.T) {
	svc, _, _ := newTestService(t, cache.NewMemoryBackend())

	res := handle(t, svc, "never-started", wizard.Text("Juan"))
	assert.Equal(t, "awaiting_zone", res.Step)
	assert.Equal(t, venue.Default().WelcomeMessage, res.Outputs[0].Text)
}

func TestService_DropsInputWhileBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	blockingSleep := func(ctx context.Context, _ time.Duration) error {
		close(entered)
		<-release
		return nil
	}
	svc, _, _ := newTestService(t, cache.NewMemoryBackend(), WithSleep(blockingSleep))
	ctx := context.Background()
	_, err := svc.Start(ctx, "conv-1", "client-1")
	require.NoError(t, err)

	done := make(chan *Result, 1)
	go func() {
		res, err := svc.Handle(ctx, Request{ConversationID: "conv-1", ClientKey: "client-1", Event: wizard.Text("Juan")})
		assert.NoError(t, err)
		done <- res
	}()
	<-entered

	_, err = svc.Handle(ctx, Request{ConversationID: "conv-1", ClientKey: "client-1", Event: wizard.Text("Pedro")})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	res := <-done
	assert.Equal(t, "awaiting_zone", res.Step)

	st, err := svc.Snapshot(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Juan", st.Booking.Name)
}

func TestService_CancelledCallerStillGetsTurn(t *testing.T) {
	svc, store, c := newTestService(t, cache.NewMemoryBackend(), WithSleep(sleepContext), WithTypingDelay(50*time.Millisecond))
	assert.Equal(t, 50*time.Millisecond, svc.TypingDelay())
	_, err := svc.Start(context.Background(), "conv-1", "client-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := svc.Handle(ctx, Request{ConversationID: "conv-1", ClientKey: "client-1", Event: wizard.Text("Juan")})
	require.NoError(t, err)
	assert.Equal(t, "awaiting_zone", res.Step)

	st, err := store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, wizard.StepZone, st.Step)
	name, err := c.LoadName(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, "Juan", name)

	ok, err := store.TryAcquire(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.True(t, ok, "busy flag released after the turn")
}

func TestService_ResetOnUnknownConversationWelcomesOnce(t *testing.T) {
	svc, _, c := newTestService(t, cache.NewMemoryBackend())
	require.NoError(t, c.SaveName(context.Background(), "client-1", "Ana"))

	res := handle(t, svc, "expired", wizard.Reset(""))
	assert.Equal(t, "awaiting_name", res.Step)

	welcomes := 0
	for _, o := range res.Outputs {
		if o.Text == venue.Default().WelcomeMessage {
			welcomes++
		}
	}
	assert.Equal(t, 1, welcomes)
	require.Len(t, res.Outputs, 2)
	assert.Contains(t, res.Outputs[1].Text, "¿Eres Ana?")
}

type downBackend struct{}

var errDown = errors.New("dial tcp: connection refused")

func (downBackend) Get(context.Context, string) ([]byte, error) { return nil, errDown }
func (downBackend) Set(context.Context, string, []byte) error { return errDown }
func (downBackend) PushBounded(context.Context, string, []byte, int) error { return errDown }
func (downBackend) List(context.Context, string) ([][]byte, error) { return nil, errDown }

func TestService_CacheFailuresDoNotBlock(t *testing.T) {
	svc, _, _ := newTestService(t, downBackend{})
	ctx := context.Background()

	started, err := svc.Start(ctx, "conv-1", "client-1")
	require.NoError(t, err)
	require.Len(t, started.CacheErrors, 1)
	assert.ErrorIs(t, started.CacheErrors[0], cache.ErrUnavailable)

	res := handle(t, svc, "conv-1", wizard.Text("Juan"))
	assert.Equal(t, "awaiting_zone", res.Step)
	require.Len(t, res.CacheErrors, 1)
	assert.ErrorIs(t, res.CacheErrors[0], errDown)

	handle(t, svc, "conv-1", wizard.Text("en la barra para 2 personas"))
	handle(t, svc, "conv-1", wizard.ConfirmDate("2026-10-20"))
	handle(t, svc, "conv-1", wizard.SelectTime("21:00"))
	handle(t, svc, "conv-1", wizard.Text("no"))
	res = handle(t, svc, "conv-1", wizard.PickOptIn(false))
	assert.Equal(t, "complete", res.Step)
	require.Len(t, res.CacheErrors, 1)
	assert.Contains(t, res.CacheErrors[0].Error(), "record_booking")
}

func TestService_RequiresConversationID(t *testing.T) {
	svc, _, _ := newTestService(t, cache.NewMemoryBackend())
	_, err := svc.Handle(context.Background(), Request{Event: wizard.Text("hola")})
	assert.Error(t, err)
}
