package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/internal/domain"
	"stockwatch/internal/events"
)

type fakeLive struct {
	err     error
	emitted []interface{}
}

func (f *fakeLive) Emit(_ context.Context, _ string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.emitted = append(f.emitted, payload)
	return nil
}

type fakePush struct {
	failEndpoints map[string]bool
	sent          []string
}

func (f *fakePush) Send(_ context.Context, reg domain.PushRegistration, _ []byte) error {
	if f.failEndpoints[reg.Endpoint] {
		return domain.ErrDeliveryFailed
	}
	f.sent = append(f.sent, reg.Endpoint)
	return nil
}

type fakeRegs struct {
	regs   []domain.PushRegistration
	listed bool
}

func (f *fakeRegs) ByUser(string) ([]domain.PushRegistration, error) {
	f.listed = true
	return f.regs, nil
}

func testNotification() *domain.Notification {
	return &domain.Notification{
		UserID:  "u1",
		Symbol:  "TCS.NS",
		Source:  domain.SourceWatchlist,
		Text:    "update",
		Summary: "TCS.NS moved",
		Snapshot: &domain.MarketSnapshot{
			Symbol: "TCS.NS",
			Price:  250,
		},
		Reasons:   []string{"Initial tracking started"},
		CreatedAt: time.Now().UTC(),
	}
}

func newTestRouter(live LiveEmitter, push PushSender, regs RegistrationLister) *Router {
	log := zerolog.Nop()
	return NewRouter(live, push, regs, events.NewManager(log), log)
}

func TestDeliver_LiveChannelSkipsPush(t *testing.T) {
	live := &fakeLive{}
	push := &fakePush{}
	regs := &fakeRegs{regs: []domain.PushRegistration{{ID: "r1", Endpoint: "e1"}}}

	r := newTestRouter(live, push, regs)

	out, err := r.Deliver(context.Background(), testNotification())
	require.NoError(t, err)

	assert.True(t, out.Live)
	assert.True(t, out.Delivered)
	assert.False(t, out.Durable)
	assert.Len(t, live.emitted, 1)
	assert.False(t, regs.listed, "push registrations must not be contacted on live delivery")
	assert.Empty(t, push.sent)
}

func TestDeliver_DurablePathWithPartialPushFailure(t *testing.T) {
	live := &fakeLive{err: domain.ErrNotConnected}
	push := &fakePush{failEndpoints: map[string]bool{"bad": true}}
	regs := &fakeRegs{regs: []domain.PushRegistration{
		{ID: "r1", UserID: "u1", Endpoint: "good"},
		{ID: "r2", UserID: "u1", Endpoint: "bad"},
	}}

	r := newTestRouter(live, push, regs)

	out, err := r.Deliver(context.Background(), testNotification())
	require.NoError(t, err)

	assert.True(t, out.Durable, "durable path must be taken so the unread flag gets set")
	assert.Equal(t, 2, out.PushAttempts)
	assert.Equal(t, 1, out.PushFailures)
	assert.Equal(t, []string{"good"}, push.sent)
}

func TestDeliver_DisconnectRaceIsDeliveryFailureNotDurable(t *testing.T) {
	live := &fakeLive{err: domain.ErrDeliveryFailed}
	push := &fakePush{}
	regs := &fakeRegs{}

	r := newTestRouter(live, push, regs)

	out, err := r.Deliver(context.Background(), testNotification())
	require.NoError(t, err)

	assert.True(t, out.Live)
	assert.False(t, out.Delivered)
	assert.False(t, out.Durable)
	assert.False(t, regs.listed)
}

func TestDeliver_NoRegistrationsStillDurable(t *testing.T) {
	live := &fakeLive{err: domain.ErrNotConnected}
	push := &fakePush{}
	regs := &fakeRegs{}

	r := newTestRouter(live, push, regs)

	out, err := r.Deliver(context.Background(), testNotification())
	require.NoError(t, err)

	assert.True(t, out.Durable)
	assert.Zero(t, out.PushAttempts)
}

func TestDeliver_NoPushConfigured(t *testing.T) {
	live := &fakeLive{err: domain.ErrNotConnected}
	regs := &fakeRegs{regs: []domain.PushRegistration{{ID: "r1", Endpoint: "e1"}}}

	r := newTestRouter(live, nil, regs)

	out, err := r.Deliver(context.Background(), testNotification())
	require.NoError(t, err)

	assert.True(t, out.Durable)
	assert.False(t, regs.listed)
	assert.Zero(t, out.PushAttempts)
}

func TestDeliver_UnexpectedLiveErrorStillRouted(t *testing.T) {
	live := &fakeLive{err: errors.New("boom")}

	r := newTestRouter(live, &fakePush{}, &fakeRegs{})

	out, err := r.Deliver(context.Background(), testNotification())
	require.NoError(t, err)
	assert.True(t, out.Live)
	assert.False(t, out.Delivered)
}
