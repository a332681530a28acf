package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/busdesk/internal/console"
)

type fakePublisher struct {
	calls []published
	err   error
}

type published struct {
	session string
	bus     int64
	routes  []int64
}

func (f *fakePublisher) PublishSchedulesChanged(_ context.Context, sessionID string, busID int64, routeIDs []int64) error {
	f.calls = append(f.calls, published{session: sessionID, bus: busID, routes: routeIDs})
	return f.err
}

func TestSchedulesChanged_WithoutStorePublishes(t *testing.T) {
	pub := &fakePublisher{}
	svc := New(nil, pub, nil)
	sid := uuid.New()

	err := svc.Broadcaster(sid).SchedulesChanged(context.Background(), 4, []int64{7, 9})
	require.NoError(t, err)

	require.Len(t, pub.calls, 1)
	assert.Equal(t, sid.String(), pub.calls[0].session)
	assert.Equal(t, int64(4), pub.calls[0].bus)
	assert.Equal(t, []int64{7, 9}, pub.calls[0].routes)
}

func TestSchedulesChanged_NoRoutesIsNoop(t *testing.T) {
	pub := &fakePublisher{}
	svc := New(nil, pub, nil)

	require.NoError(t, svc.SchedulesChanged(context.Background(), uuid.New(), 4, nil))
	assert.Empty(t, pub.calls)
}

func TestSchedulesChanged_PublishErrorIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	svc := New(nil, pub, nil)

	assert.NoError(t, svc.SchedulesChanged(context.Background(), uuid.New(), 1, []int64{2}))
}

func TestRecent_Disabled(t *testing.T) {
	svc := New(nil, nil, nil)

	_, err := svc.Recent(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNotifier_WithoutStoreDoesNothing(t *testing.T) {
	svc := New(nil, nil, nil)
	n := svc.Notifier(uuid.New(), func() int64 { return 1 })

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), console.Success("Route", "Route created"))
	})
}
