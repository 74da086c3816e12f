package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agencyops/internal/domain"
)

var (
	alice = &domain.Identity{ID: "alice", Role: domain.RoleMember, Department: domain.DepartmentAudiophiles}
	bob   = &domain.Identity{ID: "bob", Role: domain.RoleMember, Department: domain.DepartmentAudiophiles}
	vic   = &domain.Identity{ID: "vic", Role: domain.RoleMember, Department: domain.DepartmentVismasters}
	dana  = &domain.Identity{ID: "dana", Role: domain.RoleDirector, Department: domain.DepartmentHR}
)

func TestSendDirect(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	var received int32
	unsub := bus.Subscribe(*bob, func(_ context.Context, msg Message) error {
		atomic.AddInt32(&received, 1)
		assert.Equal(t, "alice", msg.From)
		return nil
	})
	bus.Subscribe(*vic, func(context.Context, Message) error {
		t.Error("vic must not receive a direct message to bob")
		return nil
	})

	msg, err := bus.Send(ctx, alice, SendOptions{To: "bob", Content: " hi "})
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
	assert.NotEmpty(t, msg.ID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&received))

	unsub()
	_, err = bus.Send(ctx, alice, SendOptions{To: "bob", Content: "again"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&received))
}

func TestDepartmentChannel(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	var mu sync.Mutex
	got := map[string]int{}
	for _, id := range []*domain.Identity{alice, bob, vic} {
		who := id.ID
		bus.Subscribe(*id, func(_ context.Context, msg Message) error {
			mu.Lock()
			defer mu.Unlock()
			got[who]++
			assert.Equal(t, domain.DepartmentAudiophiles, msg.Department)
			return nil
		})
	}
	_, err := bus.Send(ctx, alice, SendOptions{Content: "standup"})
	require.NoError(t, err)
	// the sender gets its own post once; vic is outside the channel
	assert.Equal(t, map[string]int{"alice": 1, "bob": 1}, got)
}

func TestHistoryVisibility(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()
	for _, send := range []struct {
		from *domain.Identity
		opts SendOptions
	}{
		{alice, SendOptions{Content: "audio channel"}},
		{vic, SendOptions{Content: "vis channel"}},
		{alice, SendOptions{To: "bob", Content: "private"}},
		{vic, SendOptions{To: "dana", Content: "question"}},
	} {
		_, err := bus.Send(ctx, send.from, send.opts)
		require.NoError(t, err)
	}

	contents := func(msgs []Message) []string {
		out := []string{}
		for _, m := range msgs {
			out = append(out, m.Content)
		}
		return out
	}
	assert.Equal(t, []string{"audio channel", "private"}, contents(bus.History(bob, "", 0)))
	assert.Equal(t, []string{"vis channel", "question"}, contents(bus.History(vic, "", 0)))
	assert.Equal(t, []string{"audio channel", "vis channel", "question"}, contents(bus.History(dana, "", 0)))
	assert.Equal(t, []string{"private"}, contents(bus.History(alice, "bob", 0)))
	assert.Equal(t, []string{"private"}, contents(bus.History(alice, "", 1)))
	assert.Empty(t, bus.History(nil, "", 0))
}

func TestHistoryIsBounded(t *testing.T) {
	bus := NewBus()
	bus.maxHist = 3
	for i := 0; i < 5; i++ {
		_, err := bus.Send(context.Background(), alice, SendOptions{Content: "m"})
		require.NoError(t, err)
	}
	assert.Len(t, bus.History(alice, "", 0), 3)
}

func TestSendRejectsBadInput(t *testing.T) {
	bus := NewBus()
	_, err := bus.Send(context.Background(), nil, SendOptions{Content: "x"})
	var ferr domain.ForbiddenError
	assert.ErrorAs(t, err, &ferr)

	_, err = bus.Send(context.Background(), alice, SendOptions{To: "alice", Content: "  "})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Issues, 2)
}

func TestHandlerErrorsAreReported(t *testing.T) {
	bus := NewBus()
	boom := errors.New("boom")
	bus.Subscribe(*bob, func(context.Context, Message) error { return boom })
	msg, err := bus.Send(context.Background(), alice, SendOptions{To: "bob", Content: "x"})
	assert.ErrorIs(t, err, boom)
	assert.NotEmpty(t, msg.ID)
	assert.Len(t, bus.History(bob, "", 0), 1)
}
