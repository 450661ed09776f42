package editor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/payload"
	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

func openEditor(t *testing.T) *Editor {
	t.Helper()
	e, err := New(context.Background(), Config{Shipments: upstream.DemoShipments()[:1]}, Deps{Logger: zerolog.Nop()})
	require.NoError(t, err)
	return e
}

func TestRegistryGetAndRemove(t *testing.T) {
	r := NewRegistry(time.Minute, zerolog.Nop())
	e := openEditor(t)
	r.Add(e)

	got, err := r.Get(e.ID())
	require.NoError(t, err)
	require.Same(t, e, got)

	r.Remove(e.ID())
	require.True(t, e.Closed())
	_, err = r.Get(e.ID())
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryDropsClosedEditors(t *testing.T) {
	r := NewRegistry(time.Minute, zerolog.Nop())
	e := openEditor(t)
	r.Add(e)
	require.NoError(t, e.Cancel())

	_, err := r.Get(e.ID())
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.Zero(t, r.Len())
}

func TestRegistrySweepExpiresIdleEditors(t *testing.T) {
	r := NewRegistry(time.Minute, zerolog.Nop())
	idle, fresh := openEditor(t), openEditor(t)
	r.Add(idle)
	r.Add(fresh)

	r.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	fresh.mu.Lock()
	fresh.lastUsed = r.now()
	fresh.mu.Unlock()

	require.Equal(t, 1, r.Sweep())
	require.True(t, idle.Closed())
	require.False(t, fresh.Closed())
	require.Equal(t, 1, r.Len())
}

func TestRegistrySweeperSchedule(t *testing.T) {
	r := NewRegistry(time.Minute, zerolog.Nop())
	require.Error(t, r.StartSweeper("not a schedule"))
	require.NoError(t, r.StartSweeper("@every 1h"))

	e := openEditor(t)
	r.Add(e)
	r.Close()
	require.True(t, e.Closed())
	require.Zero(t, r.Len())
}

func TestRegistryStaysResponsiveDuringSlowSave(t *testing.T) {
	r := NewRegistry(time.Minute, zerolog.Nop())
	entered := make(chan struct{})
	release := make(chan struct{})
	slow, err := New(context.Background(), Config{
		Shipments: upstream.DemoShipments()[:1],
		OnSave: func(context.Context, payload.Envelope) error {
			close(entered)
			<-release
			return nil
		},
	}, Deps{Logger: zerolog.Nop()})
	require.NoError(t, err)
	other := openEditor(t)
	r.Add(slow)
	r.Add(other)

	saved := make(chan error, 1)
	go func() {
		_, err := slow.Save(context.Background())
		saved <- err
	}()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("save callback not reached")
	}

	r.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	other.mu.Lock()
	other.lastUsed = r.now()
	other.mu.Unlock()

	swept := make(chan int, 1)
	go func() { swept <- r.Sweep() }()
	select {
	case n := <-swept:
		require.Zero(t, n, "a session that is saving is not idle")
	case <-time.After(time.Second):
		t.Fatal("sweep waited on the running save")
	}

	found := make(chan error, 1)
	go func() {
		_, err := r.Get(other.ID())
		found <- err
	}()
	select {
	case err := <-found:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("lookup waited on the running save")
	}

	_, err = slow.AddItem(slow.batch.IDs()[0], liquidation.DeductionItem{LineItem: liquidation.LineItem{
		Rubro: "Ajuste por peso", BaseKey: liquidation.BasisFijo, Valor: 1,
	}})
	require.ErrorIs(t, err, ErrSaving)
	require.ErrorIs(t, slow.Cancel(), ErrSaving)
	require.False(t, slow.Closed())

	close(release)
	require.NoError(t, <-saved)
	require.True(t, slow.Closed())
	require.Equal(t, 1, r.Sweep())
	require.Equal(t, 1, r.Len())
}
