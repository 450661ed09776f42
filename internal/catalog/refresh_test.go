package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-liquidacion/internal/catalog"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
)

type heldGuard struct {
	held bool
	keys []string
}

func (g *heldGuard) TryRun(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) (bool, error) {
	g.keys = append(g.keys, key)
	if g.held {
		return false, nil
	}
	return true, fn(ctx)
}

func TestRefresherWarmsCacheUnderGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	src := &fakeSource{rubros: []catalog.RubroOption{{Value: "Remote", Text: "Remote", Type: liquidation.RubroBoth}}}
	svc := catalog.NewService(catalog.ServiceConfig{
		Source: src,
		Cache:  catalog.NewCache(client, time.Minute),
		Logger: zerolog.Nop(),
	})
	guard := &heldGuard{}
	r := &catalog.Refresher{Service: svc, Guard: guard, Logger: zerolog.Nop()}

	ran, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Equal(t, []string{catalog.RefreshLockKey}, guard.keys)
	require.True(t, mr.Exists("liquidacion:catalog:rubros:deductions"))
	calls := src.calls

	guard.held = true
	ran, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	require.False(t, ran)
	require.Equal(t, calls, src.calls)
}

func TestRefresherRejectsBadSchedule(t *testing.T) {
	r := &catalog.Refresher{Service: catalog.NewService(catalog.ServiceConfig{}), Logger: zerolog.Nop()}
	require.Error(t, r.Start("every so often"))
	r.Stop()

	require.NoError(t, r.Start("@every 1h"))
	r.Stop()
}
