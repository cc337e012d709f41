package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/capflow/core"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func sampleDiscovery(t *testing.T) *ServiceDiscovery {
	t.Helper()
	sd := NewServiceDiscovery(nil)
	_, err := sd.RegisterLLMProvider(ProviderRegistration{Name: "low", Priority: 1, APIKey: "secret"})
	require.NoError(t, err)
	_, err = sd.RegisterEmbeddingProvider(ProviderRegistration{Name: "embed", Priority: 2, Endpoint: "http://embed:8080"})
	require.NoError(t, err)
	_, err = sd.RegisterLLMProvider(ProviderRegistration{Name: "high", Priority: 10, Models: []string{"large"}})
	require.NoError(t, err)
	return sd
}

func TestRedisCatalogPublishAndLoad(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	catalog := NewRedisCatalog(client, "test", nil)

	require.NoError(t, catalog.Publish(ctx, sampleDiscovery(t)))

	assert.True(t, mr.Exists("test:providers:high"))
	members, err := mr.Members("test:provider_types:llm")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"low", "high"}, members)
	raw, err := mr.Get("test:providers:low")
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret")

	loaded, err := catalog.Load(ctx, nil)
	require.NoError(t, err)

	var names []string
	for _, p := range loaded.Providers() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"low", "embed", "high"}, names)

	best, ok := loaded.BestProvider(ProviderTypeLLM)
	require.True(t, ok)
	assert.Equal(t, "high", best.Name)
	assert.Equal(t, []string{"large"}, best.Models)

	llmNames, err := catalog.ProviderNames(ctx, ProviderTypeLLM)
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "low"}, llmNames)
}

func TestRedisCatalogRepublishClearsStaleEntries(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	catalog := NewRedisCatalog(client, "test", nil)

	require.NoError(t, catalog.Publish(ctx, sampleDiscovery(t)))

	replacement := NewServiceDiscovery(nil)
	_, err := replacement.RegisterSTTProvider(ProviderRegistration{Name: "whisper"})
	require.NoError(t, err)
	require.NoError(t, catalog.Publish(ctx, replacement))

	assert.False(t, mr.Exists("test:providers:high"))
	assert.False(t, mr.Exists("test:provider_types:llm"))

	loaded, err := catalog.Load(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, loaded.Providers(), 1)
	assert.True(t, loaded.HasProvider(ProviderTypeSTT))
}

func TestRedisCatalogTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	catalog := NewRedisCatalog(client, "ttl", nil, WithTTL(time.Minute))

	require.NoError(t, catalog.Publish(context.Background(), sampleDiscovery(t)))
	assert.Equal(t, time.Minute, mr.TTL("ttl:providers:low"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("ttl:providers:low"))
}

func TestRedisCatalogFallsBackToCache(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	catalog := NewRedisCatalog(client, "test", nil)

	require.NoError(t, catalog.Publish(ctx, sampleDiscovery(t)))
	mr.Close()

	loaded, err := catalog.Load(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, loaded.Providers(), 3)
}

func TestRedisCatalogUnavailableWithoutCache(t *testing.T) {
	mr, client := setupTestRedis(t)
	catalog := NewRedisCatalog(client, "test", nil)
	mr.Close()

	_, err := catalog.Load(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDiscoveryUnavailable))
	assert.True(t, core.IsRetryable(err))
}

func TestNewRedisCatalogFromURL(t *testing.T) {
	mr, _ := setupTestRedis(t)

	catalog, err := NewRedisCatalogFromURL(context.Background(), "redis://"+mr.Addr(), "", nil)
	require.NoError(t, err)
	defer catalog.Close()
	assert.Equal(t, "capflow", catalog.namespace)

	_, err = NewRedisCatalogFromURL(context.Background(), "://bad", "", nil)
	assert.Error(t, err)
}
