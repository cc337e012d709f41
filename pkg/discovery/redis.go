package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/logger"
)

const snapshotCacheKey = "providers"

// RedisCatalog publishes a ServiceDiscovery snapshot to Redis so other
// processes can rebuild the same provider topology.
//
// Layout under the namespace:
//
//	<ns>:providers                 list of provider names, registration order
//	<ns>:providers:<name>          provider JSON
//	<ns>:provider_types:<type>     set of provider names of that type
type RedisCatalog struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	logger    logger.Logger
	// Last successfully published or loaded snapshot, used when Redis is down.
	cache *gocache.Cache
}

// CatalogOption configures a RedisCatalog.
type CatalogOption func(*RedisCatalog)

// WithTTL expires published keys. Zero keeps them forever.
func WithTTL(ttl time.Duration) CatalogOption {
	return func(c *RedisCatalog) { c.ttl = ttl }
}

// WithCacheExpiry bounds how long the local fallback snapshot stays usable.
func WithCacheExpiry(d time.Duration) CatalogOption {
	return func(c *RedisCatalog) { c.cache = gocache.New(d, 2*d) }
}

// NewRedisCatalog wraps an existing client.
func NewRedisCatalog(client *redis.Client, namespace string, log logger.Logger, opts ...CatalogOption) *RedisCatalog {
	if namespace == "" {
		namespace = "capflow"
	}
	c := &RedisCatalog{
		client:    client,
		namespace: namespace,
		logger:    logger.OrNoOp(log).With(map[string]interface{}{"component": "redis_catalog"}),
		cache:     gocache.New(10*time.Minute, 20*time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRedisCatalogFromURL parses redisURL, connects with retry and returns a catalog.
func NewRedisCatalogFromURL(ctx context.Context, redisURL, namespace string, log logger.Logger, opts ...CatalogOption) (*RedisCatalog, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	c := NewRedisCatalog(redis.NewClient(redisOpts), namespace, log, opts...)
	if err := c.connectWithRetry(ctx, 3); err != nil {
		_ = c.client.Close()
		return nil, err
	}
	return c, nil
}

func (c *RedisCatalog) connectWithRetry(ctx context.Context, maxRetries int) error {
	ctx, span := otel.Tracer("capflow.discovery").Start(ctx, "Redis.Connect")
	defer span.End()

	for attempt := 0; attempt < maxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := c.client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			c.logger.Info("Connected to Redis", map[string]interface{}{"attempt": attempt + 1})
			span.SetStatus(codes.Ok, "Connected")
			return nil
		}

		c.logger.Warn("Failed to connect to Redis", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
		span.RecordError(err)

		if attempt < maxRetries-1 {
			backoff := time.Duration(math.Pow(2, float64(attempt+1))) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	span.SetStatus(codes.Error, "Connection failed")
	return fmt.Errorf("%w: redis unreachable after %d attempts", core.ErrConnectionFailed, maxRetries)
}

// Client exposes the underlying Redis client so other stores can share it.
func (c *RedisCatalog) Client() *redis.Client {
	return c.client
}

// Publish replaces the stored snapshot with the providers of sd.
func (c *RedisCatalog) Publish(ctx context.Context, sd *ServiceDiscovery) error {
	providers := sd.Providers()

	ctx, span := otel.Tracer("capflow.discovery").Start(ctx, "Catalog.Publish",
		trace.WithAttributes(
			attribute.String("catalog.namespace", c.namespace),
			attribute.Int("providers.count", len(providers)),
		),
	)
	defer span.End()

	listKey := c.key("providers")
	previous, err := c.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil && err != redis.Nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Read failed")
		return c.unavailable("Catalog.Publish", err)
	}

	pipe := c.client.TxPipeline()
	for _, name := range previous {
		pipe.Del(ctx, c.key("providers", name))
	}
	for _, providerType := range c.knownTypes(ctx, previous) {
		pipe.Del(ctx, c.key("provider_types", providerType))
	}
	pipe.Del(ctx, listKey)

	for _, p := range providers {
		data, err := json.Marshal(p)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to serialize provider %s: %w", p.Name, err)
		}
		pipe.Set(ctx, c.key("providers", p.Name), data, c.ttl)
		pipe.RPush(ctx, listKey, p.Name)
		typeKey := c.key("provider_types", p.ProviderType)
		pipe.SAdd(ctx, typeKey, p.Name)
		if c.ttl > 0 {
			pipe.Expire(ctx, typeKey, c.ttl)
		}
	}
	if c.ttl > 0 && len(providers) > 0 {
		pipe.Expire(ctx, listKey, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Error("Failed to publish provider catalog", map[string]interface{}{
			"namespace": c.namespace,
			"error":     err.Error(),
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, "Publish failed")
		return c.unavailable("Catalog.Publish", err)
	}

	c.cache.SetDefault(snapshotCacheKey, providers)
	c.logger.Info("Provider catalog published", map[string]interface{}{
		"namespace": c.namespace,
		"providers": len(providers),
	})
	span.SetStatus(codes.Ok, "Published")
	return nil
}

// Load rebuilds a ServiceDiscovery from Redis, preserving registration
// order. When Redis is unreachable the last known snapshot is used.
func (c *RedisCatalog) Load(ctx context.Context, log logger.Logger) (*ServiceDiscovery, error) {
	ctx, span := otel.Tracer("capflow.discovery").Start(ctx, "Catalog.Load",
		trace.WithAttributes(attribute.String("catalog.namespace", c.namespace)),
	)
	defer span.End()

	providers, err := c.fetch(ctx)
	if err != nil {
		cached, ok := c.cache.Get(snapshotCacheKey)
		if !ok {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Load failed")
			return nil, c.unavailable("Catalog.Load", err)
		}
		c.logger.Warn("Failed to query Redis, using cached provider catalog", map[string]interface{}{
			"error": err.Error(),
		})
		span.AddEvent("Falling back to cache")
		providers = cached.([]ProviderRegistration)
	} else {
		c.cache.SetDefault(snapshotCacheKey, providers)
	}

	sd := NewServiceDiscovery(log)
	for _, p := range providers {
		if _, err := sd.RegisterProvider(p); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	span.SetAttributes(attribute.Int("providers.count", len(providers)))
	span.SetStatus(codes.Ok, "Loaded")
	return sd, nil
}

// ProviderNames returns the sorted names stored under providerType.
func (c *RedisCatalog) ProviderNames(ctx context.Context, providerType string) ([]string, error) {
	names, err := c.client.SMembers(ctx, c.key("provider_types", providerType)).Result()
	if err != nil {
		return nil, c.unavailable("Catalog.ProviderNames", err)
	}
	sort.Strings(names)
	return names, nil
}

func (c *RedisCatalog) fetch(ctx context.Context) ([]ProviderRegistration, error) {
	names, err := c.client.LRange(ctx, c.key("providers"), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = c.key("providers", name)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	providers := make([]ProviderRegistration, 0, len(values))
	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			c.logger.Warn("Provider listed but missing, skipping", map[string]interface{}{"name": names[i]})
			continue
		}
		var p ProviderRegistration
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("failed to deserialize provider %s: %w", names[i], err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// knownTypes reads the stored provider types for names so stale type sets
// can be cleared before a republish.
func (c *RedisCatalog) knownTypes(ctx context.Context, names []string) []string {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = c.key("providers", name)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var types []string
	for _, raw := range values {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var p ProviderRegistration
		if json.Unmarshal([]byte(s), &p) != nil {
			continue
		}
		if _, ok := seen[p.ProviderType]; !ok {
			seen[p.ProviderType] = struct{}{}
			types = append(types, p.ProviderType)
		}
	}
	return types
}

func (c *RedisCatalog) key(parts ...string) string {
	k := c.namespace
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (c *RedisCatalog) unavailable(op string, err error) error {
	return &core.FrameworkError{
		Op:   op,
		Kind: "discovery",
		ID:   c.namespace,
		Err:  fmt.Errorf("%w: %v", core.ErrDiscoveryUnavailable, err),
	}
}

// Close releases the Redis client.
func (c *RedisCatalog) Close() error {
	return c.client.Close()
}
