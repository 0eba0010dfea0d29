package oidc

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultKeySetTTL is how long a fetched key set is served without refetching
	DefaultKeySetTTL = 600 * time.Second

	// DefaultFetchTimeout bounds a single JWKS fetch
	DefaultFetchTimeout = 10 * time.Second
)

// ErrKeySetUnavailable is returned when the JWKS endpoint cannot be fetched or parsed
var ErrKeySetUnavailable = errors.New("signing key set unavailable")

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Clock reports the current time
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time { return time.Now() }

// JWKS represents the JSON Web Key Set document served by the identity provider
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a single JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeySet is an immutable snapshot of RSA verification keys indexed by key id
type KeySet struct {
	keys      map[string]*rsa.PublicKey
	FetchedAt time.Time
}

// Key returns the RSA key for kid
func (s *KeySet) Key(kid string) (*rsa.PublicKey, bool) {
	if s == nil {
		return nil, false
	}
	k, ok := s.keys[kid]
	return k, ok
}

// Len returns the number of usable keys
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// KeySetConfig holds configuration for KeySetCache
type KeySetConfig struct {
	URL          string
	TTL          time.Duration
	FetchTimeout time.Duration
}

// RefreshObserver is notified after each fetch attempt
type RefreshObserver interface {
	ObserveKeySetRefresh(err error, duration time.Duration)
}

// KeySetCache serves the identity provider's signing keys, refetching at most
// once per TTL window. Concurrent refreshes share one in-flight fetch.
type KeySetCache struct {
	url     string
	ttl     time.Duration
	timeout time.Duration
	doer    Doer
	clock   Clock
	logger  *zap.Logger
	obs     RefreshObserver

	mu      sync.RWMutex
	current *KeySet

	group singleflight.Group
}

// NewKeySetCache creates a key set cache. Zero TTL and timeout fall back to defaults.
func NewKeySetCache(cfg KeySetConfig, doer Doer, clock Clock, logger *zap.Logger) *KeySetCache {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultKeySetTTL
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if doer == nil {
		doer = &http.Client{Timeout: cfg.FetchTimeout}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &KeySetCache{
		url:     cfg.URL,
		ttl:     cfg.TTL,
		timeout: cfg.FetchTimeout,
		doer:    doer,
		clock:   clock,
		logger:  logger,
	}
}

// SetObserver attaches a refresh observer (metrics)
func (c *KeySetCache) SetObserver(obs RefreshObserver) {
	c.obs = obs
}

// KeySet returns the current key set, fetching a new one when the cached copy
// is older than the TTL.
func (c *KeySetCache) KeySet(ctx context.Context) (*KeySet, error) {
	if ks := c.fresh(); ks != nil {
		return ks, nil
	}

	ch := c.group.DoChan("jwks", func() (interface{}, error) {
		// a waiter may have lost the race to a refresh that just finished
		if ks := c.fresh(); ks != nil {
			return ks, nil
		}
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrKeySetUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*KeySet), nil
	}
}

// PublicKey resolves kid against the current key set
func (c *KeySetCache) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	ks, err := c.KeySet(ctx)
	if err != nil {
		return nil, err
	}
	key, ok := ks.Key(kid)
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrUnknownSigningKey, kid)
	}
	return key, nil
}

// Invalidate drops the cached key set so the next call refetches
func (c *KeySetCache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// fresh returns the cached set while now <= fetchedAt+ttl
func (c *KeySetCache) fresh() *KeySet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	if c.clock.Now().After(c.current.FetchedAt.Add(c.ttl)) {
		return nil
	}
	return c.current
}

func (c *KeySetCache) refresh(ctx context.Context) (*KeySet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	ks, err := c.fetch(ctx)
	if c.obs != nil {
		c.obs.ObserveKeySetRefresh(err, time.Since(start))
	}
	if err != nil {
		c.logger.Warn("jwks refresh failed",
			zap.String("url", c.url),
			zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	c.current = ks
	c.mu.Unlock()

	c.logger.Debug("jwks refreshed",
		zap.String("url", c.url),
		zap.Int("keys", ks.Len()))
	return ks, nil
}

func (c *KeySetCache) fetch(ctx context.Context) (*KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrKeySetUnavailable, resp.StatusCode)
	}

	var doc JWKS
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrKeySetUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for i := range doc.Keys {
		jwk := &doc.Keys[i]
		if jwk.Kty != "RSA" || jwk.Kid == "" {
			continue
		}
		pub, err := jwkToRSAPublicKey(jwk)
		if err != nil {
			c.logger.Debug("skipping unusable jwk",
				zap.String("kid", jwk.Kid),
				zap.Error(err))
			continue
		}
		keys[jwk.Kid] = pub
	}

	return &KeySet{keys: keys, FetchedAt: c.clock.Now()}, nil
}

// jwkToRSAPublicKey converts a JWK to an RSA public key
func jwkToRSAPublicKey(jwk *JWK) (*rsa.PublicKey, error) {
	if jwk.N == "" || jwk.E == "" {
		return nil, errors.New("missing modulus or exponent")
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 2 || e.Int64() > 1<<31-1 {
		return nil, errors.New("exponent out of range")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}
