// internal/vault/vault.go
//
// Vault client wrapper.
//
// Context
// -------
//   - Concurrency-safe wrapper around the HashiCorp Vault Go SDK.
//   - Adds simple KV-v2 helpers and per-key caching so boot paths and
//     reloads do not hammer the Vault server.
//   - The store uses it for exactly one secret today: the database
//     password referenced by database.password_vault_path.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx)                    // during boot.
//  2. pw,  err := cli.GetKV(ctx, path, key, ttl)    // anywhere in the app.
//
// Environment expectations
// ------------------------
// • VAULT_ADDR   – scheme and host of the Vault server.
// • VAULT_TOKEN  – initial token (falls back to ~/.vault-token).
package vault

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// Client is safe for concurrent use.  Create once at startup.  Zero value
// is invalid.
type Client struct {
	api *vault.Client

	cacheMu sync.RWMutex
	cache   map[string]cached // canonical "path#key" → value + expiry
}

type cached struct {
	val string
	exp time.Time
}

// New constructs a Vault client from the environment.
func New(ctx context.Context) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	return &Client{api: apiCli, cache: make(map[string]cached)}, nil
}

// GetKV reads one field from a KV-v2 secret, caching the value for ttl.
// path is "<mount>/<secret-path>", e.g. "secret/docstore/db".
func (c *Client) GetKV(ctx context.Context, path, key string, ttl time.Duration) (string, error) {
	ck := path + "#" + key

	c.cacheMu.RLock()
	if hit, ok := c.cache[ck]; ok && time.Now().Before(hit.exp) {
		c.cacheMu.RUnlock()
		return hit.val, nil
	}
	c.cacheMu.RUnlock()

	mount, rest, ok := strings.Cut(path, "/")
	if !ok {
		return "", fmt.Errorf("vault path %q: want <mount>/<secret-path>", path)
	}

	sec, err := c.api.KVv2(mount).Get(ctx, rest)
	if err != nil {
		return "", fmt.Errorf("vault read %q: %w", path, err)
	}
	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("vault secret %q has no key %q", path, key)
	}
	val, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("vault secret %q key %q is %T, want string", path, key, raw)
	}

	c.cacheMu.Lock()
	c.cache[ck] = cached{val: val, exp: time.Now().Add(ttl)}
	c.cacheMu.Unlock()

	zap.S().Debugw("vault secret read", "path", path, "key", key)
	return val, nil
}
