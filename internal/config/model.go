// internal/config/model.go
//
// Typed configuration aggregate.
//
// Context
// -------
// The koanf tree assembled in loader.go is unmarshalled into these
// structs, validated, and cached.  Sections map 1:1 to the top-level
// YAML keys in conf/global.yaml.
package config

import "strings"

//
// HTTP section
//

type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

//
// Database section
//

// Database holds the DSN template and the secret that completes it.
//
// The *template* (`DSN`) is kept in YAML so operators can tweak host,
// port, or flags without touching Vault.  The *secret* portion
// (`Password`) is stored in Vault or the environment and injected at
// runtime, keeping credentials out of flat files and git history.  When
// the template contains `%s`, ResolvedDSN substitutes the password.
type Database struct {
	DSN               string `koanf:"dsn" validate:"required"`
	Password          string `koanf:"password"`
	PasswordVaultPath string `koanf:"password_vault_path"`
	PasswordVaultKey  string `koanf:"password_vault_key"`
	MaxOpenConns      int    `koanf:"max_open_conns"`
	MaxIdleConns      int    `koanf:"max_idle_conns"`
}

// ResolvedDSN substitutes the password into the DSN template, or returns
// the template untouched when it carries no verb.
func (d Database) ResolvedDSN() string {
	if strings.Contains(d.DSN, "%s") {
		return strings.Replace(d.DSN, "%s", d.Password, 1)
	}
	return d.DSN
}

//
// Geo section (optional)
//

// Geo points at a local GeoLite2 database for request enrichment.  An
// empty path disables lookups.
type Geo struct {
	MMDBPath string `koanf:"mmdb_path"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.  The loader
// discovers `Root` (repo root or DOCSTORE_ROOT override) so later code
// can build absolute file paths.
type Paths struct {
	Root string
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Geo      Geo      `koanf:"geo"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}
