package database

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/torsten-rupp/bardb/config"
)

// BackendKind identifies which of the three back-ends a Specifier targets.
//
// The string values double as the database/sql driver name registered by
// each backend's package init().
type BackendKind string

const (
	Sqlite     BackendKind = "sqlite"
	MariaDB    BackendKind = "mysql"
	PostgreSQL BackendKind = "postgres"
)

// Secret holds a password. It is zeroed on Zero() rather than relying on a
// destructor, since Go has none; callers that parse a Specifier from
// untrusted input should call Zero() once the connection has been
// established.
type Secret struct {
	data []byte
}

// NewSecret wraps s in a Secret.
func NewSecret(s string) Secret {
	return Secret{data: []byte(s)}
}

// Reveal returns the secret's plaintext.
func (s Secret) Reveal() string {
	return string(s.data)
}

// Zero overwrites the secret's backing bytes with zero.
func (s *Secret) Zero() {
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = nil
}

// Specifier describes where and how to connect: one of a Sqlite path, or a
// MariaDB/PostgreSQL host+credentials+database tuple.
type Specifier struct {
	Kind     BackendKind
	Path     string // Sqlite only; empty selects an in-memory database
	Host     string
	User     string
	Password Secret
	Database string
}

// Identity returns a string that uniquely identifies the database this
// Specifier points at, ignoring the password, for use as the Registry's
// deduplication key.
func (s Specifier) Identity() string {
	switch s.Kind {
	case Sqlite:
		return string(Sqlite) + ":" + s.Path
	default:
		return string(s.Kind) + ":" + s.Host + ":" + s.User + ":" + strings.ToLower(s.Database)
	}
}

// ParseSpecifier parses a URI of shape scheme:field1:field2:field3:field4.
//
// sqlite/sqlite3 take a filesystem path (possibly empty, selecting an
// in-memory database). mariadb/postgresql take host:user[:password[:database]],
// using defaultDatabase when no database segment is given. An unrecognised
// scheme defaults to sqlite, treating the whole URI as the path.
func ParseSpecifier(uri string, defaultDatabase string) (Specifier, error) {
	scheme, rest, hasScheme := strings.Cut(uri, ":")

	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3":
		return Specifier{Kind: Sqlite, Path: rest}, nil
	case "mariadb":
		return parseServerSpecifier(MariaDB, rest, defaultDatabase)
	case "postgresql":
		return parseServerSpecifier(PostgreSQL, rest, defaultDatabase)
	default:
		if !hasScheme {
			return Specifier{Kind: Sqlite, Path: uri}, nil
		}
		// Unrecognised scheme: per spec, the whole URI (including the bogus
		// "scheme:") is treated as the sqlite path.
		return Specifier{Kind: Sqlite, Path: uri}, nil
	}
}

func parseServerSpecifier(kind BackendKind, rest string, defaultDatabase string) (Specifier, error) {
	parts := strings.SplitN(rest, ":", 4)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Specifier{}, errors.Errorf("%s specifier requires at least host:user, got %q", kind, rest)
	}

	spec := Specifier{Kind: kind, Host: parts[0], User: parts[1], Database: defaultDatabase}
	if len(parts) >= 3 {
		spec.Password = NewSecret(parts[2])
	}
	if len(parts) >= 4 && parts[3] != "" {
		spec.Database = parts[3]
	}

	return spec, nil
}

// OpenMode is a composable flag set describing how a Handle should be opened.
type OpenMode uint

const (
	ModeReadOnly OpenMode = 1 << iota
	ModeReadWrite
	ModeCreate
	ModeForceCreate
	ModeMemory
	ModeShared
	ModeAux
)

func (m OpenMode) Has(flag OpenMode) bool {
	return m&flag != 0
}

// Config is a structured, YAML/env-loadable counterpart to Specifier, for
// callers that drive connection settings from an application config file
// rather than a raw URI.
type Config struct {
	Type     string     `yaml:"type" env:"TYPE" default:"sqlite"`
	Host     string     `yaml:"host" env:"HOST"`
	Port     int        `yaml:"port" env:"PORT"`
	Database string     `yaml:"database" env:"DATABASE"`
	User     string     `yaml:"user" env:"USER"`
	Password string     `yaml:"password" env:"PASSWORD,unset"`
	TLS      config.TLS `yaml:",inline"`
	Options  config.DatabaseOptions `yaml:",inline"`
}

// Validate checks constraints in the supplied database configuration.
func (c *Config) Validate() error {
	switch c.Type {
	case "sqlite", "sqlite3", "mariadb", "postgresql":
	default:
		return unknownDbType(c.Type)
	}

	if c.Type != "sqlite" && c.Type != "sqlite3" {
		if c.Host == "" {
			return errors.New("database host missing")
		}
		if c.User == "" {
			return errors.New("database user missing")
		}
	}

	return c.Options.Validate()
}

// Specifier converts c into a Specifier.
func (c *Config) Specifier() (Specifier, error) {
	return ParseSpecifier(c.uri(), c.Database)
}

func (c *Config) uri() string {
	switch c.Type {
	case "sqlite", "sqlite3":
		return "sqlite:" + c.Database
	default:
		return c.Type + ":" + c.Host + ":" + c.User + ":" + c.Password + ":" + c.Database
	}
}

func unknownDbType(t string) error {
	return errors.Errorf(`unknown database type %q, must be one of: "sqlite", "mariadb", "postgresql"`, t)
}
