package config

import "github.com/creasty/defaults"

// DatabaseOptions are the connection-pool tunables applied when a Handle is
// opened for a database, layered on top of whatever the backend driver
// itself defaults to. It is deliberately kept free of a direct dependency
// on package database to avoid an import cycle; database.Config embeds it.
type DatabaseOptions struct {
	// MaxOpenConns caps the number of connections this process keeps open
	// to one database, shared by every caller that resolves to the same
	// connection identity.
	MaxOpenConns int `yaml:"max_connections" env:"MAX_CONNECTIONS" default:"16"`

	// ConnectTimeoutSeconds bounds how long establishing a new connection
	// may take before it is treated as a connect failure.
	ConnectTimeoutSeconds int `yaml:"connect_timeout" env:"CONNECT_TIMEOUT" default:"30"`

	// BusyTimeoutSeconds is the default ceiling a lock wait blocks for
	// when the caller did not request an indefinite wait.
	BusyTimeoutSeconds int `yaml:"busy_timeout" env:"BUSY_TIMEOUT" default:"10"`

	// MaxConnectionsPerTable caps how many connections the bulk streaming
	// layer opens against a single table at once, regardless of what each
	// connection is doing (insert, upsert, delete, update).
	MaxConnectionsPerTable int `yaml:"max_connections_per_table" env:"MAX_CONNECTIONS_PER_TABLE" default:"8"`

	// MaxPlaceholdersPerStatement bounds how many bound parameters a single
	// bulk INSERT/UPDATE/DELETE statement built by the streaming layer may
	// contain, trading fewer round-trips against longer-running statements.
	MaxPlaceholdersPerStatement int `yaml:"max_placeholders_per_statement" env:"MAX_PLACEHOLDERS_PER_STATEMENT" default:"8192"`

	// MaxRowsPerTransaction bounds how many rows the streaming layer commits
	// in a single transaction before starting the next one.
	MaxRowsPerTransaction int `yaml:"max_rows_per_transaction" env:"MAX_ROWS_PER_TRANSACTION" default:"8192"`

	// MinServerVersion is the lowest MariaDB/MySQL server version this
	// process accepts; a server reporting an older version fails Open.
	MinServerVersion string `yaml:"min_server_version" env:"MIN_SERVER_VERSION" default:"10.3.0"`

	// LockWaitTimeoutSeconds is applied as MariaDB's innodb_lock_wait_timeout
	// session variable, bounding how long a statement blocks on a row lock
	// before the server itself gives up and returns KindBusy.
	LockWaitTimeoutSeconds int `yaml:"lock_wait_timeout" env:"LOCK_WAIT_TIMEOUT" default:"50"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (o *DatabaseOptions) UnmarshalYAML(unmarshal func(interface{}) error) error {
	if err := defaults.Set(o); err != nil {
		return err
	}
	// Prevent recursion.
	type self DatabaseOptions
	if err := unmarshal((*self)(o)); err != nil {
		return err
	}

	return nil
}

// Validate checks constraints in the supplied connection-pool options.
func (o *DatabaseOptions) Validate() error {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 16
	}
	if o.ConnectTimeoutSeconds <= 0 {
		o.ConnectTimeoutSeconds = 30
	}
	if o.BusyTimeoutSeconds <= 0 {
		o.BusyTimeoutSeconds = 10
	}
	if o.MaxConnectionsPerTable <= 0 {
		o.MaxConnectionsPerTable = 8
	}
	if o.MaxPlaceholdersPerStatement <= 0 {
		o.MaxPlaceholdersPerStatement = 8192
	}
	if o.MaxRowsPerTransaction <= 0 {
		o.MaxRowsPerTransaction = 8192
	}
	if o.MinServerVersion == "" {
		o.MinServerVersion = "10.3.0"
	}
	if o.LockWaitTimeoutSeconds <= 0 {
		o.LockWaitTimeoutSeconds = 50
	}

	return nil
}
