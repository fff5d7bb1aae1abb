package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/torsten-rupp/bardb/config"
	"github.com/torsten-rupp/bardb/driver"
	"github.com/torsten-rupp/bardb/logging"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// defaultLogger backs connections opened without an explicit Logger, so
// driver.RetryConnector always has somewhere to report retries.
var defaultLogger = logging.NewLogger(zap.NewNop().Sugar(), "database", 0)

// openSQLDB builds the *sql.DB pool backing one Node, dispatching to the
// backend-specific connector construction the way NewDbFromConfig does for
// MariaDB/PostgreSQL, extended with a Sqlite branch built from Specifier.Path
// and OpenMode rather than a network DSN.
func openSQLDB(spec Specifier, mode OpenMode, opts config.DatabaseOptions) (*sql.DB, error) {
	var db *sql.DB

	switch spec.Kind {
	case Sqlite:
		dsn := sqliteDSN(spec, mode)
		conn, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, errors.Wrap(err, "can't open sqlite database")
		}
		db = conn

		// A file-backed sqlite database only ever has one writer; a large
		// connection pool just serializes on SQLITE_BUSY instead of this
		// package's own lock coordinator, so keep the pool small.
		if mode.Has(ModeMemory) {
			db.SetMaxOpenConns(1)
		} else {
			db.SetMaxOpenConns(2)
		}

	case MariaDB:
		mysqlConfig := mysql.NewConfig()
		mysqlConfig.User = spec.User
		mysqlConfig.Passwd = spec.Password.Reveal()
		mysqlConfig.DBName = spec.Database
		mysqlConfig.Timeout = time.Duration(opts.ConnectTimeoutSeconds) * time.Second
		mysqlConfig.Params = map[string]string{
			"sql_mode":                 "'TRADITIONAL,ANSI_QUOTES'",
			"innodb_lock_wait_timeout": strconv.Itoa(opts.LockWaitTimeoutSeconds),
		}

		if isUnixAddr(spec.Host) {
			mysqlConfig.Net = "unix"
			mysqlConfig.Addr = spec.Host
		} else {
			mysqlConfig.Net = "tcp"
			mysqlConfig.Addr = spec.Host
		}

		connector, err := mysql.NewConnector(mysqlConfig)
		if err != nil {
			return nil, errors.Wrap(err, "can't open mariadb database")
		}

		db = sql.OpenDB(driver.NewConnector(connector, defaultLogger))
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns / 3)

		if err := checkMinServerVersion(context.Background(), db, opts.MinServerVersion); err != nil {
			_ = db.Close()
			return nil, err
		}

	case PostgreSQL:
		// Database names are case-folded by PostgreSQL's CREATE DATABASE
		// unless quoted; lower-case here so Specifier.Identity() dedup and
		// the actual connected database agree regardless of how a caller
		// capitalised it.
		dbName := strings.ToLower(spec.Database)

		uri := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(spec.User, spec.Password.Reveal()),
			Path:   "/" + url.PathEscape(dbName),
		}

		query := url.Values{
			"connect_timeout":   {strconv.Itoa(opts.ConnectTimeoutSeconds)},
			"binary_parameters": {"yes"},
			"host":              {spec.Host},
			"sslmode":           {"disable"},
		}
		uri.RawQuery = query.Encode()

		connector, err := pq.NewConnector(uri.String())
		if err != nil {
			return nil, errors.Wrap(err, "can't open postgresql database")
		}

		db = sql.OpenDB(driver.NewConnector(connector, defaultLogger))
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns / 3)

		// lib/pq speaks only the v3 frontend/backend protocol; a server
		// that doesn't support it fails the handshake before a ping can
		// succeed, so a successful ping already proves the requirement.
		if err := db.PingContext(context.Background()); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "can't verify postgresql protocol version")
		}

	default:
		return nil, errors.Errorf("unknown backend kind %q", spec.Kind)
	}

	return db, nil
}

// checkMinServerVersion queries the connected MariaDB/MySQL server's
// version and fails if it is older than minVersion.
func checkMinServerVersion(ctx context.Context, db *sql.DB, minVersion string) error {
	var raw string
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&raw); err != nil {
		return errors.Wrap(err, "can't determine server version")
	}

	got, err := parseLeadingSemver(raw)
	if err != nil {
		return errors.Wrapf(err, "can't parse server version %q", raw)
	}

	min, err := semver.NewVersion(minVersion)
	if err != nil {
		return errors.Wrapf(err, "invalid configured minimum server version %q", minVersion)
	}

	if got.LessThan(*min) {
		return errors.Errorf("server version %s is older than the required minimum %s", got, min)
	}

	return nil
}

// parseLeadingSemver extracts the leading "X.Y.Z" from a MariaDB/MySQL
// VERSION() string such as "10.11.6-MariaDB-1:10.11.6+maria~ubu2204".
func parseLeadingSemver(raw string) (*semver.Version, error) {
	end := len(raw)
	for i, c := range raw {
		if c != '.' && (c < '0' || c > '9') {
			end = i
			break
		}
	}
	return semver.NewVersion(raw[:end])
}

// sqliteDSN renders a modernc.org/sqlite data source name from spec and mode.
func sqliteDSN(spec Specifier, mode OpenMode) string {
	path := spec.Path
	if mode.Has(ModeMemory) || path == "" {
		path = ":memory:"
		if mode.Has(ModeShared) {
			path = "file::memory:?cache=shared"
			return path
		}
	}

	query := url.Values{}
	if mode.Has(ModeReadOnly) {
		query.Set("mode", "ro")
	} else if mode.Has(ModeCreate) || mode.Has(ModeForceCreate) {
		query.Set("mode", "rwc")
	} else {
		query.Set("mode", "rw")
	}

	if len(query) == 0 {
		return path
	}

	return fmt.Sprintf("file:%s?%s", path, query.Encode())
}

func isUnixAddr(host string) bool {
	return len(host) > 0 && host[0] == '/'
}
