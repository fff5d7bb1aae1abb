package database

import (
	"database/sql/driver"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"
)

// init registers the scalar functions sqlite needs to behave like the
// MariaDB/PostgreSQL backends for the handful of expressions this package's
// Builder and callers rely on, so the same SQL fragment means the same
// thing on every backend. Registration is process-wide (modernc.org/sqlite
// has no notion of "this connection only"), so it happens once here rather
// than per-Node.
func init() {
	must := func(err error) {
		if err != nil {
			panic("database: registering sqlite scalar function: " + err.Error())
		}
	}

	must(sqlite.RegisterScalarFunction("UNIX_TIMESTAMP", -1, sqliteUnixTimestamp))
	must(sqlite.RegisterScalarFunction("FROM_UNIXTIME", -1, sqliteFromUnixtime))
	must(sqlite.RegisterDeterministicScalarFunction("REGEXP", 3, sqliteRegexp))
	must(sqlite.RegisterDeterministicScalarFunction("DIRNAME", 1, sqliteDirname))
	must(sqlite.RegisterScalarFunction("NOW", 0, sqliteNow))
}

// sqliteUnixTimestamp implements UNIX_TIMESTAMP() and UNIX_TIMESTAMP(text[,fmt]),
// mirroring MariaDB's function of the same name: with no arguments it
// returns the current time; otherwise it converts its first argument (an
// integer, a float, or text in one of the layouts parseSQLiteDateTime
// accepts) to UNIX seconds. A second fmt argument is accepted and ignored.
func sqliteUnixTimestamp(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) == 0 {
		return time.Now().Unix(), nil
	}

	switch v := args[0].(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		return parseSQLiteDateTime(v), nil
	default:
		return int64(0), nil
	}
}

// sqliteFromUnixtime implements FROM_UNIXTIME(ts[,fmt]), the converse of
// UNIX_TIMESTAMP: given UNIX seconds, returns an ISO-8601 "YYYY-MM-DD
// HH:MM:SS" string. fmt, if given, is ignored beyond accepting it, since no
// caller of this package requests a custom layout.
func sqliteFromUnixtime(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) == 0 {
		return nil, nil
	}

	var sec int64
	switch v := args[0].(type) {
	case int64:
		sec = v
	case float64:
		sec = int64(v)
	default:
		return nil, nil
	}

	return time.Unix(sec, 0).UTC().Format("2006-01-02 15:04:05"), nil
}

// sqliteNow implements NOW(), matching MariaDB/PostgreSQL's current-moment
// function, as an ISO-8601 string.
func sqliteNow(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return time.Now().UTC().Format("2006-01-02 15:04:05"), nil
}

// sqliteRegexp implements REGEXP(pattern, caseSensitive, text), returning
// 1/0 rather than a bool since sqlite has no native boolean storage class.
func sqliteRegexp(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 3 {
		return int64(0), nil
	}

	pattern, _ := args[0].(string)
	text, _ := args[2].(string)

	caseSensitive := true
	switch v := args[1].(type) {
	case int64:
		caseSensitive = v != 0
	case bool:
		caseSensitive = v
	}

	if !caseSensitive {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return int64(0), nil
	}

	if re.MatchString(text) {
		return int64(1), nil
	}
	return int64(0), nil
}

// sqliteDirname implements DIRNAME(path), matching the directory portion a
// caller would get from a POSIX dirname(3) call.
func sqliteDirname(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 1 {
		return "", nil
	}

	p, _ := args[0].(string)
	return path.Dir(p), nil
}

// parseSQLiteDateTime parses the handful of text datetime formats sqlite
// itself accepts ("YYYY-MM-DD HH:MM:SS", with optional fractional seconds),
// returning UNIX seconds. Text that is a plain integer is returned as that
// number; anything else yields 0.
func parseSQLiteDateTime(text string) int64 {
	text = strings.TrimSpace(text)

	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Unix()
		}
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n
	}

	return 0
}
