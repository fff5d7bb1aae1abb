package database

import "time"

// ValueKind describes the shape of a Value or Column.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueKey            // signed 64-bit row id
	ValueBool
	ValueInt32
	ValueInt64
	ValueUInt32
	ValueUInt64
	ValueDouble
	ValueEnum // unsigned 32-bit
	ValueDateTime
	ValueString  // owned text
	ValueCString // borrowed/zero-copy text
	ValueBlob
	ValueKeyArray // []int64, inlined as a comma-joined literal when used in a Filter
	ValueFullTextSearch
)

// Value is a tagged variant over the scalar types this package can bind and fetch.
//
// It optionally carries a column name, set through WithColumn when
// addressing an INSERT/UPDATE target. Values decoded from result rows leave
// it empty; Row.Column looks them up by name instead.
type Value struct {
	Kind   ValueKind
	Column string

	i64   int64
	u64   uint64
	f64   float64
	b     bool
	t     time.Time
	str   string
	blob  []byte
	keys  []int64
	expr  string // non-empty: a SQL sub-expression spliced verbatim instead of a bound placeholder
	isSet bool   // distinguishes Value{} (unset/zero) from an explicit None
}

func NewNone() Value                { return Value{Kind: ValueNone, isSet: true} }
func NewKey(id int64) Value         { return Value{Kind: ValueKey, i64: id, isSet: true} }
func NewBool(b bool) Value          { return Value{Kind: ValueBool, b: b, isSet: true} }
func NewInt32(v int32) Value        { return Value{Kind: ValueInt32, i64: int64(v), isSet: true} }
func NewInt64(v int64) Value        { return Value{Kind: ValueInt64, i64: v, isSet: true} }
func NewUInt32(v uint32) Value      { return Value{Kind: ValueUInt32, u64: uint64(v), isSet: true} }
func NewUInt64(v uint64) Value      { return Value{Kind: ValueUInt64, u64: v, isSet: true} }
func NewDouble(v float64) Value     { return Value{Kind: ValueDouble, f64: v, isSet: true} }
func NewEnum(v uint32) Value        { return Value{Kind: ValueEnum, u64: uint64(v), isSet: true} }
func NewString(s string) Value      { return Value{Kind: ValueString, str: s, isSet: true} }
func NewCString(s string) Value     { return Value{Kind: ValueCString, str: s, isSet: true} }
func NewBlob(b []byte) Value        { return Value{Kind: ValueBlob, blob: b, isSet: true} }
func NewKeyArray(ks []int64) Value  { return Value{Kind: ValueKeyArray, keys: ks, isSet: true} }
func NewFullTextSearch(s string) Value {
	return Value{Kind: ValueFullTextSearch, str: s, isSet: true}
}

// NewDateTime constructs a DateTime Value from UNIX seconds UTC.
func NewDateTime(unixSeconds int64) Value {
	return Value{Kind: ValueDateTime, i64: unixSeconds, t: time.Unix(unixSeconds, 0).UTC(), isSet: true}
}

// NewExpr constructs a Value that splices a SQL sub-expression into the
// statement text instead of being bound as a parameter (spec §4.5: "Values
// may reference a sub-SQL expression instead of a raw value").
func NewExpr(sqlExpr string) Value {
	return Value{Kind: ValueString, expr: sqlExpr, isSet: true}
}

// WithColumn returns a copy of v carrying the given column name.
func (v Value) WithColumn(name string) Value {
	v.Column = name
	return v
}

func (v Value) IsNone() bool  { return v.Kind == ValueNone || !v.isSet }
func (v Value) IsExpr() bool  { return v.expr != "" }
func (v Value) Expr() string  { return v.expr }
func (v Value) Bool() bool    { return v.b }
func (v Value) Int32() int32  { return int32(v.i64) }
func (v Value) Int64() int64  { return v.i64 }
func (v Value) UInt32() uint32 { return uint32(v.u64) }
func (v Value) UInt64() uint64 { return v.u64 }
func (v Value) Double() float64 { return v.f64 }
func (v Value) Enum() uint32   { return uint32(v.u64) }
func (v Value) String() string { return v.str }
func (v Value) Blob() []byte   { return v.blob }
func (v Value) KeyArray() []int64 { return v.keys }

// Time returns the DateTime value as a UTC time.Time.
func (v Value) Time() time.Time {
	if v.Kind == ValueDateTime {
		return v.t
	}
	return time.Unix(v.i64, 0).UTC()
}

// UnixSeconds returns the DateTime value as UNIX seconds.
func (v Value) UnixSeconds() int64 { return v.i64 }

// driverArg returns the value ready to be passed as a database/sql bind
// argument, applying the same coercions spec §4.5 describes for the native
// backends (Bool -> small integer/native bool handled per backend at the
// statement layer, DateTime -> UNIX seconds or time.Time depending on
// backend, Array -> comma joined literal is handled by the query builder
// instead since it must be spliced into SQL text, not bound).
func (v Value) driverArg(kind BackendKind) interface{} {
	switch v.Kind {
	case ValueNone:
		return nil
	case ValueKey, ValueInt32, ValueInt64:
		return v.i64
	case ValueUInt32, ValueUInt64, ValueEnum:
		return v.u64
	case ValueBool:
		switch kind {
		case PostgreSQL:
			return v.b
		default:
			if v.b {
				return int64(1)
			}
			return int64(0)
		}
	case ValueDouble:
		return v.f64
	case ValueDateTime:
		switch kind {
		case Sqlite, MariaDB:
			return v.i64
		default:
			return v.Time()
		}
	case ValueString, ValueCString, ValueFullTextSearch:
		return v.str
	case ValueBlob:
		return v.blob
	default:
		return v.str
	}
}
