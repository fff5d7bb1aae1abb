package database

// ColumnFlag is a bitset of properties attached to a Column.
type ColumnFlag int

const (
	ColumnNone ColumnFlag = 0
	// ColumnPrimaryKey marks a column the engine assigns: "treat specially when copying tables".
	ColumnPrimaryKey ColumnFlag = 1 << iota
)

// Column describes the shape of one projected or inserted value: its name,
// an optional alias (used in the projection of a SELECT), and its type.
type Column struct {
	Name  string
	Alias string
	Type  ValueKind
	Flags ColumnFlag
}

// NewColumn returns a plain, non-primary-key Column of the given name and type.
func NewColumn(name string, t ValueKind) Column {
	return Column{Name: name, Type: t}
}

// As returns a copy of c with the given alias.
func (c Column) As(alias string) Column {
	c.Alias = alias
	return c
}

// PrimaryKey returns a copy of c flagged as the table's primary key.
func (c Column) PrimaryKey() Column {
	c.Flags |= ColumnPrimaryKey
	return c
}

// IsPrimaryKey reports whether c is flagged ColumnPrimaryKey.
func (c Column) IsPrimaryKey() bool {
	return c.Flags&ColumnPrimaryKey != 0
}

// Projected returns the name used to reference c in a projection: the alias if set, else the name.
func (c Column) Projected() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}
