package database

// Filter is a SQL fragment containing `?` placeholders and (optionally)
// single-quoted string literals, paired with the positional Values that
// substitute the placeholders in left-to-right order. Each Value's Kind
// drives its bind conversion at statement-build time.
type Filter struct {
	Expr   string
	Values []Value
}

// NewFilter builds a Filter from a SQL fragment and its positional bind values.
func NewFilter(expr string, values ...Value) Filter {
	return Filter{Expr: expr, Values: values}
}

// And combines f and other with the AND operator, concatenating their Values
// in order. Either side may be the zero Filter, in which case the other is
// returned unchanged.
func (f Filter) And(other Filter) Filter {
	switch {
	case f.Expr == "":
		return other
	case other.Expr == "":
		return f
	default:
		return Filter{
			Expr:   "(" + f.Expr + ") AND (" + other.Expr + ")",
			Values: append(append([]Value{}, f.Values...), other.Values...),
		}
	}
}

// IsZero reports whether f carries no expression.
func (f Filter) IsZero() bool {
	return f.Expr == ""
}

// PlaceholderCount returns the number of unescaped, unquoted `?` placeholders in f.Expr.
func (f Filter) PlaceholderCount() int {
	return countPlaceholders(f.Expr)
}

// countPlaceholders counts `?` occurring outside of single-quoted string
// literals. Escaped characters `\\` and `\'` inside a quoted literal do not
// terminate it early.
func countPlaceholders(expr string) int {
	count := 0
	inString := false

	for i := 0; i < len(expr); i++ {
		c := expr[i]

		switch {
		case inString:
			switch c {
			case '\\':
				i++ // skip the escaped character, e.g. \\ or \'
			case '\'':
				inString = false
			}
		default:
			switch c {
			case '\'':
				inString = true
			case '?':
				count++
			}
		}
	}

	return count
}
