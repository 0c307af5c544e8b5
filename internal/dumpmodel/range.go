package dumpmodel

import "fmt"

// KeyType classifies the chunking column's type for Range rendering and
// for the Chunker's choice of algorithm (arithmetic striding vs.
// LIMIT-walking).
type KeyType string

const (
	KeyTypeInteger KeyType = "integer"
	KeyTypeString  KeyType = "string"
	KeyTypeDecimal KeyType = "decimal"
	KeyTypeOther   KeyType = "other"
)

// Literal is a type-preserving rendering of one bound of a Range: bare for
// integers, quoted for strings and decimals. Open means "no bound" (both
// ends of a whole-table range, and the outer ends of the first and last
// LIMIT-walk ranges).
type Literal struct {
	Text string
	Open bool
}

// Render returns the literal's SQL text, or "" when Open.
func (l Literal) Render() string {
	if l.Open {
		return ""
	}
	return l.Text
}

// NewLiteral renders raw (a value already read back from the database,
// e.g. via a string-typed Scan) as SQL text appropriate for typ.
func NewLiteral(typ KeyType, raw string) Literal {
	switch typ {
	case KeyTypeInteger:
		return Literal{Text: raw}
	default:
		return Literal{Text: quoteSQLString(raw)}
	}
}

// OpenLiteral is the unbounded literal for whole-table ranges.
func OpenLiteral() Literal {
	return Literal{Open: true}
}

func quoteSQLString(s string) string {
	escaped := make([]byte, 0, len(s)+2)
	escaped = append(escaped, '\'')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\'' || c == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, c)
	}
	escaped = append(escaped, '\'')
	return string(escaped)
}

// Range is one disjoint key range of a table, assigned to a single
// DumpRangeTask.
type Range struct {
	Type  KeyType
	Begin Literal
	End   Literal
}

// WholeTable is the single range covering an entire table (used when
// chunking is disabled, impossible, or unnecessary).
func WholeTable() Range {
	return Range{Type: KeyTypeOther, Begin: OpenLiteral(), End: OpenLiteral()}
}

// WhereClause renders the range as a SQL predicate against the named key
// column(s), honoring includeNulls per spec.md §4.7. Integer ranges are
// inclusive at both ends. Every other range comes from LIMIT-walking,
// whose Begin is the previous range's (inclusive) End, so Begin is
// exclusive for them and adjacent ranges never share a key.
func (r Range) WhereClause(keyColumn string, includeNulls bool) string {
	beginOp := ">="
	if r.Type != KeyTypeInteger {
		beginOp = ">"
	}
	var clause string
	switch {
	case r.Begin.Open && r.End.Open:
		clause = "1=1"
	case r.Begin.Open:
		clause = fmt.Sprintf("`%s` <= %s", keyColumn, r.End.Render())
	case r.End.Open:
		clause = fmt.Sprintf("`%s` %s %s", keyColumn, beginOp, r.Begin.Render())
	case r.Type == KeyTypeInteger:
		clause = fmt.Sprintf("`%s` BETWEEN %s AND %s", keyColumn, r.Begin.Render(), r.End.Render())
	default:
		clause = fmt.Sprintf("`%s` > %s AND `%s` <= %s", keyColumn, r.Begin.Render(), keyColumn, r.End.Render())
	}
	if includeNulls {
		clause = fmt.Sprintf("(%s) OR `%s` IS NULL", clause, keyColumn)
	}
	return clause
}
