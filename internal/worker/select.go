package worker

import (
	"fmt"
	"strings"

	"github.com/nethalo/dbdump/internal/dumpmodel"
)

func quoteIdent(s string) string { return "`" + s + "`" }

// buildSelect constructs the query a DumpRangeTask streams from:
// encoding-unsafe columns wrapped in HEX()/TO_BASE64(), filtered by the
// range's WHERE predicate, ordered by the chunking index, and trailed by
// a comment identifying the job/table/chunk for process-list correlation
// (spec.md §4.5 point 4).
func buildSelect(schema, table string, cols []dumpmodel.ColumnMeta, indexCols []string, rng dumpmodel.Range, includeNulls bool, jobID string, chunkOrdinal int) (string, []dumpmodel.Encoding) {
	encodings := columnEncodings(cols)
	exprs := make([]string, len(cols))
	for i, c := range cols {
		ident := quoteIdent(c.Name)
		switch encodings[i] {
		case dumpmodel.EncodingBase64:
			exprs[i] = fmt.Sprintf("TO_BASE64(%s)", ident)
		case dumpmodel.EncodingHex:
			exprs[i] = fmt.Sprintf("HEX(%s)", ident)
		default:
			exprs[i] = ident
		}
	}

	var where string
	if len(indexCols) > 0 {
		where = rng.WhereClause(indexCols[0], includeNulls)
	} else {
		where = "1=1"
	}

	orderBy := ""
	if len(indexCols) > 0 {
		quoted := make([]string, len(indexCols))
		for i, c := range indexCols {
			quoted[i] = quoteIdent(c)
		}
		orderBy = " ORDER BY " + strings.Join(quoted, ", ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s.%s WHERE %s%s /* job=%s table=%s.%s chunk=%d */",
		strings.Join(exprs, ", "), quoteIdent(schema), quoteIdent(table), where, orderBy, jobID, schema, table, chunkOrdinal)
	return query, encodings
}

// columnEncodings decides, per column, how an encoding-unsafe value is
// wrapped in the SELECT and therefore how it must be inverted by the
// loader: TO_BASE64 for spatial/JSON types (which may contain arbitrary
// bytes including ones HEX's larger output would double in size for no
// benefit), HEX for every other binary-unsafe type.
func columnEncodings(cols []dumpmodel.ColumnMeta) []dumpmodel.Encoding {
	out := make([]dumpmodel.Encoding, len(cols))
	for i, c := range cols {
		switch {
		case c.EncodingUnsafe && isSpatialOrJSON(c.Type):
			out[i] = dumpmodel.EncodingBase64
		case c.EncodingUnsafe:
			out[i] = dumpmodel.EncodingHex
		default:
			out[i] = dumpmodel.EncodingNone
		}
	}
	return out
}

func isSpatialOrJSON(columnType string) bool {
	for _, prefix := range []string{"json", "geometry", "point", "linestring", "polygon", "multipoint", "multilinestring", "multipolygon"} {
		if hasPrefixFold(columnType, prefix) {
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}
