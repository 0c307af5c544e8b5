package chunker

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nethalo/dbdump/internal/dumpmodel"
)

// chunkByLimitWalk implements spec.md §4.5.3 for string/decimal/other
// orderable keys: repeatedly ask for the rowsPerChunk-th key after the
// previous boundary via ORDER BY ... LIMIT n-1,1, terminating when the
// query is exhausted.
//
// The query re-sorts the whole table on every call; this is only cheap
// when the chunking index is covering (spec.md §9 flags this as an open
// question for an implementer to verify against the target table).
func chunkByLimitWalk(ctx context.Context, db querier, schema, table, keyColumn string, typ dumpmodel.KeyType, rowsPerChunk int64) ([]dumpmodel.Range, error) {
	var ranges []dumpmodel.Range
	var prevBoundary *string

	for {
		next, err := nextBoundary(ctx, db, schema, table, keyColumn, prevBoundary, rowsPerChunk)
		if err != nil {
			return nil, err
		}
		begin := dumpmodel.OpenLiteral()
		if prevBoundary != nil {
			begin = dumpmodel.NewLiteral(typ, *prevBoundary)
		}
		if next == nil {
			ranges = append(ranges, dumpmodel.Range{Type: typ, Begin: begin, End: dumpmodel.OpenLiteral()})
			break
		}
		ranges = append(ranges, dumpmodel.Range{Type: typ, Begin: begin, End: dumpmodel.NewLiteral(typ, *next)})
		prevBoundary = next
	}
	return ranges, nil
}

func nextBoundary(ctx context.Context, db querier, schema, table, keyColumn string, after *string, rowsPerChunk int64) (*string, error) {
	var query string
	var args []any
	base := fmt.Sprintf("SELECT %s FROM %s.%s", quoteIdent(keyColumn), quoteIdent(schema), quoteIdent(table))
	if after == nil {
		query = fmt.Sprintf("%s ORDER BY %s LIMIT ?,1", base, quoteIdent(keyColumn))
		args = []any{rowsPerChunk - 1}
	} else {
		query = fmt.Sprintf("%s WHERE %s > ? ORDER BY %s LIMIT ?,1", base, quoteIdent(keyColumn), quoteIdent(keyColumn))
		args = []any{*after, rowsPerChunk - 1}
	}

	var boundary sql.NullString
	err := db.QueryRowContext(ctx, query, args...).Scan(&boundary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chunker: limit-walk probe: %w", err)
	}
	if !boundary.Valid {
		return nil, nil
	}
	return &boundary.String, nil
}
