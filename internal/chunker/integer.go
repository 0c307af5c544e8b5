package chunker

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nethalo/dbdump/internal/dumpmodel"
)

// chunkByStriding implements spec.md §4.5.2: arithmetic striding with
// EXPLAIN-driven bisection. MIN/MAX bound the key space; the initial
// stride is (max-min)/chunkCount; each successive boundary is found by
// bisecting within [current, current+2*stride] until the EXPLAIN row
// estimate lands within the acceptance window of rowsPerChunk, or the
// candidate boundary reaches max.
func chunkByStriding(ctx context.Context, db querier, schema, table, keyColumn string, rowCount, rowsPerChunk int64) ([]dumpmodel.Range, error) {
	var min, max sql.NullInt64
	query := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s.%s", quoteIdent(keyColumn), quoteIdent(keyColumn), quoteIdent(schema), quoteIdent(table))
	if err := db.QueryRowContext(ctx, query).Scan(&min, &max); err != nil {
		return nil, fmt.Errorf("chunker: min/max %s.%s: %w", schema, table, err)
	}
	if !min.Valid || !max.Valid {
		// No non-NULL key (empty table, or every key NULL): one whole-table range.
		return []dumpmodel.Range{dumpmodel.WholeTable()}, nil
	}

	chunkCount := rowCount / rowsPerChunk
	if chunkCount < 1 {
		chunkCount = 1
	}
	stride := (max.Int64 - min.Int64) / chunkCount
	if stride < 1 {
		stride = 1
	}
	window := rowsPerChunk / 10
	if window < minAcceptanceWindow {
		window = minAcceptanceWindow
	}

	var ranges []dumpmodel.Range
	current := min.Int64
	for current <= max.Int64 {
		boundary, err := findBoundary(ctx, db, schema, table, keyColumn, current, max.Int64, stride, rowsPerChunk, window)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, dumpmodel.Range{
			Type:  dumpmodel.KeyTypeInteger,
			Begin: dumpmodel.NewLiteral(dumpmodel.KeyTypeInteger, fmt.Sprintf("%d", current)),
			End:   dumpmodel.NewLiteral(dumpmodel.KeyTypeInteger, fmt.Sprintf("%d", boundary)),
		})
		if boundary >= max.Int64 {
			break
		}
		current = boundary + 1
	}
	return ranges, nil
}

// findBoundary bisects within [current, current+2*stride] for a boundary
// whose EXPLAIN row estimate over [current, boundary] is within window of
// rowsPerChunk. It accepts the last candidate tried after maxRetries
// rounds of maxBisectionSteps each, per spec.md §4.5/§7's "accept the
// last estimate" recovery.
func findBoundary(ctx context.Context, db querier, schema, table, keyColumn string, current, max, stride, rowsPerChunk, window int64) (int64, error) {
	lo, hi := current, current+2*stride
	if hi > max {
		hi = max
	}
	var lastCandidate int64 = hi

	for retry := 0; retry < maxRetries; retry++ {
		for step := 0; step < maxBisectionSteps; step++ {
			mid := lo + (hi-lo)/2
			if mid <= current {
				mid = current + 1
			}
			if mid > max {
				mid = max
			}
			estimate, err := explainRowEstimate(ctx, db, schema, table, keyColumn, current, mid)
			if err != nil {
				return 0, err
			}
			lastCandidate = mid
			diff := estimate - rowsPerChunk
			if diff < 0 {
				diff = -diff
			}
			if diff <= window || mid >= max {
				return mid, nil
			}
			if estimate > rowsPerChunk {
				hi = mid
			} else {
				lo = mid
			}
			if lo >= hi {
				break
			}
		}
		hi = current + 2*stride*int64(retry+2)
		if hi > max {
			hi = max
		}
	}
	return lastCandidate, nil
}
