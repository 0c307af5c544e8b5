package manifest

import "sync"

// tableBytes tracks one table's accumulated data/on-disk byte counts.
type tableBytes struct {
	dataBytes    int64
	bytesWritten int64
}

// Accumulator tallies bytes written per schema/table across every Worker,
// for @.done.json. Byte counters are summed under a mutex-protected map
// (spec.md §5's "shared resources" paragraph); there is one Accumulator
// per job, shared by every Worker.
type Accumulator struct {
	mu     sync.Mutex
	tables map[string]*tableBytes // key: "schema.table"
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{tables: make(map[string]*tableBytes)}
}

// RecordChunk adds one chunk's final byte counts to schema.table's total.
func (a *Accumulator) RecordChunk(schema, table string, bytesWritten, dataBytes int64) {
	key := schema + "." + table
	a.mu.Lock()
	defer a.mu.Unlock()
	tb, ok := a.tables[key]
	if !ok {
		tb = &tableBytes{}
		a.tables[key] = tb
	}
	tb.dataBytes += dataBytes
	tb.bytesWritten += bytesWritten
}

// TableTotals returns schema.table's accumulated (dataBytes, bytesWritten).
func (a *Accumulator) TableTotals(schema, table string) (dataBytes, bytesWritten int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tb, ok := a.tables[schema+"."+table]
	if !ok {
		return 0, 0
	}
	return tb.dataBytes, tb.bytesWritten
}

// Totals returns the job-wide sum across every recorded table.
func (a *Accumulator) Totals() (dataBytes, bytesWritten int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, tb := range a.tables {
		dataBytes += tb.dataBytes
		bytesWritten += tb.bytesWritten
	}
	return dataBytes, bytesWritten
}
