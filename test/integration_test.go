// Package test holds the one cross-package test that exercises the task
// queue and worker pool together end to end: a ChunkTableTask fans out
// into DumpRangeTasks, a pool of Workers (each its own mocked connection)
// drains them concurrently, and the resulting chunk files are checked for
// the coverage/disjointness invariant range splitting promises (no gap,
// no overlap, every row written exactly once).
package test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/sync/errgroup"

	"github.com/nethalo/dbdump/internal/dumplog"
	"github.com/nethalo/dbdump/internal/dumpmodel"
	"github.com/nethalo/dbdump/internal/manifest"
	"github.com/nethalo/dbdump/internal/progress"
	"github.com/nethalo/dbdump/internal/queue"
	"github.com/nethalo/dbdump/internal/worker"
	"github.com/nethalo/dbdump/internal/writer"
)

// poolHandle is a minimal worker.CoordinatorHandle standing in for
// internal/coordinator.Coordinator: it tracks the one outstanding
// ChunkTableTask and drains the queue once chunking has finished
// producing its DumpRangeTasks, the same handoff
// internal/coordinator.Coordinator.ChunkingDone performs.
type poolHandle struct {
	q           *queue.Queue
	numWorkers  int
	outstanding atomic.Int64

	mu   sync.Mutex
	errs []error
	interrupt atomic.Bool
}

func (h *poolHandle) Interrupted() bool { return h.interrupt.Load() }

func (h *poolHandle) ReportError(err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
	h.interrupt.Store(true)
	h.q.Shutdown(h.numWorkers)
}

func (h *poolHandle) ChunkingDone(schema, table string) {
	if h.outstanding.Add(-1) == 0 {
		h.q.Shutdown(h.numWorkers)
	}
}

func TestChunkTableFanOut_WorkerPoolCoversRangesDisjointly(t *testing.T) {
	const numWorkers = 2

	cache := dumpmodel.NewInstanceCache()
	cache.Schemas["shop"] = &dumpmodel.SchemaInfo{
		Tables: map[string]*dumpmodel.TableInfo{
			"orders": {
				Columns: []dumpmodel.ColumnMeta{
					{Name: "code", Type: "varchar(20)"},
					{Name: "name", Type: "varchar(50)"},
				},
				Index: &dumpmodel.ChosenIndex{
					Name:    "code_idx",
					Primary: false,
					Columns: []string{"code"},
				},
				RowCountEstimate: 4,
				AvgRowLength:     100,
			},
		},
	}

	q := queue.New(8)
	handle := &poolHandle{q: q, numWorkers: numWorkers}
	handle.outstanding.Store(1)

	dir := t.TempDir()
	resolver := writer.NewBasenameResolver()
	accumulator := manifest.NewAccumulator()

	workers := make([]*worker.Worker, numWorkers)
	for i := range workers {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock.New: %v", err)
		}
		defer db.Close()
		mock.MatchExpectationsInOrder(false)

		mock.ExpectExec("SET SESSION sql_mode").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("SET SESSION net_write_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("SET SESSION wait_timeout").WillReturnResult(sqlmock.NewResult(0, 0))

		// chunkByLimitWalk's two boundary probes: whichever Worker pops the
		// ChunkTableTask runs both, in order, on its own connection. The
		// two patterns are distinct (WHERE vs. no WHERE) so order doesn't
		// matter across this mock's expectation set.
		mock.ExpectQuery("SELECT `code` FROM `shop`\\.`orders` ORDER BY `code` LIMIT \\?,1").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("B100"))
		mock.ExpectQuery("SELECT `code` FROM `shop`\\.`orders` WHERE `code` > \\? ORDER BY `code` LIMIT \\?,1").
			WithArgs("B100", int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"code"}))

		// The two DumpRangeTask SELECTs, distinguished by their trailing
		// chunk=N comment (select.go's buildSelect). Either Worker may end
		// up running either one.
		mock.ExpectQuery("chunk=0").
			WillReturnRows(sqlmock.NewRows([]string{"code", "name"}).
				AddRow("A001", "Alice").AddRow("B100", "Bob"))
		mock.ExpectQuery("chunk=1").
			WillReturnRows(sqlmock.NewRows([]string{"code", "name"}).
				AddRow("C001", "Carol").AddRow("D001", "Dave"))

		conn, err := db.Conn(context.Background())
		if err != nil {
			t.Fatalf("db.Conn: %v", err)
		}
		defer conn.Close()

		workers[i] = &worker.Worker{
			ID:    i + 1,
			Conn:  conn,
			Queue: q,
			Cache: cache,
			Opts: dumpmodel.Options{
				BytesPerChunk: 200, // avgRowLength 100 -> rowsPerChunk 2
				Compression:   dumpmodel.CompressionNone,
				Dialect:       dumpmodel.DialectCSV,
			},
			Coord:       handle,
			Accumulator: accumulator,
			Progress:    progress.NewReporter(time.Now()),
			Logger:      dumplog.New(false),
			OutputDir:   dir,
			Resolver:    resolver,
		}
	}

	q.Push(dumpmodel.ChunkTableTask{Schema: "shop", Table: "orders"})

	eg, ctx := errgroup.WithContext(context.Background())
	for _, w := range workers {
		w := w
		eg.Go(func() error { return w.Run(ctx) })
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("worker pool: %v", err)
	}
	if len(handle.errs) != 0 {
		t.Fatalf("unexpected reported errors: %v", handle.errs)
	}

	// Coverage/disjointness: every row the two DumpRangeTasks returned
	// landed in exactly one of the two chunk files, in order, with no
	// gap or duplicate between the head chunk (up to and including
	// "B100") and the tail chunk (everything after "B100").
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var dataFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".csv") {
			dataFiles = append(dataFiles, e.Name())
		}
	}
	if len(dataFiles) != 2 {
		t.Fatalf("expected 2 chunk data files, got %v", dataFiles)
	}

	var allRows []string
	for _, name := range dataFiles {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", name, err)
		}
		for _, line := range strings.Split(strings.TrimRight(string(content), "\n"), "\n") {
			if line != "" {
				allRows = append(allRows, line)
			}
		}
	}
	if len(allRows) != 4 {
		t.Fatalf("expected 4 total rows across both chunks (no gap/overlap), got %d: %v", len(allRows), allRows)
	}
	seen := make(map[string]bool, len(allRows))
	for _, row := range allRows {
		if seen[row] {
			t.Errorf("row %q written more than once across chunks", row)
		}
		seen[row] = true
	}

	dataBytes, bytesWritten := accumulator.Totals()
	if dataBytes == 0 || bytesWritten == 0 {
		t.Errorf("accumulator totals not recorded: dataBytes=%d bytesWritten=%d", dataBytes, bytesWritten)
	}

	if _, err := os.Stat(filepath.Join(dir, writer.EscapeBasename("shop.orders")+"@.json")); err != nil {
		t.Errorf("table descriptor not written: %v", err)
	}
}

// TestChunkTableFanOut_IncludeNullsOnlyOnFirstRange exercises a table
// whose chunking column is nullable: only the first of the two produced
// ranges may carry the "OR key IS NULL" clause, so a NULL-keyed row lands
// in exactly one chunk instead of every chunk. The per-chunk SELECTs are
// asserted against fully anchored regexes (not just a "chunk=N" substring
// match like the first test), so a regression that sets IncludeNulls on
// every range fails this test: the un-anchored chunk=1 query would gain
// an unexpected "OR `code` IS NULL" clause and no registered expectation
// would match it.
func TestChunkTableFanOut_IncludeNullsOnlyOnFirstRange(t *testing.T) {
	cache := dumpmodel.NewInstanceCache()
	cache.Schemas["shop"] = &dumpmodel.SchemaInfo{
		Tables: map[string]*dumpmodel.TableInfo{
			"orders": {
				Columns: []dumpmodel.ColumnMeta{
					{Name: "code", Type: "varchar(20)", Nullable: true},
					{Name: "name", Type: "varchar(50)"},
				},
				Index: &dumpmodel.ChosenIndex{
					Name:    "code_idx",
					Primary: false,
					Columns: []string{"code"},
				},
				RowCountEstimate: 4,
				AvgRowLength:     100,
			},
		},
	}

	q := queue.New(8)
	handle := &poolHandle{q: q, numWorkers: 1}
	handle.outstanding.Store(1)

	dir := t.TempDir()
	resolver := writer.NewBasenameResolver()
	accumulator := manifest.NewAccumulator()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	mock.ExpectExec("SET SESSION sql_mode").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET SESSION net_write_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET SESSION wait_timeout").WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery("SELECT `code` FROM `shop`\\.`orders` ORDER BY `code` LIMIT \\?,1").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("B100"))
	mock.ExpectQuery("SELECT `code` FROM `shop`\\.`orders` WHERE `code` > \\? ORDER BY `code` LIMIT \\?,1").
		WithArgs("B100", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"code"}))

	// Chunk 0 must carry the IS NULL clause; chunk 1 must not. Both
	// patterns are fully anchored (^...$) so an unexpected clause on
	// either side leaves the actual query unmatched by any expectation.
	mock.ExpectQuery("^SELECT `code`, `name` FROM `shop`\\.`orders` WHERE \\(`code` <= 'B100'\\) OR `code` IS NULL ORDER BY `code` /\\* job= table=shop\\.orders chunk=0 \\*/$").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name"}).
			AddRow("A001", "Alice").AddRow("B100", "Carol").AddRow(nil, "NullCodeRow"))
	mock.ExpectQuery("^SELECT `code`, `name` FROM `shop`\\.`orders` WHERE `code` > 'B100' ORDER BY `code` /\\* job= table=shop\\.orders chunk=1 \\*/$").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name"}).
			AddRow("C001", "Dave"))

	conn, err := db.Conn(context.Background())
	if err != nil {
		t.Fatalf("db.Conn: %v", err)
	}
	defer conn.Close()

	w := &worker.Worker{
		ID:    1,
		Conn:  conn,
		Queue: q,
		Cache: cache,
		Opts: dumpmodel.Options{
			BytesPerChunk: 200,
			Compression:   dumpmodel.CompressionNone,
			Dialect:       dumpmodel.DialectCSV,
		},
		Coord:       handle,
		Accumulator: accumulator,
		Progress:    progress.NewReporter(time.Now()),
		Logger:      dumplog.New(false),
		OutputDir:   dir,
		Resolver:    resolver,
	}

	q.Push(dumpmodel.ChunkTableTask{Schema: "shop", Table: "orders"})

	eg, ctx := errgroup.WithContext(context.Background())
	eg.Go(func() error { return w.Run(ctx) })
	if err := eg.Wait(); err != nil {
		t.Fatalf("worker: %v", err)
	}
	if len(handle.errs) != 0 {
		t.Fatalf("unexpected reported errors: %v", handle.errs)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var dataFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".csv") {
			dataFiles = append(dataFiles, e.Name())
		}
	}
	if len(dataFiles) != 2 {
		t.Fatalf("expected 2 chunk data files, got %v", dataFiles)
	}

	var allRows []string
	for _, name := range dataFiles {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", name, err)
		}
		for _, line := range strings.Split(strings.TrimRight(string(content), "\n"), "\n") {
			if line != "" {
				allRows = append(allRows, line)
			}
		}
	}
	if len(allRows) != 4 {
		t.Fatalf("expected 4 total rows (the NULL-keyed row written exactly once), got %d: %v", len(allRows), allRows)
	}
	seen := make(map[string]bool, len(allRows))
	for _, row := range allRows {
		if seen[row] {
			t.Errorf("row %q written more than once across chunks", row)
		}
		seen[row] = true
	}
}
