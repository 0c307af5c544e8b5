package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nethalo/dbdump/internal/dumplog"
	"github.com/nethalo/dbdump/internal/dumperrors"
	"github.com/nethalo/dbdump/internal/dumpmodel"
	"github.com/nethalo/dbdump/internal/manifest"
	"github.com/nethalo/dbdump/internal/progress"
	"github.com/nethalo/dbdump/internal/queue"
	"github.com/nethalo/dbdump/internal/writer"
)

func newTestCoordinator(t *testing.T) (*Coordinator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	c := &Coordinator{
		Opts:        dumpmodel.Options{Threads: 2, OutputURL: t.TempDir()},
		Logger:      dumplog.New(false),
		db:          db,
		queue:       queue.New(4),
		accumulator: manifest.NewAccumulator(),
		progress:    progress.NewReporter(time.Now()),
		resolver:    writer.NewBasenameResolver(),
	}
	return c, mock
}

func TestRunLocked_FallsBackToLockTablesWhenFTWRLDenied(t *testing.T) {
	c, mock := newTestCoordinator(t)
	c.minimalCache = dumpmodel.NewInstanceCache()
	c.minimalCache.Schemas["shop"] = &dumpmodel.SchemaInfo{
		Tables: map[string]*dumpmodel.TableInfo{"orders": {}},
	}

	mock.ExpectExec("FLUSH TABLES WITH READ LOCK").WillReturnError(errors.New("access denied"))
	mock.ExpectExec("LOCK TABLES").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := c.runLocked(context.Background()); err != nil {
		t.Fatalf("runLocked: %v", err)
	}
	if c.strongLock {
		t.Error("strongLock should be false after FTWRL denial")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRunLocked_FailsWhenBothLocksAreDenied(t *testing.T) {
	c, mock := newTestCoordinator(t)
	c.minimalCache = dumpmodel.NewInstanceCache()
	c.minimalCache.Schemas["shop"] = &dumpmodel.SchemaInfo{
		Tables: map[string]*dumpmodel.TableInfo{"orders": {}},
	}

	mock.ExpectExec("FLUSH TABLES WITH READ LOCK").WillReturnError(errors.New("denied"))
	mock.ExpectExec("LOCK TABLES").WillReturnError(errors.New("denied"))

	err := c.runLocked(context.Background())
	if err == nil {
		t.Fatal("runLocked: expected error, got nil")
	}
	if !dumperrors.Is(err, dumperrors.ErrLockAcquisitionFailed) {
		t.Errorf("expected ErrLockAcquisitionFailed, got %v", err)
	}
}

func TestRunValidated_ClosesRowsFromEventsAndTriggersChecks(t *testing.T) {
	c, mock := newTestCoordinator(t)
	c.Opts.DumpEvents = true
	c.Opts.DumpTriggers = true
	c.cache = dumpmodel.NewInstanceCache()
	c.cache.Schemas["shop"] = &dumpmodel.SchemaInfo{
		Tables:   map[string]*dumpmodel.TableInfo{},
		Events:   []dumpmodel.EventInfo{{Name: "nightly_rollup"}},
		Triggers: []dumpmodel.TriggerInfo{{Name: "orders_ai", Table: "orders"}},
	}

	mock.ExpectQuery("SHOW EVENTS FROM `shop`").
		WillReturnRows(sqlmock.NewRows([]string{"Name"}).AddRow("nightly_rollup"))
	mock.ExpectQuery("SHOW TRIGGERS FROM `shop`").
		WillReturnRows(sqlmock.NewRows([]string{"Trigger"}).AddRow("orders_ai"))

	if err := c.runValidated(context.Background()); err != nil {
		t.Fatalf("runValidated: %v", err)
	}
	// sqlmock considers a query's rows expectation fulfilled only once the
	// returned *sql.Rows is closed, so this also confirms the leak fix.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRunValidated_WrapsPreconditionFailedOnDeniedShowEvents(t *testing.T) {
	c, mock := newTestCoordinator(t)
	c.Opts.DumpEvents = true
	c.cache = dumpmodel.NewInstanceCache()
	c.cache.Schemas["shop"] = &dumpmodel.SchemaInfo{
		Tables: map[string]*dumpmodel.TableInfo{},
		Events: []dumpmodel.EventInfo{{Name: "nightly_rollup"}},
	}

	mock.ExpectQuery("SHOW EVENTS FROM `shop`").WillReturnError(errors.New("access denied"))

	err := c.runValidated(context.Background())
	if !dumperrors.Is(err, dumperrors.ErrPreconditionFailed) {
		t.Errorf("runValidated: %v, want ErrPreconditionFailed", err)
	}
}

func TestChunkingDone_ShutdownUnblocksWaitingPop(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.Opts.Threads = 1
	c.outstandingChunks.Store(1)

	done := make(chan bool, 1)
	go func() {
		_, ok := c.queue.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	c.ChunkingDone("shop", "orders")

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop should return ok=false after Shutdown drains an empty queue")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after ChunkingDone shut the queue down")
	}
}

func TestReportError_SetsInterruptAndDrainsQueue(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.Opts.Threads = 1

	done := make(chan bool, 1)
	go func() {
		_, ok := c.queue.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	c.ReportError(errors.New("boom"))

	if !c.Interrupted() {
		t.Error("Interrupted() should be true after ReportError")
	}
	select {
	case ok := <-done:
		if ok {
			t.Error("Pop should return ok=false once ReportError shuts the queue down")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after ReportError")
	}
}

func TestAbort_TagsErrCancelledWhenContextWasCancelled(t *testing.T) {
	c, mock := newTestCoordinator(t)
	c.minimalCache = dumpmodel.NewInstanceCache()
	c.minimalCache.Schemas["shop"] = &dumpmodel.SchemaInfo{
		Tables: map[string]*dumpmodel.TableInfo{"orders": {}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Both lock attempts see an already-cancelled context and fail before
	// ever reaching the driver; sqlmock never sees these statements.
	lockErr := c.runLocked(ctx)
	if lockErr == nil {
		t.Fatal("runLocked: expected error from a cancelled context, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected query against a cancelled context: %v", err)
	}

	err := c.abort(ctx, lockErr)
	if !dumperrors.Is(err, dumperrors.ErrCancelled) {
		t.Errorf("abort(cancelled ctx, %v) = %v, want it to wrap ErrCancelled", lockErr, err)
	}
	if !dumperrors.Is(err, dumperrors.ErrLockAcquisitionFailed) {
		t.Errorf("abort(cancelled ctx, %v) = %v, want the original ErrLockAcquisitionFailed still reachable via errors.Is", lockErr, err)
	}
	if c.state != StateAborted {
		t.Errorf("state = %v, want StateAborted", c.state)
	}
}

func TestAbort_DoesNotTagErrCancelledForOrdinaryFailure(t *testing.T) {
	c, _ := newTestCoordinator(t)

	err := c.abort(context.Background(), dumperrors.ErrPreconditionFailed)
	if dumperrors.Is(err, dumperrors.ErrCancelled) {
		t.Errorf("abort(live ctx, %v) = %v, should not wrap ErrCancelled", dumperrors.ErrPreconditionFailed, err)
	}
}

func TestRunDumping_EnqueuesTasksAndWritesManifests(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.Opts.DumpDDL = true
	c.Opts.DumpData = true
	c.Opts.Charset = "utf8mb4"

	c.cache = dumpmodel.NewInstanceCache()
	c.cache.Schemas["shop"] = &dumpmodel.SchemaInfo{
		Tables: map[string]*dumpmodel.TableInfo{"orders": {}, "customers": {}},
		Views:  map[string]*dumpmodel.ViewInfo{},
	}

	if err := c.runDumping(context.Background()); err != nil {
		t.Fatalf("runDumping: %v", err)
	}
	if got := c.outstandingChunks.Load(); got != 2 {
		t.Errorf("outstandingChunks = %d, want 2", got)
	}
	// 1 schema DDL + 2 table DDL + 2 chunk tasks = 5 queued tasks.
	if got := c.queue.Len(); got != 5 {
		t.Errorf("queue.Len() = %d, want 5", got)
	}

	raw, err := os.ReadFile(filepath.Join(c.Opts.OutputURL, "@.json"))
	if err != nil {
		t.Fatalf("reading @.json: %v", err)
	}
	var start manifest.StartManifest
	if err := json.Unmarshal(raw, &start); err != nil {
		t.Fatalf("unmarshal @.json: %v", err)
	}
	if len(start.Schemas) != 1 || start.Schemas[0] != "shop" {
		t.Errorf("StartManifest.Schemas = %v, want [shop]", start.Schemas)
	}
}

func TestRunDumping_NoDataShutsDownQueueImmediately(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.Opts.DumpDDL = true
	c.Opts.DumpData = false
	c.Opts.Threads = 1

	c.cache = dumpmodel.NewInstanceCache()
	c.cache.Schemas["shop"] = &dumpmodel.SchemaInfo{
		Tables: map[string]*dumpmodel.TableInfo{"orders": {}},
		Views:  map[string]*dumpmodel.ViewInfo{},
	}

	if err := c.runDumping(context.Background()); err != nil {
		t.Fatalf("runDumping: %v", err)
	}

	// The schema + table DDL tasks should still be poppable ahead of the
	// shutdown drain signal.
	if _, ok := c.queue.Pop(); !ok {
		t.Fatal("expected schema DDL task before drain")
	}
	if _, ok := c.queue.Pop(); !ok {
		t.Fatal("expected table DDL task before drain")
	}
	if _, ok := c.queue.Pop(); ok {
		t.Fatal("expected drain signal after DDL tasks are consumed")
	}
}
