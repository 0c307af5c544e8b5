package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/nethalo/dbdump/internal/dumpmodel"
)

func TestAccumulator_RecordChunkSumsAcrossCalls(t *testing.T) {
	a := NewAccumulator()
	a.RecordChunk("shop", "orders", 100, 200)
	a.RecordChunk("shop", "orders", 50, 80)
	a.RecordChunk("shop", "items", 10, 10)

	data, written := a.TableTotals("shop", "orders")
	if data != 280 || written != 150 {
		t.Errorf("orders totals = (%d, %d), want (280, 150)", data, written)
	}
	totalData, totalWritten := a.Totals()
	if totalData != 290 || totalWritten != 160 {
		t.Errorf("job totals = (%d, %d), want (290, 160)", totalData, totalWritten)
	}
}

func TestWriteStart_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	m := StartManifest{
		Dumper:  "dbdump",
		Schemas: []string{"shop"},
		SchemaBasenames: map[string]string{"shop": "shop"},
	}
	if err := WriteStart(dir, m); err != nil {
		t.Fatalf("WriteStart: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "@.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got StartManifest
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Dumper != "dbdump" || len(got.Schemas) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestTableDecodeColumns_OnlyIncludesEncodedColumns(t *testing.T) {
	cols := []dumpmodel.ColumnMeta{{Name: "id"}, {Name: "payload"}}
	encs := []dumpmodel.Encoding{dumpmodel.EncodingNone, dumpmodel.EncodingHex}
	got := TableDecodeColumns(cols, encs)
	if len(got) != 1 || got["payload"] != "hex" {
		t.Errorf("got %v", got)
	}
}

func TestTableDecodeColumns_NilWhenNoneEncoded(t *testing.T) {
	cols := []dumpmodel.ColumnMeta{{Name: "id"}}
	encs := []dumpmodel.Encoding{dumpmodel.EncodingNone}
	if got := TableDecodeColumns(cols, encs); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}
