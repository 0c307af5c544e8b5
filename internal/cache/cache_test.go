package cache

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nethalo/dbdump/internal/dumpmodel"
)

func TestBuildMinimal_ListsSchemasAndTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT SCHEMA_NAME.*FROM information_schema.SCHEMATA").
		WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}).AddRow("shop"))

	mock.ExpectQuery("SELECT TABLE_NAME, TABLE_TYPE.*FROM information_schema.TABLES").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_TYPE"}).
			AddRow("orders", "BASE TABLE").
			AddRow("order_totals", "VIEW"))

	c, err := BuildMinimal(context.Background(), db, dumpmodel.Options{})
	if err != nil {
		t.Fatalf("BuildMinimal: %v", err)
	}
	schema, ok := c.Schemas["shop"]
	if !ok {
		t.Fatalf("schema shop missing from cache")
	}
	if _, ok := schema.Tables["orders"]; !ok {
		t.Errorf("table orders missing")
	}
	if _, ok := schema.Views["order_totals"]; !ok {
		t.Errorf("view order_totals missing")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBuildMinimal_ExcludesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT SCHEMA_NAME.*FROM information_schema.SCHEMATA").
		WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}).AddRow("shop").AddRow("archive"))

	mock.ExpectQuery("SELECT TABLE_NAME, TABLE_TYPE.*FROM information_schema.TABLES").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_TYPE"}).AddRow("orders", "BASE TABLE"))

	opts := dumpmodel.Options{ExcludeSchemas: []string{"archive"}}
	c, err := BuildMinimal(context.Background(), db, opts)
	if err != nil {
		t.Fatalf("BuildMinimal: %v", err)
	}
	if _, ok := c.Schemas["archive"]; ok {
		t.Errorf("excluded schema archive present in cache")
	}
}

func TestFillTable_DefaultsAvgRowLengthWhenNoStatistics(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT IFNULL.*FROM information_schema.TABLES").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"rows", "avg_len"}).AddRow(0, 0))
	mock.ExpectQuery("SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE.*FROM information_schema.COLUMNS").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE"}).
			AddRow("id", "bigint(20)", "NO"))
	mock.ExpectQuery("SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE.*FROM information_schema.STATISTICS").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"INDEX_NAME", "COLUMN_NAME", "NON_UNIQUE"}).
			AddRow("PRIMARY", "id", false))

	ti := &dumpmodel.TableInfo{}
	if err := fillTable(context.Background(), db, "shop", "orders", ti); err != nil {
		t.Fatalf("fillTable: %v", err)
	}
	if ti.HasStatistics {
		t.Errorf("expected HasStatistics = false")
	}
	if ti.AvgRowLength != 256 {
		t.Errorf("AvgRowLength = %d, want 256", ti.AvgRowLength)
	}
	if ti.Index == nil || ti.Index.Name != "PRIMARY" {
		t.Errorf("expected PRIMARY index chosen, got %+v", ti.Index)
	}
}

func TestChooseIndex_PrefersPrimaryOverUnique(t *testing.T) {
	cols := []dumpmodel.ColumnMeta{{Name: "id"}, {Name: "email"}}
	candidates := []indexCandidate{
		{Name: "uq_email", Columns: []string{"email"}, NonUnique: false},
		{Name: "PRIMARY", Columns: []string{"id"}, Primary: true},
	}
	idx := ChooseIndex(candidates, cols)
	if idx == nil || idx.Name != "PRIMARY" {
		t.Fatalf("got %+v, want PRIMARY", idx)
	}
}

func TestChooseIndex_SkipsNullableUniqueIndex(t *testing.T) {
	cols := []dumpmodel.ColumnMeta{{Name: "email", Nullable: true}}
	candidates := []indexCandidate{
		{Name: "uq_email", Columns: []string{"email"}, NonUnique: false},
	}
	if idx := ChooseIndex(candidates, cols); idx != nil {
		t.Fatalf("expected no usable index, got %+v", idx)
	}
}

func TestChooseIndex_NoCandidates(t *testing.T) {
	if idx := ChooseIndex(nil, nil); idx != nil {
		t.Fatalf("expected nil, got %+v", idx)
	}
}

func TestIncluded_GlobPattern(t *testing.T) {
	cases := []struct {
		include, exclude []string
		name             string
		want             bool
	}{
		{include: []string{"shop_*"}, name: "shop_orders", want: true},
		{include: []string{"shop_*"}, name: "archive_orders", want: false},
		{include: []string{"orders_2???"}, name: "orders_2024", want: true},
		{include: []string{"orders_2???"}, name: "orders_20240", want: false},
		{exclude: []string{"*_archive"}, name: "orders_archive", want: false},
		{exclude: []string{"*_archive"}, name: "orders", want: true},
	}
	for _, c := range cases {
		if got := included(c.include, c.exclude, c.name); got != c.want {
			t.Errorf("included(%v, %v, %q) = %v, want %v", c.include, c.exclude, c.name, got, c.want)
		}
	}
}

func TestClassifyEncoding(t *testing.T) {
	cases := map[string]bool{
		"varchar(255)": false,
		"int(11)":      false,
		"blob":         true,
		"varbinary(16)": true,
		"json":         true,
		"point":        true,
		"text":         false,
	}
	for typ, want := range cases {
		if got := ClassifyEncoding(typ); got != want {
			t.Errorf("ClassifyEncoding(%q) = %v, want %v", typ, got, want)
		}
	}
}
