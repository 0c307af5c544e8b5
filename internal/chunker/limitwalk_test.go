package chunker

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nethalo/dbdump/internal/dumpmodel"
)

func TestChunkByLimitWalk_ProducesOpenEndedTailRange(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT .*FROM `shop`\\.`orders` ORDER BY `code` LIMIT \\?,1").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("B100"))

	mock.ExpectQuery("SELECT .*FROM `shop`\\.`orders` WHERE `code` > \\? ORDER BY `code` LIMIT \\?,1").
		WithArgs("B100", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"code"}))

	ranges, err := chunkByLimitWalk(context.Background(), db, "shop", "orders", "code", dumpmodel.KeyTypeString, 2)
	if err != nil {
		t.Fatalf("chunkByLimitWalk: %v", err)
	}
	if len(ranges) != 2 {
		t.Fatalf("expected 2 ranges, got %d: %v", len(ranges), ranges)
	}
	if ranges[0].Begin.Open != true || ranges[0].End.Text != "'B100'" {
		t.Errorf("range 0 = %+v", ranges[0])
	}
	if ranges[1].Begin.Text != "'B100'" || !ranges[1].End.Open {
		t.Errorf("range 1 (tail) = %+v", ranges[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
