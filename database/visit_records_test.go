package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"tsusho/database"
	"tsusho/loader"
	"tsusho/model"

	"github.com/jmoiron/sqlx"
)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := loader.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := loader.ApplySchema(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return db
}

func insertRecord(t *testing.T, db *sqlx.DB, id, childID, date string) {
	t.Helper()
	rec := &model.VisitRecord{
		ID:                 id,
		VisitDate:          date,
		ChildID:            childID,
		PlannedArrivalTime: sql.NullString{String: "16:00:00", Valid: true},
		ContractedDuration: sql.NullInt64{Int64: 100, Valid: true},
	}
	ok, err := database.InsertVisitRecordIfAbsent(context.Background(), db, rec)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("record %s was not inserted", id)
	}
}

func TestInsertVisitRecordIfAbsent(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	insertRecord(t, db, "r1", "C001", "2025-04-01")

	dup := &model.VisitRecord{VisitDate: "2025-04-01", ChildID: "C001"}
	ok, err := database.InsertVisitRecordIfAbsent(ctx, db, dup)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("duplicate (date, child) was inserted")
	}

	auto := &model.VisitRecord{VisitDate: "2025-04-02", ChildID: "C001"}
	if ok, err := database.InsertVisitRecordIfAbsent(ctx, db, auto); err != nil || !ok {
		t.Fatalf("insert: %v %v", ok, err)
	}
	if auto.ID == "" || auto.Version != 1 {
		t.Errorf("generated id/version = %q/%d", auto.ID, auto.Version)
	}

	month, err := database.GetVisitRecordsByMonth(ctx, db, "2025-04")
	if err != nil {
		t.Fatal(err)
	}
	if len(month) != 2 || month[0].ID != "r1" {
		t.Errorf("month = %+v", month)
	}
}

func TestUpdateVisitRecordPatchAndVersion(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	insertRecord(t, db, "r1", "C001", "2025-04-01")

	arrival := sql.NullString{String: "16:00", Valid: true}
	manual := true
	patch := model.VisitRecordPatch{ActualArrivalTime: &arrival, IsManuallyEntered: &manual}
	if err := database.UpdateVisitRecord(ctx, db, "r1", patch, "staff1", "2025-04-01T16:00:00+09:00", nil); err != nil {
		t.Fatal(err)
	}

	rec, err := database.GetVisitRecordByID(ctx, db, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ActualArrivalTime.String != "16:00" || !rec.IsManuallyEntered || rec.Version != 2 || rec.UpdatedBy != "staff1" {
		t.Errorf("after update = %+v", rec)
	}
	if !rec.ContractedDuration.Valid {
		t.Error("untouched column was cleared")
	}

	// 古い version での更新は競合
	stale := 1
	cleared := sql.NullString{}
	err = database.UpdateVisitRecord(ctx, db, "r1", model.VisitRecordPatch{ActualArrivalTime: &cleared}, "staff2", "t", &stale)
	if !errors.Is(err, database.ErrVersionConflict) {
		t.Fatalf("stale update err = %v", err)
	}
	current := 2
	if err := database.UpdateVisitRecord(ctx, db, "r1", model.VisitRecordPatch{ActualArrivalTime: &cleared}, "staff2", "t", &current); err != nil {
		t.Fatal(err)
	}
	rec, _ = database.GetVisitRecordByID(ctx, db, "r1")
	if rec.ActualArrivalTime.Valid || rec.Version != 3 {
		t.Errorf("after conditional update = %+v", rec)
	}

	err = database.UpdateVisitRecord(ctx, db, "missing", patch, "x", "t", nil)
	if !errors.Is(err, database.ErrRecordNotFound) {
		t.Errorf("missing record err = %v", err)
	}
}

func TestSoftDeleteHidesRecord(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	insertRecord(t, db, "r1", "C001", "2025-04-01")

	if err := database.SoftDeleteVisitRecord(ctx, db, "r1", "staff1", "t"); err != nil {
		t.Fatal(err)
	}
	if _, err := database.GetVisitRecordByID(ctx, db, "r1"); !errors.Is(err, database.ErrRecordNotFound) {
		t.Errorf("deleted record err = %v", err)
	}
	list, _ := database.GetVisitRecordsByDate(ctx, db, "2025-04-01")
	if len(list) != 0 {
		t.Errorf("list = %+v", list)
	}
	if err := database.SoftDeleteVisitRecord(ctx, db, "r1", "staff1", "t"); !errors.Is(err, database.ErrRecordNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestGetChildByScanCode(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	db.MustExec(`INSERT INTO children (child_id, last_name, first_name, qr_code_name) VALUES
		('C001', '山田', '太郎', 'C002'),
		('C002', '佐藤', '花子', 'sato-hanako')`)

	tests := []struct {
		code, want string
	}{
		{"C001", "C001"},
		{"sato-hanako", "C002"},
		// 児童IDの一致を QRコード名より優先する
		{"C002", "C002"},
	}
	for _, tt := range tests {
		c, err := database.GetChildByScanCode(ctx, db, tt.code)
		if err != nil {
			t.Errorf("GetChildByScanCode(%s): %v", tt.code, err)
			continue
		}
		if c.ChildID != tt.want {
			t.Errorf("GetChildByScanCode(%s) = %s, want %s", tt.code, c.ChildID, tt.want)
		}
	}

	if err := database.DeleteChild(ctx, db, "C001", "staff", "t"); err != nil {
		t.Fatal(err)
	}
	if _, err := database.GetChildByScanCode(ctx, db, "C001"); !errors.Is(err, database.ErrRecordNotFound) {
		t.Errorf("deleted child err = %v", err)
	}
}

func TestChildSequence(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	db.MustExec(`INSERT INTO children (child_id, last_name, first_name) VALUES ('C007', '山田', '太郎'), ('X100', '佐藤', '花子')`)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	maxNo, err := database.InitializeSequenceFromMaxChildID(ctx, tx)
	if err != nil {
		t.Fatal(err)
	}
	if maxNo != 7 {
		t.Errorf("maxNo = %d", maxNo)
	}
	id, err := database.NextSequenceInTx(ctx, tx, "CHILD", "C", 3)
	if err != nil {
		t.Fatal(err)
	}
	if id != "C008" {
		t.Errorf("next id = %s", id)
	}
	if _, err := database.NextSequenceInTx(ctx, tx, "NOPE", "N", 3); err == nil {
		t.Error("expected error for unknown sequence")
	}
}
