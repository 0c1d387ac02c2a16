// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\database\visit_records.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"tsusho/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
)

const visitRecordColumns = `id, visit_date, office_id, child_id, planned_arrival_time, contracted_duration,
	actual_arrival_time, actual_leave_time, actual_duration, late_reason_code, early_leave_reason_code,
	remarks, is_manually_entered, is_deleted, created_at, created_by, updated_at, updated_by, version`

// GetVisitRecordsByDate は指定日の通所実績 (削除済みを除く) を取得します。
func GetVisitRecordsByDate(ctx context.Context, q sqlx.QueryerContext, visitDate string) ([]model.VisitRecord, error) {
	records := []model.VisitRecord{}
	query := `SELECT ` + visitRecordColumns + ` FROM visit_records
		WHERE visit_date = ? AND is_deleted = 0
		ORDER BY planned_arrival_time, child_id`
	if err := sqlx.SelectContext(ctx, q, &records, query, visitDate); err != nil {
		return nil, fmt.Errorf("GetVisitRecordsByDate (Date: %s) failed: %w", visitDate, err)
	}
	return records, nil
}

// GetVisitRecordsByMonth は YYYY-MM で指定した月の通所実績を取得します。
func GetVisitRecordsByMonth(ctx context.Context, q sqlx.QueryerContext, month string) ([]model.VisitRecord, error) {
	records := []model.VisitRecord{}
	query := `SELECT ` + visitRecordColumns + ` FROM visit_records
		WHERE visit_date LIKE ? AND is_deleted = 0
		ORDER BY visit_date, planned_arrival_time, child_id`
	if err := sqlx.SelectContext(ctx, q, &records, query, month+"-%"); err != nil {
		return nil, fmt.Errorf("GetVisitRecordsByMonth (Month: %s) failed: %w", month, err)
	}
	return records, nil
}

func GetVisitRecordByID(ctx context.Context, q sqlx.QueryerContext, id string) (*model.VisitRecord, error) {
	var rec model.VisitRecord
	query := `SELECT ` + visitRecordColumns + ` FROM visit_records WHERE id = ? AND is_deleted = 0`
	if err := sqlx.GetContext(ctx, q, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetVisitRecordByID (ID: %s): %w", id, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("GetVisitRecordByID (ID: %s) failed: %w", id, err)
	}
	return &rec, nil
}

func GetVisitRecordByChildAndDate(ctx context.Context, q sqlx.QueryerContext, childID, visitDate string) (*model.VisitRecord, error) {
	var rec model.VisitRecord
	query := `SELECT ` + visitRecordColumns + ` FROM visit_records
		WHERE child_id = ? AND visit_date = ? AND is_deleted = 0`
	if err := sqlx.GetContext(ctx, q, &rec, query, childID, visitDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetVisitRecordByChildAndDate (Child: %s, Date: %s): %w", childID, visitDate, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("GetVisitRecordByChildAndDate (Child: %s, Date: %s) failed: %w", childID, visitDate, err)
	}
	return &rec, nil
}

// InsertVisitRecordIfAbsent は同じ日付・児童の実績が無い場合のみ登録します。
// 登録した場合は true を返します。ID が空なら UUID を採番します。
func InsertVisitRecordIfAbsent(ctx context.Context, e sqlx.ExtContext, rec *model.VisitRecord) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	const q = `
		INSERT OR IGNORE INTO visit_records (` + visitRecordColumns + `)
		VALUES (:id, :visit_date, :office_id, :child_id, :planned_arrival_time, :contracted_duration,
			:actual_arrival_time, :actual_leave_time, :actual_duration, :late_reason_code, :early_leave_reason_code,
			:remarks, :is_manually_entered, :is_deleted, :created_at, :created_by, :updated_at, :updated_by, :version)`
	res, err := sqlx.NamedExecContext(ctx, e, q, rec)
	if err != nil {
		return false, fmt.Errorf("InsertVisitRecordIfAbsent (Child: %s, Date: %s) failed: %w", rec.ChildID, rec.VisitDate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateVisitRecord は patch の指定フィールドのみを更新し、version を +1、監査項目を更新します。
// baseVersion が指定された場合は現在の version と一致する場合のみ更新します。
func UpdateVisitRecord(ctx context.Context, e sqlx.ExtContext, id string, patch model.VisitRecordPatch, updatedBy, updatedAt string, baseVersion *int) error {
	sets := []string{}
	args := []interface{}{}
	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.ActualArrivalTime != nil {
		add("actual_arrival_time", *patch.ActualArrivalTime)
	}
	if patch.ActualLeaveTime != nil {
		add("actual_leave_time", *patch.ActualLeaveTime)
	}
	if patch.ActualDuration != nil {
		add("actual_duration", *patch.ActualDuration)
	}
	if patch.LateReasonCode != nil {
		add("late_reason_code", *patch.LateReasonCode)
	}
	if patch.EarlyLeaveReasonCode != nil {
		add("early_leave_reason_code", *patch.EarlyLeaveReasonCode)
	}
	if patch.Remarks != nil {
		add("remarks", *patch.Remarks)
	}
	if patch.IsManuallyEntered != nil {
		add("is_manually_entered", *patch.IsManuallyEntered)
	}
	add("updated_at", updatedAt)
	add("updated_by", updatedBy)

	q := `UPDATE visit_records SET ` + strings.Join(sets, ", ") + `, version = version + 1
		WHERE id = ? AND is_deleted = 0`
	args = append(args, id)
	if baseVersion != nil {
		q += ` AND version = ?`
		args = append(args, *baseVersion)
	}

	res, err := e.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("UpdateVisitRecord (ID: %s) failed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateVisitRecord (ID: %s) rows affected: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	// 0件: 存在しないのか version 不一致なのかを判定する
	if _, err := GetVisitRecordByID(ctx, e, id); err != nil {
		return err
	}
	return fmt.Errorf("UpdateVisitRecord (ID: %s, baseVersion: %d): %w", id, derefInt(baseVersion), ErrVersionConflict)
}

// SoftDeleteVisitRecord は実績を削除済みにします。
func SoftDeleteVisitRecord(ctx context.Context, e sqlx.ExecerContext, id, updatedBy, updatedAt string) error {
	const q = `UPDATE visit_records SET is_deleted = 1, updated_at = ?, updated_by = ?, version = version + 1 WHERE id = ? AND is_deleted = 0`
	res, err := e.ExecContext(ctx, q, updatedAt, updatedBy, id)
	if err != nil {
		return fmt.Errorf("SoftDeleteVisitRecord (ID: %s) failed: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("SoftDeleteVisitRecord (ID: %s): %w", id, ErrRecordNotFound)
	}
	return nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
