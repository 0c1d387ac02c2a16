package database

import (
	"context"
	"fmt"
	"tsusho/model"

	"github.com/jmoiron/sqlx"
)

// GetSchedulesByWeekday は指定曜日に利用予定がある (削除されていない) 児童の予定を返します。
func GetSchedulesByWeekday(ctx context.Context, q sqlx.QueryerContext, weekday int) ([]model.ChildSchedule, error) {
	schedules := []model.ChildSchedule{}
	const query = `
		SELECT s.child_id, s.weekday, s.planned_arrival_time, s.contracted_duration
		FROM child_schedules s
		JOIN children c ON c.child_id = s.child_id AND c.is_deleted = 0
		WHERE s.weekday = ?
		ORDER BY s.planned_arrival_time, s.child_id`
	if err := sqlx.SelectContext(ctx, q, &schedules, query, weekday); err != nil {
		return nil, fmt.Errorf("GetSchedulesByWeekday (Weekday: %d) failed: %w", weekday, err)
	}
	return schedules, nil
}

func GetSchedulesByChild(ctx context.Context, q sqlx.QueryerContext, childID string) ([]model.ChildSchedule, error) {
	schedules := []model.ChildSchedule{}
	const query = `SELECT child_id, weekday, planned_arrival_time, contracted_duration
		FROM child_schedules WHERE child_id = ? ORDER BY weekday`
	if err := sqlx.SelectContext(ctx, q, &schedules, query, childID); err != nil {
		return nil, fmt.Errorf("GetSchedulesByChild (Child: %s) failed: %w", childID, err)
	}
	return schedules, nil
}

func UpsertScheduleInTx(ctx context.Context, tx sqlx.ExecerContext, s model.ChildSchedule) error {
	const q = `
		INSERT INTO child_schedules (child_id, weekday, planned_arrival_time, contracted_duration)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(child_id, weekday) DO UPDATE SET
			planned_arrival_time = excluded.planned_arrival_time,
			contracted_duration = excluded.contracted_duration
	`
	if _, err := tx.ExecContext(ctx, q, s.ChildID, s.Weekday, s.PlannedArrivalTime, s.ContractedDuration); err != nil {
		return fmt.Errorf("UpsertScheduleInTx (Child: %s, Weekday: %d) failed: %w", s.ChildID, s.Weekday, err)
	}
	return nil
}
