// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\child\import.go
package child

import (
	"context"
	"database/sql"
	"fmt"
	"tsusho/database"
	"tsusho/model"
	"tsusho/parsers"

	"github.com/jmoiron/sqlx"
)

// ImportSummary は取込件数とスキップ理由です。
type ImportSummary struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped"`
}

func optional(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// NextChildIDInTx は C001 形式の児童IDを採番します。
func NextChildIDInTx(ctx context.Context, tx *sqlx.Tx) (string, error) {
	return database.NextSequenceInTx(ctx, tx, "CHILD", "C", 3)
}

// ImportChildren は児童マスタCSVの行を同一トランザクションで登録・更新します。
// 児童IDが空の行には新しいIDを採番します。
func ImportChildren(ctx context.Context, tx *sqlx.Tx, rows []parsers.ParsedChildCSVRecord, by, at string) (ImportSummary, error) {
	summary := ImportSummary{Skipped: []string{}}

	explicit := make([]*model.Child, 0, len(rows))
	generated := make([]*model.Child, 0)
	for _, row := range rows {
		c := &model.Child{
			ChildID:       row.ChildID,
			LastName:      row.LastName,
			FirstName:     row.FirstName,
			LastNameKana:  optional(row.LastNameKana),
			FirstNameKana: optional(row.FirstNameKana),
			Dob:           optional(row.Dob),
			QrCodeName:    optional(row.QrCodeName),
			CreatedAt:     at,
			CreatedBy:     by,
			UpdatedAt:     at,
			UpdatedBy:     by,
		}
		if c.ChildID == "" {
			generated = append(generated, c)
		} else {
			explicit = append(explicit, c)
		}
	}

	for _, c := range explicit {
		if err := database.UpsertChildInTx(ctx, tx, c); err != nil {
			summary.Skipped = append(summary.Skipped, fmt.Sprintf("児童 %s (%s): %v", c.ChildID, c.DisplayName(), err))
			continue
		}
		summary.Imported++
	}
	// CSV に明示されたIDより後ろから採番する
	if _, err := database.InitializeSequenceFromMaxChildID(ctx, tx); err != nil {
		return summary, fmt.Errorf("failed to initialize child sequence: %w", err)
	}
	for _, c := range generated {
		id, err := NextChildIDInTx(ctx, tx)
		if err != nil {
			return summary, err
		}
		c.ChildID = id
		if err := database.CreateChildInTx(ctx, tx, c); err != nil {
			summary.Skipped = append(summary.Skipped, fmt.Sprintf("児童 %s: %v", c.DisplayName(), err))
			continue
		}
		summary.Imported++
	}
	return summary, nil
}

// ImportSchedules は利用予定CSVの行を登録・更新します。未登録の児童の行はスキップします。
func ImportSchedules(ctx context.Context, tx *sqlx.Tx, rows []parsers.ParsedScheduleCSVRecord) (ImportSummary, error) {
	summary := ImportSummary{Skipped: []string{}}
	known, err := database.GetChildNameMap(ctx, tx)
	if err != nil {
		return summary, err
	}
	for _, row := range rows {
		if _, ok := known[row.ChildID]; !ok {
			summary.Skipped = append(summary.Skipped, fmt.Sprintf("%d行目: 児童 %s が見つかりません", row.Line, row.ChildID))
			continue
		}
		s := model.ChildSchedule{
			ChildID:            row.ChildID,
			Weekday:            row.Weekday,
			PlannedArrivalTime: row.PlannedArrivalTime,
			ContractedDuration: row.ContractedDuration,
		}
		if err := database.UpsertScheduleInTx(ctx, tx, s); err != nil {
			summary.Skipped = append(summary.Skipped, fmt.Sprintf("%d行目: %v", row.Line, err))
			continue
		}
		summary.Imported++
	}
	return summary, nil
}
