// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\model\visit_types.go
package model

import "database/sql"

// VisitRecord は通所実績 (児童1名 × サービス提供日1日) です。
type VisitRecord struct {
	ID                   string         `db:"id" json:"id"`
	VisitDate            string         `db:"visit_date" json:"visitDate"`
	OfficeID             sql.NullString `db:"office_id" json:"officeId"`
	ChildID              string         `db:"child_id" json:"childId"`
	PlannedArrivalTime   sql.NullString `db:"planned_arrival_time" json:"plannedArrivalTime"`
	ContractedDuration   sql.NullInt64  `db:"contracted_duration" json:"contractedDuration"`
	ActualArrivalTime    sql.NullString `db:"actual_arrival_time" json:"actualArrivalTime"`
	ActualLeaveTime      sql.NullString `db:"actual_leave_time" json:"actualLeaveTime"`
	ActualDuration       sql.NullInt64  `db:"actual_duration" json:"actualDuration"`
	LateReasonCode       sql.NullString `db:"late_reason_code" json:"lateReasonCode"`
	EarlyLeaveReasonCode sql.NullString `db:"early_leave_reason_code" json:"earlyLeaveReasonCode"`
	Remarks              sql.NullString `db:"remarks" json:"remarks"`
	IsManuallyEntered    bool           `db:"is_manually_entered" json:"isManuallyEntered"`
	IsDeleted            bool           `db:"is_deleted" json:"isDeleted"`
	CreatedAt            string         `db:"created_at" json:"createdAt"`
	CreatedBy            string         `db:"created_by" json:"createdBy"`
	UpdatedAt            string         `db:"updated_at" json:"updatedAt"`
	UpdatedBy            string         `db:"updated_by" json:"updatedBy"`
	Version              int            `db:"version" json:"version"`
}

// VisitRecordPatch は VisitRecord の部分更新です。
// nil のフィールドは変更しません。Valid=false の値は NULL に更新します。
type VisitRecordPatch struct {
	ActualArrivalTime    *sql.NullString
	ActualLeaveTime      *sql.NullString
	ActualDuration       *sql.NullInt64
	LateReasonCode       *sql.NullString
	EarlyLeaveReasonCode *sql.NullString
	Remarks              *sql.NullString
	IsManuallyEntered    *bool
}

func (p VisitRecordPatch) IsEmpty() bool {
	return p.ActualArrivalTime == nil && p.ActualLeaveTime == nil && p.ActualDuration == nil &&
		p.LateReasonCode == nil && p.EarlyLeaveReasonCode == nil && p.Remarks == nil &&
		p.IsManuallyEntered == nil
}

// NullString / NullInt はパッチ組み立て用のヘルパーです。
func NullString(s *string) *sql.NullString {
	if s == nil {
		return &sql.NullString{}
	}
	return &sql.NullString{String: *s, Valid: true}
}

func NullInt(n *int) *sql.NullInt64 {
	if n == nil {
		return &sql.NullInt64{}
	}
	return &sql.NullInt64{Int64: int64(*n), Valid: true}
}
