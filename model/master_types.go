// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\model\master_types.go
package model

import "database/sql"

type Child struct {
	ChildID       string         `db:"child_id" json:"childId"`
	LastName      string         `db:"last_name" json:"lastName"`
	FirstName     string         `db:"first_name" json:"firstName"`
	LastNameKana  sql.NullString `db:"last_name_kana" json:"lastNameKana"`
	FirstNameKana sql.NullString `db:"first_name_kana" json:"firstNameKana"`
	Dob           sql.NullString `db:"dob" json:"dob"`
	QrCodeName    sql.NullString `db:"qr_code_name" json:"qrCodeName"`
	IsDeleted     bool           `db:"is_deleted" json:"isDeleted"`
	CreatedAt     string         `db:"created_at" json:"createdAt"`
	CreatedBy     string         `db:"created_by" json:"createdBy"`
	UpdatedAt     string         `db:"updated_at" json:"updatedAt"`
	UpdatedBy     string         `db:"updated_by" json:"updatedBy"`
	Version       int            `db:"version" json:"version"`
}

// DisplayName は画面表示用の氏名 (姓名連結) です。
func (c Child) DisplayName() string {
	return c.LastName + c.FirstName
}

// ChildSchedule は児童ごと・曜日ごとの利用予定です。Weekday は 0=日曜。
type ChildSchedule struct {
	ChildID            string `db:"child_id" json:"childId"`
	Weekday            int    `db:"weekday" json:"weekday"`
	PlannedArrivalTime string `db:"planned_arrival_time" json:"plannedArrivalTime"`
	ContractedDuration int    `db:"contracted_duration" json:"contractedDuration"`
}

type CodeMaster struct {
	CodeType     string         `db:"code_type" json:"codeType"`
	CodeValue    string         `db:"code_value" json:"codeValue"`
	CodeTypeName sql.NullString `db:"code_type_name" json:"codeTypeName"`
	DisplayText  string         `db:"display_text" json:"displayText"`
	ShortText    sql.NullString `db:"short_text" json:"shortText"`
	Description  sql.NullString `db:"description" json:"description"`
}

const (
	CodeTypeEarlyLeaveReason = "EARLY_LEAVE_REASON"
	CodeTypeLateReason       = "LATE_REASON"
)
