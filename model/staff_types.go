package model

import "database/sql"

const (
	AccountStatusActive = "active"
	AccountStatusLocked = "locked"
)

// Staff は職員の認証情報です。
type Staff struct {
	StaffID             string         `db:"staff_id" json:"staffId"`
	LoginID             string         `db:"login_id" json:"loginId"`
	PasswordHash        string         `db:"password_hash" json:"-"`
	AccountStatus       string         `db:"account_status" json:"accountStatus"`
	FailedLoginAttempts int            `db:"failed_login_attempts" json:"failedLoginAttempts"`
	LastLoginAt         sql.NullString `db:"last_login_at" json:"lastLoginAt"`
	PasswordUpdatedAt   sql.NullString `db:"password_updated_at" json:"passwordUpdatedAt"`
	CreatedAt           string         `db:"created_at" json:"createdAt"`
	UpdatedAt           string         `db:"updated_at" json:"updatedAt"`
}
