package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"tsusho/model"

	"github.com/jmoiron/sqlx"
)

const staffColumns = `staff_id, login_id, password_hash, account_status, failed_login_attempts,
	last_login_at, password_updated_at, created_at, updated_at`

func GetStaffByLoginID(ctx context.Context, q sqlx.QueryerContext, loginID string) (*model.Staff, error) {
	var s model.Staff
	if err := sqlx.GetContext(ctx, q, &s, `SELECT `+staffColumns+` FROM staff WHERE login_id = ?`, loginID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetStaffByLoginID (Login: %s): %w", loginID, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("GetStaffByLoginID (Login: %s) failed: %w", loginID, err)
	}
	return &s, nil
}

func CountStaff(ctx context.Context, q sqlx.QueryerContext) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM staff`); err != nil {
		return 0, fmt.Errorf("CountStaff failed: %w", err)
	}
	return n, nil
}

func CreateStaff(ctx context.Context, e sqlx.ExtContext, s *model.Staff) error {
	const q = `
		INSERT INTO staff (` + staffColumns + `)
		VALUES (:staff_id, :login_id, :password_hash, :account_status, :failed_login_attempts,
			:last_login_at, :password_updated_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, e, q, s); err != nil {
		return fmt.Errorf("CreateStaff (Login: %s) failed: %w", s.LoginID, err)
	}
	return nil
}

// RecordLoginFailure は失敗回数を加算し、上限に達したらアカウントをロックします。
func RecordLoginFailure(ctx context.Context, e sqlx.ExecerContext, staffID string, lockAfter int, at string) error {
	const q = `
		UPDATE staff SET
			failed_login_attempts = failed_login_attempts + 1,
			account_status = CASE WHEN failed_login_attempts + 1 >= ? THEN 'locked' ELSE account_status END,
			updated_at = ?
		WHERE staff_id = ?`
	if _, err := e.ExecContext(ctx, q, lockAfter, at, staffID); err != nil {
		return fmt.Errorf("RecordLoginFailure (Staff: %s) failed: %w", staffID, err)
	}
	return nil
}

// RecordLoginSuccess は失敗回数をリセットし、ログイン履歴を1件追加します。
func RecordLoginSuccess(ctx context.Context, tx *sqlx.Tx, s *model.Staff, at string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE staff SET failed_login_attempts = 0, last_login_at = ?, updated_at = ? WHERE staff_id = ?`,
		at, at, s.StaffID); err != nil {
		return fmt.Errorf("RecordLoginSuccess (Staff: %s) failed: %w", s.StaffID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO login_history (login_id, login_time) VALUES (?, ?)`, s.LoginID, at); err != nil {
		return fmt.Errorf("RecordLoginSuccess history (Login: %s) failed: %w", s.LoginID, err)
	}
	return nil
}

func CountLoginHistory(ctx context.Context, q sqlx.QueryerContext, loginID string) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM login_history WHERE login_id = ?`, loginID); err != nil {
		return 0, fmt.Errorf("CountLoginHistory failed: %w", err)
	}
	return n, nil
}
