// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\database\children.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"tsusho/model"

	"github.com/jmoiron/sqlx"
)

const childColumns = `child_id, last_name, first_name, last_name_kana, first_name_kana, dob, qr_code_name,
	is_deleted, created_at, created_by, updated_at, updated_by, version`

// GetChildNameMap は児童ID → 表示名 (姓名連結) のマップを返します。
func GetChildNameMap(ctx context.Context, q sqlx.QueryerContext) (map[string]string, error) {
	children, err := GetAllChildren(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get child list for map: %w", err)
	}

	childMap := make(map[string]string, len(children))
	for _, c := range children {
		childMap[c.ChildID] = c.DisplayName()
	}
	return childMap, nil
}

func GetAllChildren(ctx context.Context, q sqlx.QueryerContext) ([]model.Child, error) {
	children := []model.Child{}
	query := `SELECT ` + childColumns + ` FROM children WHERE is_deleted = 0 ORDER BY child_id`
	if err := sqlx.SelectContext(ctx, q, &children, query); err != nil {
		return nil, fmt.Errorf("failed to get all children: %w", err)
	}
	return children, nil
}

// GetChildByScanCode は QRコードの読み取り値 (児童ID または QRコード名) から児童を探します。
func GetChildByScanCode(ctx context.Context, q sqlx.QueryerContext, code string) (*model.Child, error) {
	var c model.Child
	query := `SELECT ` + childColumns + ` FROM children
		WHERE is_deleted = 0 AND (child_id = ? OR qr_code_name = ?)
		ORDER BY CASE WHEN child_id = ? THEN 0 ELSE 1 END
		LIMIT 1`
	if err := sqlx.GetContext(ctx, q, &c, query, code, code, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetChildByScanCode (Code: %s): %w", code, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("GetChildByScanCode (Code: %s) failed: %w", code, err)
	}
	return &c, nil
}

// UpsertChildInTx は児童マスタに登録、または氏名等を更新します。
func UpsertChildInTx(ctx context.Context, tx sqlx.ExtContext, c *model.Child) error {
	const q = `
		INSERT INTO children (` + childColumns + `)
		VALUES (:child_id, :last_name, :first_name, :last_name_kana, :first_name_kana, :dob, :qr_code_name,
			:is_deleted, :created_at, :created_by, :updated_at, :updated_by, 1)
		ON CONFLICT(child_id) DO UPDATE SET
			last_name = excluded.last_name,
			first_name = excluded.first_name,
			last_name_kana = excluded.last_name_kana,
			first_name_kana = excluded.first_name_kana,
			dob = excluded.dob,
			qr_code_name = excluded.qr_code_name,
			is_deleted = 0,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by,
			version = children.version + 1
	`
	if _, err := sqlx.NamedExecContext(ctx, tx, q, c); err != nil {
		return fmt.Errorf("UpsertChildInTx (Code: %s, Name: %s) failed: %w", c.ChildID, c.DisplayName(), err)
	}
	return nil
}

func CreateChildInTx(ctx context.Context, tx sqlx.ExtContext, c *model.Child) error {
	const q = `
		INSERT INTO children (` + childColumns + `)
		VALUES (:child_id, :last_name, :first_name, :last_name_kana, :first_name_kana, :dob, :qr_code_name,
			0, :created_at, :created_by, :updated_at, :updated_by, 1)`
	if _, err := sqlx.NamedExecContext(ctx, tx, q, c); err != nil {
		return fmt.Errorf("CreateChildInTx (Code: %s) failed: %w", c.ChildID, err)
	}
	return nil
}

func DeleteChild(ctx context.Context, e sqlx.ExecerContext, childID, updatedBy, updatedAt string) error {
	const q = `UPDATE children SET is_deleted = 1, updated_at = ?, updated_by = ?, version = version + 1 WHERE child_id = ?`
	if _, err := e.ExecContext(ctx, q, updatedAt, updatedBy, childID); err != nil {
		return fmt.Errorf("failed to delete child with code %s: %w", childID, err)
	}
	return nil
}
