// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\database\code_master.go
package database

import (
	"context"
	"fmt"
	"tsusho/model"

	"github.com/jmoiron/sqlx"
)

const codeMasterColumns = `code_type, code_value, code_type_name, display_text, short_text, description`

func GetAllCodes(ctx context.Context, q sqlx.QueryerContext) ([]model.CodeMaster, error) {
	codes := []model.CodeMaster{}
	if err := sqlx.SelectContext(ctx, q, &codes, `SELECT `+codeMasterColumns+` FROM code_master ORDER BY code_type, code_value`); err != nil {
		return nil, fmt.Errorf("failed to get all codes: %w", err)
	}
	return codes, nil
}

func GetCodesByType(ctx context.Context, q sqlx.QueryerContext, codeType string) ([]model.CodeMaster, error) {
	codes := []model.CodeMaster{}
	query := `SELECT ` + codeMasterColumns + ` FROM code_master WHERE code_type = ? ORDER BY code_value`
	if err := sqlx.SelectContext(ctx, q, &codes, query, codeType); err != nil {
		return nil, fmt.Errorf("failed to get codes (Type: %s): %w", codeType, err)
	}
	return codes, nil
}

// CreateCode はコードを登録します。既存の (種別, 値) は表示名等を更新します。
func CreateCode(ctx context.Context, e sqlx.ExtContext, c model.CodeMaster) error {
	const q = `
		INSERT INTO code_master (` + codeMasterColumns + `)
		VALUES (:code_type, :code_value, :code_type_name, :display_text, :short_text, :description)
		ON CONFLICT(code_type, code_value) DO UPDATE SET
			code_type_name = excluded.code_type_name,
			display_text = excluded.display_text,
			short_text = excluded.short_text,
			description = excluded.description
	`
	if _, err := sqlx.NamedExecContext(ctx, e, q, c); err != nil {
		return fmt.Errorf("CreateCode (Type: %s, Value: %s) failed: %w", c.CodeType, c.CodeValue, err)
	}
	return nil
}

func DeleteCode(ctx context.Context, e sqlx.ExecerContext, codeType, codeValue string) error {
	const q = `DELETE FROM code_master WHERE code_type = ? AND code_value = ?`
	if _, err := e.ExecContext(ctx, q, codeType, codeValue); err != nil {
		return fmt.Errorf("failed to delete code %s/%s: %w", codeType, codeValue, err)
	}
	return nil
}
