// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\database\sequence.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// NextSequenceInTx は採番テーブルの番号を1つ進め、prefix + ゼロ埋め番号を返します。
func NextSequenceInTx(ctx context.Context, tx *sqlx.Tx, name, prefix string, padding int) (string, error) {
	var lastNo int
	err := tx.GetContext(ctx, &lastNo, "SELECT last_no FROM code_sequences WHERE name = ?", name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("sequence '%s' not found", name)
		}
		return "", fmt.Errorf("failed to get sequence '%s': %w", name, err)
	}

	newNo := lastNo + 1
	if _, err = tx.ExecContext(ctx, `UPDATE code_sequences SET last_no = ? WHERE name = ?`, newNo, name); err != nil {
		return "", fmt.Errorf("failed to update sequence '%s': %w", name, err)
	}

	format := fmt.Sprintf("%s%%0%dd", prefix, padding)
	return fmt.Sprintf(format, newNo), nil
}

// InitializeSequenceFromMaxChildID は既存の児童ID (C001 形式) の最大値で採番を初期化し、設定値を返します。
func InitializeSequenceFromMaxChildID(ctx context.Context, tx *sqlx.Tx) (int, error) {
	ids := []string{}
	if err := tx.SelectContext(ctx, &ids, "SELECT child_id FROM children WHERE child_id LIKE 'C%'"); err != nil {
		return 0, err
	}

	maxNum := 0
	for _, id := range ids {
		n, err := strconv.Atoi(strings.TrimPrefix(id, "C"))
		if err != nil {
			continue
		}
		if n > maxNum {
			maxNum = n
		}
	}

	_, err := tx.ExecContext(ctx, `UPDATE code_sequences SET last_no = ? WHERE name = 'CHILD' AND last_no < ?`, maxNum, maxNum)
	return maxNum, err
}
