// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\loader\loader.go
package loader

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"tsusho/child"
	"tsusho/codes"
	"tsusho/database"
	"tsusho/parsers"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schemaSQL string

const (
	ChildrenCSVName  = "CHILDREN.CSV"
	SchedulesCSVName = "SCHEDULES.CSV"
	ReasonsCSVName   = "REASONS.CSV"
)

// Open は SQLite データベースを開きます。":memory:" の場合は接続を1本に固定します。
func Open(path string) (*sqlx.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// ApplySchema は埋め込みの schema.sql を適用します。何度実行しても同じ結果になります。
func ApplySchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema.sql: %w", err)
	}
	return nil
}

// InitDatabase はスキーマを適用し、採番を初期化し、souDir にマスタCSVがあれば取り込みます。
func InitDatabase(ctx context.Context, db *sqlx.DB, souDir string, logger *logrus.Logger) error {
	logger.Info("Applying database schema...")
	if err := ApplySchema(ctx, db); err != nil {
		return err
	}
	logger.Info("Schema applied successfully.")

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	maxNo, err := database.InitializeSequenceFromMaxChildID(ctx, tx)
	if err != nil {
		return fmt.Errorf("failed to initialize child sequence: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sequence: %w", err)
	}
	logger.WithField("lastNo", maxNo).Debug("child sequence initialized")

	if souDir == "" {
		return nil
	}
	_, err = LoadMasters(ctx, db, souDir, logger)
	return err
}

// MastersResult は SOU フォルダからの取込結果です。
type MastersResult struct {
	Children  *child.ImportSummary `json:"children,omitempty"`
	Schedules *child.ImportSummary `json:"schedules,omitempty"`
	Codes     int                  `json:"codes"`
}

// LoadMasters は souDir の CHILDREN.CSV / SCHEDULES.CSV / REASONS.CSV (Shift_JIS) を取り込みます。
// ファイルが無い場合は警告してスキップします。
func LoadMasters(ctx context.Context, db *sqlx.DB, souDir string, logger *logrus.Logger) (*MastersResult, error) {
	result := &MastersResult{}
	at := time.Now().Format(time.RFC3339)

	childrenPath := filepath.Join(souDir, ChildrenCSVName)
	if f, err := os.Open(childrenPath); err != nil {
		logger.Warnf("%s not found, skipping.", childrenPath)
	} else {
		defer f.Close()
		parsed, err := parsers.ParseChildCSV(parsers.DecodeReader(f, "sjis"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", childrenPath, err)
		}
		summary, err := inTx(ctx, db, func(tx *sqlx.Tx) (child.ImportSummary, error) {
			return child.ImportChildren(ctx, tx, parsed.Records, "system", at)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", childrenPath, err)
		}
		summary.Skipped = append(parsed.Skipped, summary.Skipped...)
		result.Children = &summary
		logger.Infof("Loaded %s: %d rows, %d skipped.", childrenPath, summary.Imported, len(summary.Skipped))
	}

	schedulesPath := filepath.Join(souDir, SchedulesCSVName)
	if f, err := os.Open(schedulesPath); err != nil {
		logger.Warnf("%s not found, skipping.", schedulesPath)
	} else {
		defer f.Close()
		parsed, err := parsers.ParseScheduleCSV(parsers.DecodeReader(f, "sjis"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", schedulesPath, err)
		}
		summary, err := inTx(ctx, db, func(tx *sqlx.Tx) (child.ImportSummary, error) {
			return child.ImportSchedules(ctx, tx, parsed.Records)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", schedulesPath, err)
		}
		summary.Skipped = append(parsed.Skipped, summary.Skipped...)
		result.Schedules = &summary
		logger.Infof("Loaded %s: %d rows, %d skipped.", schedulesPath, summary.Imported, len(summary.Skipped))
	}

	reasonsPath := filepath.Join(souDir, ReasonsCSVName)
	if _, err := os.Stat(reasonsPath); err != nil {
		logger.Debugf("%s not found, skipping.", reasonsPath)
		return result, nil
	}
	list, err := codes.LoadCSVFile(reasonsPath)
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, c := range list {
		if err := database.CreateCode(ctx, tx, c); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", reasonsPath, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", reasonsPath, err)
	}
	result.Codes = len(list)
	logger.Infof("Loaded %s: %d codes.", reasonsPath, len(list))
	return result, nil
}

func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) (child.ImportSummary, error)) (child.ImportSummary, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return child.ImportSummary{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	summary, err := fn(tx)
	if err != nil {
		return summary, err
	}
	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("failed to commit: %w", err)
	}
	return summary, nil
}
