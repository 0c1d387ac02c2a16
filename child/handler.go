// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\child\handler.go
package child

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"tsusho/auth"
	"tsusho/database"
	"tsusho/model"
	"tsusho/parsers"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// CreateInput は児童の新規登録リクエストです。ChildID を省略すると採番します。
type CreateInput struct {
	ChildID       string `json:"childId" validate:"omitempty,max=20"`
	LastName      string `json:"lastName" validate:"required,max=50"`
	FirstName     string `json:"firstName" validate:"required,max=50"`
	LastNameKana  string `json:"lastNameKana" validate:"omitempty,max=50"`
	FirstNameKana string `json:"firstNameKana" validate:"omitempty,max=50"`
	Dob           string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	QrCodeName    string `json:"qrCodeName" validate:"omitempty,max=64"`
}

// Create は児童を1件登録します。
func Create(ctx context.Context, db *sqlx.DB, in CreateInput, by string, now time.Time) (*model.Child, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	at := now.Format(time.RFC3339)
	c := &model.Child{
		ChildID:       strings.TrimSpace(in.ChildID),
		LastName:      strings.TrimSpace(in.LastName),
		FirstName:     strings.TrimSpace(in.FirstName),
		LastNameKana:  optional(strings.TrimSpace(in.LastNameKana)),
		FirstNameKana: optional(strings.TrimSpace(in.FirstNameKana)),
		Dob:           optional(in.Dob),
		QrCodeName:    optional(strings.TrimSpace(in.QrCodeName)),
		CreatedAt:     at,
		CreatedBy:     by,
		UpdatedAt:     at,
		UpdatedBy:     by,
		Version:       1,
	}
	if c.ChildID == "" {
		if _, err := database.InitializeSequenceFromMaxChildID(ctx, tx); err != nil {
			return nil, fmt.Errorf("failed to initialize child sequence: %w", err)
		}
		if c.ChildID, err = NextChildIDInTx(ctx, tx); err != nil {
			return nil, err
		}
	}
	if err := database.CreateChildInTx(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit child: %w", err)
	}
	return c, nil
}

func ListChildrenHandler(db *sqlx.DB, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		children, err := database.GetAllChildren(r.Context(), db)
		if err != nil {
			logger.Errorf("Error getting children: %v", err)
			writeJSONError(w, "児童一覧の取得に失敗しました。", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(children)
	}
}

func CreateChildHandler(db *sqlx.DB, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		var in CreateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSONError(w, "リクエストが不正です。", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(in); err != nil {
			writeJSONError(w, "入力内容が不正です: "+err.Error(), http.StatusBadRequest)
			return
		}

		c, err := Create(r.Context(), db, in, auth.Actor(r.Context()), time.Now())
		if err != nil {
			logger.WithField("childId", in.ChildID).Errorf("Error creating child: %v", err)
			writeJSONError(w, "児童の登録に失敗しました。", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(c)
	}
}

func DeleteChildHandler(db *sqlx.DB, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID := strings.TrimPrefix(r.URL.Path, "/api/children/delete/")
		if childID == "" {
			writeJSONError(w, "削除する児童IDが指定されていません。", http.StatusBadRequest)
			return
		}
		at := time.Now().Format(time.RFC3339)
		if err := database.DeleteChild(r.Context(), db, childID, auth.Actor(r.Context()), at); err != nil {
			logger.WithField("childId", childID).Errorf("Error deleting child: %v", err)
			writeJSONError(w, "児童の削除に失敗しました。", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "削除しました。"})
	}
}

// ImportChildrenHandler は児童マスタCSV (file) を取り込みます。?encoding=sjis で Shift_JIS を受け付けます。
func ImportChildrenHandler(db *sqlx.DB, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSONError(w, "CSVファイルの読み取りに失敗: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		parsed, err := parsers.ParseChildCSV(parsers.DecodeReader(file, r.URL.Query().Get("encoding")))
		if err != nil {
			writeJSONError(w, "CSVファイルの解析に失敗: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(parsed.Records) == 0 {
			writeJSONError(w, "CSVから読み込むデータがありません。", http.StatusBadRequest)
			return
		}

		tx, err := db.BeginTxx(r.Context(), nil)
		if err != nil {
			writeJSONError(w, "データベーストランザクションの開始に失敗: "+err.Error(), http.StatusInternalServerError)
			return
		}
		defer tx.Rollback()

		summary, err := ImportChildren(r.Context(), tx, parsed.Records, auth.Actor(r.Context()), time.Now().Format(time.RFC3339))
		if err != nil {
			logger.Errorf("Error importing children: %v", err)
			writeJSONError(w, "児童マスタの取込に失敗しました。", http.StatusInternalServerError)
			return
		}
		if err := tx.Commit(); err != nil {
			writeJSONError(w, "データベースのコミットに失敗: "+err.Error(), http.StatusInternalServerError)
			return
		}
		summary.Skipped = append(parsed.Skipped, summary.Skipped...)
		writeSummary(w, logger, "児童", summary)
	}
}

func ImportSchedulesHandler(db *sqlx.DB, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSONError(w, "CSVファイルの読み取りに失敗: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		parsed, err := parsers.ParseScheduleCSV(parsers.DecodeReader(file, r.URL.Query().Get("encoding")))
		if err != nil {
			writeJSONError(w, "CSVファイルの解析に失敗: "+err.Error(), http.StatusBadRequest)
			return
		}

		tx, err := db.BeginTxx(r.Context(), nil)
		if err != nil {
			writeJSONError(w, "データベーストランザクションの開始に失敗: "+err.Error(), http.StatusInternalServerError)
			return
		}
		defer tx.Rollback()

		summary, err := ImportSchedules(r.Context(), tx, parsed.Records)
		if err != nil {
			logger.Errorf("Error importing schedules: %v", err)
			writeJSONError(w, "利用予定の取込に失敗しました。", http.StatusInternalServerError)
			return
		}
		if err := tx.Commit(); err != nil {
			writeJSONError(w, "データベースのコミットに失敗: "+err.Error(), http.StatusInternalServerError)
			return
		}
		summary.Skipped = append(parsed.Skipped, summary.Skipped...)
		writeSummary(w, logger, "利用予定", summary)
	}
}

func writeSummary(w http.ResponseWriter, logger *logrus.Logger, label string, summary ImportSummary) {
	for _, s := range summary.Skipped {
		logger.Warnf("%s CSV skipped: %s", label, s)
	}
	message := fmt.Sprintf("インポート完了。\n%s: %d件", label, summary.Imported)
	if len(summary.Skipped) > 0 {
		message += fmt.Sprintf("\n%d件のエラーまたはスキップが発生しました。", len(summary.Skipped))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":  message,
		"imported": summary.Imported,
		"skipped":  summary.Skipped,
	})
}
