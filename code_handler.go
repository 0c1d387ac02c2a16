// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\code_handler.go
package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"tsusho/codes"
	"tsusho/database"
	"tsusho/model"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// ListCodesHandler は理由コードの一覧を返します (?type= で種別を絞り込み)
func ListCodesHandler(table *codes.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(table.Codes(r.URL.Query().Get("type")))
	}
}

// CreateCodeHandler はコードを登録・更新し、メモリ上の表を読み込み直します
func CreateCodeHandler(db *sqlx.DB, table *codes.Table, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		var input struct {
			CodeType    string `json:"codeType" validate:"required,oneof=EARLY_LEAVE_REASON LATE_REASON"`
			CodeValue   string `json:"codeValue" validate:"required,max=10"`
			DisplayText string `json:"displayText" validate:"required,max=40"`
			ShortText   string `json:"shortText" validate:"max=10"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeJSONError(w, "リクエストが不正です。", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(input); err != nil {
			writeJSONError(w, "コード種別・コード値・表示名は必須です。", http.StatusBadRequest)
			return
		}

		c := model.CodeMaster{
			CodeType:    input.CodeType,
			CodeValue:   strings.TrimSpace(input.CodeValue),
			DisplayText: strings.TrimSpace(input.DisplayText),
		}
		if input.ShortText != "" {
			c.ShortText = sql.NullString{String: input.ShortText, Valid: true}
		}
		if err := database.CreateCode(r.Context(), db, c); err != nil {
			logger.Errorf("Error creating code (Type: %s, Value: %s): %v", c.CodeType, c.CodeValue, err)
			writeJSONError(w, "コードの作成に失敗しました。", http.StatusInternalServerError)
			return
		}
		if err := table.Load(r.Context(), db); err != nil {
			logger.Errorf("Error reloading codes: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"message": "作成しました。"})
	}
}

// DeleteCodeHandler はコードを削除します
func DeleteCodeHandler(db *sqlx.DB, table *codes.Table, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// URLから種別と値を取得 (例: /api/codes/delete/EARLY_LEAVE_REASON/01)
		rest := strings.TrimPrefix(r.URL.Path, "/api/codes/delete/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			writeJSONError(w, "削除するコードが指定されていません。", http.StatusBadRequest)
			return
		}

		if err := database.DeleteCode(r.Context(), db, parts[0], parts[1]); err != nil {
			logger.Errorf("Error deleting code (Type: %s, Value: %s): %v", parts[0], parts[1], err)
			writeJSONError(w, "コードの削除に失敗しました。", http.StatusInternalServerError)
			return
		}
		if err := table.Load(r.Context(), db); err != nil {
			logger.Errorf("Error reloading codes: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "削除しました。"})
	}
}
