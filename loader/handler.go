// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\loader\handler.go
package loader

import (
	"encoding/json"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// ReloadMastersHandler は SOU フォルダのマスタCSVを再取込します。
func ReloadMastersHandler(db *sqlx.DB, souDir string, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		logger.Info("Reloading master CSV files...")
		result, err := LoadMasters(r.Context(), db, souDir, logger)
		if err != nil {
			logger.Errorf("master reload failed: %v", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"message": "マスタの再取込に失敗しました: " + err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "マスタを再取込しました。",
			"result":  result,
		})
	}
}
