package schedule

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

func writeJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// GenerateHandler は指定日 (?date=、省略時は今日) の実績枠を作成します。
func GenerateHandler(g *Generator, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		date := r.URL.Query().Get("date")
		if date == "" {
			date = g.Today()
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			writeJSON(w, map[string]string{"message": "日付は YYYY-MM-DD 形式で指定してください。"}, http.StatusBadRequest)
			return
		}

		created, err := g.Generate(r.Context(), date)
		if err != nil {
			logger.WithField("visitDate", date).Errorf("generate failed: %v", err)
			writeJSON(w, map[string]string{"message": "実績の作成に失敗しました。"}, http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{
			"message": "実績を作成しました。",
			"date":    date,
			"created": created,
		}, http.StatusOK)
	}
}

// SeedHandler は開発用の初期データを登録します。
func SeedHandler(g *Generator, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		result, err := g.SeedDemo(r.Context())
		if err != nil {
			logger.Errorf("seed failed: %v", err)
			writeJSON(w, map[string]string{"message": "初期データ登録に失敗しました"}, http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{
			"message": "初期データを登録しました。",
			"result":  result,
		}, http.StatusOK)
	}
}
