// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\automation\handler.go
package automation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
	"tsusho/codes"
	"tsusho/config"
	"tsusho/render"
	"tsusho/visit"

	"github.com/sirupsen/logrus"
)

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// DailyPDFHandler は ?date= (省略時は今日) の日報を PDF にして reportFolderPath に保存します。
func DailyPDFHandler(s *visit.Service, table *codes.Table, cfgs *config.Manager, p Printer, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		date := r.URL.Query().Get("date")
		if date == "" {
			date = s.Today()
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			writeJSONError(w, "日付は YYYY-MM-DD 形式で指定してください。", http.StatusBadRequest)
			return
		}

		cfg := cfgs.Get()
		saveDir := cfg.ReportFolderPath
		if saveDir == "" {
			saveDir = os.TempDir()
			logger.Infof("PDF保存先設定がないため、一時フォルダを使用します: %s", saveDir)
		}

		rows, err := render.DailyRows(r.Context(), s, date)
		if err != nil {
			logger.WithField("visitDate", date).Errorf("daily pdf failed: %v", err)
			writeJSONError(w, "通所実績の取得に失敗しました。", http.StatusInternalServerError)
			return
		}
		page := render.RenderDailySheetHTML(date, cfg.OfficeID, rows, table, s.Location())

		logger.WithField("visitDate", date).Info("Printing daily sheet to PDF...")
		fileName := fmt.Sprintf("通所実績_%s.pdf", date)
		filePath, err := PrintPDF(r.Context(), p, page, saveDir, fileName)
		if err != nil {
			logger.WithField("visitDate", date).Errorf("Automation Error: %v", err)
			writeJSONError(w, "PDF出力エラー: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "success",
			"message":  fmt.Sprintf("PDFを保存しました: %d件", len(rows)),
			"filePath": filePath,
		})
	}
}
