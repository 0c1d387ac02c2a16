package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
	"tsusho/attendance"
	"tsusho/codes"
	"tsusho/visit"

	"github.com/sirupsen/logrus"
)

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
}

// DailyCSVHandler は ?date= (省略時は今日) の実績を CSV で返します。並びは児童名順です。
func DailyCSVHandler(s *visit.Service, table *codes.Table, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = s.Today()
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			writeJSONError(w, "日付は YYYY-MM-DD 形式で指定してください。", http.StatusBadRequest)
			return
		}

		items, err := s.ListByDate(r.Context(), date)
		if err != nil {
			logger.WithField("visitDate", date).Errorf("daily csv failed: %v", err)
			writeJSONError(w, "通所実績の取得に失敗しました。", http.StatusInternalServerError)
			return
		}
		rows := attendance.Present(attendance.Sorted(items, attendance.SortConfig{Column: attendance.SortUserName, Direction: attendance.Asc}))

		var buf bytes.Buffer
		if err := WriteDailyCSV(&buf, rows, table, s.Location()); err != nil {
			writeJSONError(w, "CSVの作成に失敗しました。", http.StatusInternalServerError)
			return
		}
		attachment(w, "text/csv; charset=utf-8", fmt.Sprintf("通所実績_%s.csv", date))
		w.Write(buf.Bytes())
	}
}

// MonthlyXLSXHandler は ?month=YYYY-MM (省略時は今月) の明細と児童別集計を Excel で返します。
func MonthlyXLSXHandler(s *visit.Service, table *codes.Table, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		month := r.URL.Query().Get("month")
		if month == "" {
			month = s.Today()[:7]
		}
		if _, err := time.Parse("2006-01", month); err != nil {
			writeJSONError(w, "対象月は YYYY-MM 形式で指定してください。", http.StatusBadRequest)
			return
		}

		items, err := s.ListByMonth(r.Context(), month)
		if err != nil {
			logger.WithField("month", month).Errorf("monthly report failed: %v", err)
			writeJSONError(w, "通所実績の取得に失敗しました。", http.StatusInternalServerError)
			return
		}
		f, err := BuildMonthlyWorkbook(month, items, table, s.Location())
		if err != nil {
			logger.WithField("month", month).Errorf("monthly workbook failed: %v", err)
			writeJSONError(w, "Excelの作成に失敗しました。", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", fmt.Sprintf("通所実績_%s.xlsx", month))
		if err := f.Write(w); err != nil {
			logger.WithField("month", month).Errorf("failed to write workbook: %v", err)
		}
	}
}
