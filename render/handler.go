package render

import (
	"context"
	"net/http"
	"time"
	"tsusho/attendance"
	"tsusho/codes"
	"tsusho/visit"

	"github.com/sirupsen/logrus"
)

// DailyRows は日報用に予定時刻順で並べた行を返します。
func DailyRows(ctx context.Context, s *visit.Service, date string) ([]attendance.Row, error) {
	items, err := s.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	sorted := attendance.Sorted(items, attendance.SortConfig{Column: attendance.SortScheduledTime, Direction: attendance.Asc})
	return attendance.Present(sorted), nil
}

// DailySheetHandler は ?date= (省略時は今日) の印刷用日報を HTML で返します。
func DailySheetHandler(s *visit.Service, table *codes.Table, officeID string, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = s.Today()
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			http.Error(w, "日付は YYYY-MM-DD 形式で指定してください。", http.StatusBadRequest)
			return
		}

		rows, err := DailyRows(r.Context(), s, date)
		if err != nil {
			logger.WithField("visitDate", date).Errorf("daily sheet failed: %v", err)
			http.Error(w, "通所実績の取得に失敗しました。", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(RenderDailySheetHTML(date, officeID, rows, table, s.Location())))
	}
}
