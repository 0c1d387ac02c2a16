// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\report\daily.go
package report

import (
	"bytes"
	"io"
	"strings"
	"time"
	"tsusho/attendance"
	"tsusho/codes"
)

var dailyHeader = []string{"利用日", "児童ID", "氏名", "予定時刻", "契約時間", "来所時刻", "退所時刻", "利用時間", "状態", "理由", "備考"}

func quoteAll(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ScheduledClock は予定時刻を HH:mm で返します。
func ScheduledClock(s string) string {
	if len(s) >= 5 {
		return s[:5]
	}
	return s
}

// WriteDailyCSV は1日分の実績を UTF-8 (BOM付き)・CRLF・全項目クォートの CSV で書き出します。
func WriteDailyCSV(w io.Writer, rows []attendance.Row, table *codes.Table, loc *time.Location) error {
	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBB, 0xBF}) // UTF-8 BOM

	buf.WriteString(strings.Join(dailyHeader, ",") + "\r\n")
	for _, row := range rows {
		record := []string{
			quoteAll(row.VisitDate),
			quoteAll(row.ChildID),
			quoteAll(row.UserName),
			quoteAll(ScheduledClock(row.ScheduledTime)),
			quoteAll(row.ContractTime),
			quoteAll(attendance.ClockText(row.ArrivalTime, loc)),
			quoteAll(attendance.ClockText(row.DepartureTime, loc)),
			quoteAll(row.ActualUsageTime),
			quoteAll(row.StatusLabel),
			quoteAll(table.ReasonName(row.Reason)),
			quoteAll(row.Note),
		}
		buf.WriteString(strings.Join(record, ",") + "\r\n")
	}
	_, err := w.Write(buf.Bytes())
	return err
}
