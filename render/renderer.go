// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\render\renderer.go
package render

import (
	"fmt"
	"html"
	"strings"
	"time"
	"tsusho/attendance"
	"tsusho/codes"
)

// RenderAttendanceTableHTML は、一覧の行からHTMLテーブル (thead/tbody) 文字列を生成します。
// 印刷用の日報と PDF 出力の両方から呼び出される共有コンポーネントです。
func RenderAttendanceTableHTML(rows []attendance.Row, table *codes.Table, loc *time.Location) string {
	var sb strings.Builder

	sb.WriteString(`
    <thead>
        <tr>
            <th class="col-no">No</th>
            <th class="col-name">氏名</th>
            <th class="col-scheduled">予定</th>
            <th class="col-contract">契約時間</th>
            <th class="col-arrival">来所</th>
            <th class="col-departure">退所</th>
            <th class="col-usage">利用時間</th>
            <th class="col-status">状態</th>
            <th class="col-reason">理由</th>
            <th class="col-note">備考</th>
        </tr>
    </thead>`)

	sb.WriteString(`<tbody>`)
	if len(rows) == 0 {
		sb.WriteString(`<tr><td colspan="10">登録されたデータはありません。</td></tr>`)
	} else {
		for i, row := range rows {
			rowClass := "status-" + strings.ToLower(statusClass(row.Status))
			reasonName := ""
			if table != nil {
				reasonName = table.ReasonName(row.Reason)
			} else {
				reasonName = row.Reason // 表が無い場合はコード
			}
			usage := row.ActualUsageTime
			if usage == "" {
				usage = "－"
			}

			sb.WriteString(fmt.Sprintf(`<tr class="%s">`, rowClass))
			sb.WriteString(fmt.Sprintf(`<td class="right col-no">%d</td>`, i+1))
			sb.WriteString(fmt.Sprintf(`<td class="col-name">%s</td>`, html.EscapeString(row.UserName)))
			sb.WriteString(fmt.Sprintf(`<td class="center col-scheduled">%s</td>`, html.EscapeString(row.ScheduledTime)))
			sb.WriteString(fmt.Sprintf(`<td class="center col-contract">%s</td>`, row.ContractTime))
			sb.WriteString(fmt.Sprintf(`<td class="center col-arrival">%s</td>`, attendance.ClockText(row.ArrivalTime, loc)))
			sb.WriteString(fmt.Sprintf(`<td class="center col-departure">%s</td>`, attendance.ClockText(row.DepartureTime, loc)))
			sb.WriteString(fmt.Sprintf(`<td class="center col-usage">%s</td>`, usage))
			sb.WriteString(fmt.Sprintf(`<td class="center col-status">%s</td>`, row.StatusLabel))
			sb.WriteString(fmt.Sprintf(`<td class="col-reason">%s</td>`, html.EscapeString(reasonName)))
			sb.WriteString(fmt.Sprintf(`<td class="col-note">%s</td>`, html.EscapeString(row.Note)))
			sb.WriteString(`</tr>`)
		}
	}
	sb.WriteString(`</tbody>`)

	return sb.String()
}

func statusClass(s attendance.Status) string {
	switch s {
	case attendance.StatusInProgress:
		return "InProgress"
	case attendance.StatusShortUsage:
		return "Short"
	case attendance.StatusCompleted:
		return "Completed"
	default:
		return "NotArrived"
	}
}

const sheetStyle = `
    body { font-family: "Yu Gothic", "Meiryo", sans-serif; font-size: 11pt; margin: 16px; }
    h1 { font-size: 16pt; margin: 0 0 4px; }
    .meta { margin-bottom: 12px; color: #444; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #999; padding: 4px 6px; }
    th { background: #ddebf7; }
    .center { text-align: center; }
    .right { text-align: right; }
    .status-short td { background: #fff4e5; }
    .col-note { width: 30%; }
    @page { size: A4 landscape; margin: 10mm; }
`

// RenderDailySheetHTML は1日分の通所実績の印刷用ページを生成します。
func RenderDailySheetHTML(date, officeID string, rows []attendance.Row, table *codes.Table, loc *time.Location) string {
	var sb strings.Builder
	title := fmt.Sprintf("通所実績 %s", date)
	if day, err := time.ParseInLocation("2006-01-02", date, loc); err == nil {
		weekdays := []string{"日", "月", "火", "水", "木", "金", "土"}
		title = fmt.Sprintf("通所実績 %s(%s)", day.Format("2006年01月02日"), weekdays[day.Weekday()])
	}

	completed := 0
	for _, row := range rows {
		if row.Status == attendance.StatusCompleted || row.Status == attendance.StatusShortUsage {
			completed++
		}
	}

	sb.WriteString(`<!DOCTYPE html><html lang="ja"><head><meta charset="utf-8">`)
	sb.WriteString(fmt.Sprintf(`<title>%s</title>`, html.EscapeString(title)))
	sb.WriteString(`<style>` + sheetStyle + `</style></head><body>`)
	sb.WriteString(fmt.Sprintf(`<h1>%s</h1>`, html.EscapeString(title)))
	meta := fmt.Sprintf("予定 %d名 / 退所済み %d名", len(rows), completed)
	if officeID != "" {
		meta = "事業所: " + html.EscapeString(officeID) + "　" + meta
	}
	sb.WriteString(`<div class="meta">` + meta + `</div>`)
	sb.WriteString(`<table>`)
	sb.WriteString(RenderAttendanceTableHTML(rows, table, loc))
	sb.WriteString(`</table></body></html>`)
	return sb.String()
}
