package render

import (
	"strings"
	"testing"
	"time"
	"tsusho/attendance"
)

var tokyo, _ = time.LoadLocation("Asia/Tokyo")

func TestRenderAttendanceTableHTML(t *testing.T) {
	arr, _ := attendance.ClockOn("2025-04-01", "16:00", tokyo)
	dep, _ := attendance.ClockOn("2025-04-01", "17:00", tokyo)
	rows := attendance.Present([]attendance.Data{
		{ID: "r1", UserName: "山田太郎", ScheduledTime: "16:00:00", ContractTime: "01:40",
			ArrivalTime: &arr, DepartureTime: &dep, ActualUsageTime: "01:00", IsShortUsage: true, Reason: "01", Note: "<b>発熱</b>"},
		{ID: "r2", UserName: "佐藤花子", ScheduledTime: "17:30:00", ContractTime: "--:--"},
	})

	out := RenderAttendanceTableHTML(rows, nil, tokyo)
	for _, want := range []string{
		`<tr class="status-short">`,
		`<td class="center col-usage">01:00</td>`,
		`<td class="center col-status">短時間利用</td>`,
		`<td class="col-reason">01</td>`,
		`&lt;b&gt;発熱&lt;/b&gt;`,
		`<tr class="status-notarrived">`,
		`<td class="center col-usage">－</td>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(out, "<b>発熱") {
		t.Error("note was not escaped")
	}

	empty := RenderAttendanceTableHTML(nil, nil, tokyo)
	if !strings.Contains(empty, "登録されたデータはありません。") {
		t.Error("empty table message missing")
	}
}

func TestRenderDailySheetHTML(t *testing.T) {
	out := RenderDailySheetHTML("2025-04-01", "Osaka", nil, nil, tokyo)
	if !strings.Contains(out, "通所実績 2025年04月01日(火)") {
		t.Errorf("title missing: %s", out)
	}
	if !strings.Contains(out, "事業所: Osaka") || !strings.Contains(out, "予定 0名") {
		t.Errorf("meta missing: %s", out)
	}
}
