package report

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"tsusho/attendance"
	"tsusho/codes"

	"github.com/xuri/excelize/v2"
)

const (
	DetailSheet  = "明細"
	SummarySheet = "集計"
)

// ChildSummary は児童ごとの月間集計です。
type ChildSummary struct {
	ChildID      string `json:"childId"`
	UserName     string `json:"userName"`
	Days         int    `json:"days"`
	TotalMinutes int    `json:"totalMinutes"`
	ShortCount   int    `json:"shortCount"`
}

// Summarize は来所のある日を利用日数として数え、利用時間の合計と短時間利用の回数を集計します。
func Summarize(items []attendance.Data) []ChildSummary {
	byChild := map[string]*ChildSummary{}
	for _, item := range items {
		s, ok := byChild[item.ChildID]
		if !ok {
			s = &ChildSummary{ChildID: item.ChildID, UserName: item.UserName}
			byChild[item.ChildID] = s
		}
		if item.ArrivalTime != nil {
			s.Days++
		}
		if m, ok := item.UsageMinutes(); ok {
			s.TotalMinutes += m
		}
		if item.IsShortUsage {
			s.ShortCount++
		}
	}

	out := make([]ChildSummary, 0, len(byChild))
	for _, s := range byChild {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b ChildSummary) int {
		return strings.Compare(a.ChildID, b.ChildID)
	})
	return out
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	for i, v := range values {
		if err := f.SetCellValue(sheet, cell(i+1, row), v); err != nil {
			return err
		}
	}
	return nil
}

// BuildMonthlyWorkbook は明細シートと児童別集計シートを持つブックを作ります。
func BuildMonthlyWorkbook(month string, items []attendance.Data, table *codes.Table, loc *time.Location) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", DetailSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	if err := setRow(f, DetailSheet, 1, toInterfaces(dailyHeader)...); err != nil {
		return nil, err
	}
	for i, row := range attendance.Present(items) {
		err := setRow(f, DetailSheet, i+2,
			row.VisitDate,
			row.ChildID,
			row.UserName,
			ScheduledClock(row.ScheduledTime),
			row.ContractTime,
			attendance.ClockText(row.ArrivalTime, loc),
			attendance.ClockText(row.DepartureTime, loc),
			row.ActualUsageTime,
			row.StatusLabel,
			table.ReasonName(row.Reason),
			row.Note,
		)
		if err != nil {
			return nil, fmt.Errorf("detail row %d: %w", i+2, err)
		}
	}
	f.SetCellStyle(DetailSheet, "A1", cell(len(dailyHeader), 1), header)
	f.SetColWidth(DetailSheet, "C", "C", 16)
	f.SetColWidth(DetailSheet, "K", "K", 30)

	if err := setRow(f, SummarySheet, 1, "対象月", month); err != nil {
		return nil, err
	}
	if err := setRow(f, SummarySheet, 2, "児童ID", "氏名", "利用日数", "利用時間(分)", "利用時間", "短時間利用回数"); err != nil {
		return nil, err
	}
	for i, s := range Summarize(items) {
		err := setRow(f, SummarySheet, i+3,
			s.ChildID,
			s.UserName,
			s.Days,
			s.TotalMinutes,
			attendance.FormatMinutes(s.TotalMinutes),
			s.ShortCount,
		)
		if err != nil {
			return nil, fmt.Errorf("summary row %d: %w", i+3, err)
		}
	}
	f.SetCellStyle(SummarySheet, "A2", "F2", header)
	f.SetColWidth(SummarySheet, "B", "B", 16)

	return f, nil
}

func toInterfaces(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
