// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\attendance\record.go
package attendance

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"tsusho/model"
)

const (
	// UnsetName は児童マスタに名前が無い場合の表示名です。
	UnsetName = "未設定"
	// ContractPlaceholder は契約時間が無い場合の表示です。
	ContractPlaceholder = "--:--"
)

var (
	ErrInvalidTimeFormat      = errors.New("時刻は HH:mm 形式 (00:00〜23:59) で入力してください")
	ErrDepartureBeforeArrival = errors.New("退所時刻は来所時刻より後にしてください")
	ErrNotArrived             = errors.New("来所時刻が登録されていません")
)

// Data は画面表示用の通所実績 (VisitRecord 1件から導出) です。
// ActualUsageTime / Reason / Note は空文字を「無し」として扱います。
type Data struct {
	ID              string     `json:"id"`
	ChildID         string     `json:"childId"`
	VisitDate       string     `json:"visitDate"`
	UserName        string     `json:"userName"`
	ScheduledTime   string     `json:"scheduledTime"`
	ContractTime    string     `json:"contractTime"`
	ArrivalTime     *time.Time `json:"arrivalTime"`
	DepartureTime   *time.Time `json:"departureTime"`
	ActualUsageTime string     `json:"actualUsageTime"`
	IsShortUsage    bool       `json:"isShortUsage"`
	Reason          string     `json:"reason"`
	Note            string     `json:"note"`
	Version         int        `json:"version"`
}

// NameLookup は児童ID から表示名を引きます。
type NameLookup func(childID string) (string, bool)

// MapLookup は map を NameLookup として使います。
func MapLookup(m map[string]string) NameLookup {
	return func(childID string) (string, bool) {
		name, ok := m[childID]
		return name, ok
	}
}

// TransformRecord は保存済みの VisitRecord を表示用データに変換します。
// 入力だけから決まる純粋関数です。
func TransformRecord(rec model.VisitRecord, names NameLookup, loc *time.Location) Data {
	d := Data{
		ID:           rec.ID,
		ChildID:      rec.ChildID,
		VisitDate:    rec.VisitDate,
		UserName:     UnsetName,
		ContractTime: ContractPlaceholder,
		Version:      rec.Version,
	}
	if names != nil {
		if name, ok := names(rec.ChildID); ok && name != "" {
			d.UserName = name
		}
	}
	if rec.PlannedArrivalTime.Valid {
		d.ScheduledTime = rec.PlannedArrivalTime.String
	}
	if rec.ContractedDuration.Valid {
		d.ContractTime = FormatMinutes(int(rec.ContractedDuration.Int64))
	}
	if rec.ActualArrivalTime.Valid {
		if t, err := ClockOn(rec.VisitDate, rec.ActualArrivalTime.String, loc); err == nil {
			d.ArrivalTime = &t
		}
	}
	if rec.ActualLeaveTime.Valid {
		if t, err := ClockOn(rec.VisitDate, rec.ActualLeaveTime.String, loc); err == nil {
			d.DepartureTime = &t
		}
	}
	if rec.ActualDuration.Valid {
		d.ActualUsageTime = FormatMinutes(int(rec.ActualDuration.Int64))
	}
	if d.ArrivalTime != nil && d.DepartureTime != nil && rec.ContractedDuration.Valid {
		d.IsShortUsage = ElapsedMinutes(*d.ArrivalTime, *d.DepartureTime) < int(rec.ContractedDuration.Int64)
	}
	if rec.EarlyLeaveReasonCode.Valid {
		d.Reason = rec.EarlyLeaveReasonCode.String
	}
	if rec.Remarks.Valid {
		d.Note = rec.Remarks.String
	}
	return d
}

// CalculateUsageTime は departure を退所時刻として利用時間と短時間利用フラグを再計算します。
func CalculateUsageTime(item Data, departure time.Time) Data {
	item.DepartureTime = &departure
	if item.ArrivalTime == nil {
		item.ActualUsageTime = ""
		item.IsShortUsage = false
		return item
	}

	diff := ElapsedMinutes(*item.ArrivalTime, departure)
	item.ActualUsageTime = FormatMinutes(diff)

	contracted, err := ParseMinutes(item.ContractTime)
	item.IsShortUsage = err == nil && diff < contracted
	return item
}

// UsageMinutes は表示用の利用時間を分で返します。無い場合は ok=false。
func (d Data) UsageMinutes() (int, bool) {
	if d.ActualUsageTime == "" {
		return 0, false
	}
	m, err := ParseMinutes(d.ActualUsageTime)
	if err != nil {
		return 0, false
	}
	return m, true
}

// ClockText は時刻を HH:mm (施設タイムゾーン) で返します。nil は空文字です。
func ClockText(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	if loc != nil {
		return t.In(loc).Format("15:04")
	}
	return t.Format("15:04")
}

// ElapsedMinutes は (to - from) をミリ秒から分に切り捨てます (負の場合も床関数)。
func ElapsedMinutes(from, to time.Time) int {
	ms := to.Sub(from).Milliseconds()
	m := ms / 60000
	if ms%60000 != 0 && ms < 0 {
		m--
	}
	return int(m)
}

// FormatMinutes は分を HH:mm にします。
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		return "-" + FormatMinutes(-minutes)
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseMinutes は HH:mm を分に変換します。
func ParseMinutes(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid HH:mm %q", s)
	}
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q: %w", s, err)
	}
	mins, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", s, err)
	}
	return hours*60 + mins, nil
}

// ClockOn は visitDate (YYYY-MM-DD) と時刻 (HH:mm または HH:mm:ss) を施設タイムゾーンの日時にします。
func ClockOn(visitDate, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	layout := "2006-01-02 15:04"
	if strings.Count(clock, ":") == 2 {
		layout = "2006-01-02 15:04:05"
	}
	t, err := time.ParseInLocation(layout, visitDate+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("ClockOn (%s %s): %w", visitDate, clock, err)
	}
	return t, nil
}
