package attendance

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ValidClock は 24時間表記の HH:mm かどうかを判定します。
func ValidClock(s string) bool {
	return clockPattern.MatchString(s)
}

// TimeKind は来所 / 退所の区別です。
type TimeKind string

const (
	KindArrival   TimeKind = "arrival"
	KindDeparture TimeKind = "departure"
)

func ParseTimeKind(s string) (TimeKind, error) {
	switch TimeKind(s) {
	case KindArrival, KindDeparture:
		return TimeKind(s), nil
	}
	return "", fmt.Errorf("unknown time kind %q", s)
}

// EditTarget は手入力の時刻修正です。ArrivalEdit か DepartureEdit のどちらかです。
type EditTarget interface {
	RecordID() string
	Kind() TimeKind
	Clock() string
	isEditTarget()
}

type ArrivalEdit struct {
	ID    string
	Value string
}

type DepartureEdit struct {
	ID    string
	Value string
}

func (e ArrivalEdit) RecordID() string { return e.ID }
func (e ArrivalEdit) Kind() TimeKind { return KindArrival }
func (e ArrivalEdit) Clock() string { return e.Value }
func (ArrivalEdit) isEditTarget() {}
func (e DepartureEdit) RecordID() string { return e.ID }
func (e DepartureEdit) Kind() TimeKind { return KindDeparture }
func (e DepartureEdit) Clock() string { return e.Value }
func (DepartureEdit) isEditTarget() {}

// NewEditTarget は kind に応じた EditTarget を作ります。
func NewEditTarget(kind TimeKind, id, value string) (EditTarget, error) {
	switch kind {
	case KindArrival:
		return ArrivalEdit{ID: id, Value: value}, nil
	case KindDeparture:
		return DepartureEdit{ID: id, Value: value}, nil
	}
	return nil, fmt.Errorf("unknown time kind %q", kind)
}

// ApplyEdit は時刻修正を検証して適用します。エラー時は item を変更しません。
// 来所を修正した場合、既存の退所時刻で利用時間を再計算します。
func ApplyEdit(item Data, target EditTarget, loc *time.Location) (Data, error) {
	value := target.Clock()
	if !ValidClock(value) {
		return item, fmt.Errorf("%q: %w", value, ErrInvalidTimeFormat)
	}
	t, err := ClockOn(item.VisitDate, value, loc)
	if err != nil {
		return item, fmt.Errorf("%q: %w", value, ErrInvalidTimeFormat)
	}

	switch target.(type) {
	case ArrivalEdit:
		if item.DepartureTime != nil && item.DepartureTime.Before(t) {
			return item, ErrDepartureBeforeArrival
		}
		item.ArrivalTime = &t
		if item.DepartureTime != nil {
			item = CalculateUsageTime(item, *item.DepartureTime)
		}
	case DepartureEdit:
		if item.ArrivalTime != nil && t.Before(*item.ArrivalTime) {
			return item, ErrDepartureBeforeArrival
		}
		item = CalculateUsageTime(item, t)
	}
	return item, nil
}

// ResetTime は時刻を消去します。来所の消去は退所と利用時間も消去します。
func ResetTime(item Data, kind TimeKind) Data {
	if kind == KindArrival {
		item.ArrivalTime = nil
	}
	item.DepartureTime = nil
	item.ActualUsageTime = ""
	item.IsShortUsage = false
	return item
}

func UpdateReason(item Data, code string) Data {
	item.Reason = strings.TrimSpace(code)
	return item
}

// SaveNote は前後の空白を除いた備考を設定します。空文字は「備考なし」です。
func SaveNote(item Data, text string) Data {
	item.Note = strings.TrimSpace(text)
	return item
}
