package attendance

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortColumn string

const (
	SortUserName        SortColumn = "userName"
	SortScheduledTime   SortColumn = "scheduledTime"
	SortContractTime    SortColumn = "contractTime"
	SortArrivalTime     SortColumn = "arrivalTime"
	SortDepartureTime   SortColumn = "departureTime"
	SortActualUsageTime SortColumn = "actualUsageTime"
	SortStatus          SortColumn = "status"
)

func ParseSortColumn(s string) (SortColumn, error) {
	switch c := SortColumn(s); c {
	case SortUserName, SortScheduledTime, SortContractTime, SortArrivalTime,
		SortDepartureTime, SortActualUsageTime, SortStatus:
		return c, nil
	}
	return "", fmt.Errorf("unknown sort column %q", s)
}

type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// SortConfig の Column が空の場合は並び替えしません。
type SortConfig struct {
	Column    SortColumn    `json:"column"`
	Direction SortDirection `json:"direction"`
}

// NextSort は列見出しの選択に応じた次の並び順を返します。
// 同じ列の昇順を再選択すると降順、それ以外は昇順です。
func NextSort(current SortConfig, column SortColumn) SortConfig {
	if current.Column == column && current.Direction == Asc {
		return SortConfig{Column: column, Direction: Desc}
	}
	return SortConfig{Column: column, Direction: Asc}
}

// sortKey は比較用の値です。present=false の行は方向に関係なく末尾に並びます。
type sortKey struct {
	present bool
	n       int64
	s       string
}

// Sorted は items のコピーを安定ソートして返します。
func Sorted(items []Data, cfg SortConfig) []Data {
	out := slices.Clone(items)
	if cfg.Column == "" {
		return out
	}
	dir := 1
	if cfg.Direction == Desc {
		dir = -1
	}

	var col *collate.Collator
	if cfg.Column == SortUserName {
		col = collate.New(language.Japanese)
	}

	slices.SortStableFunc(out, func(a, b Data) int {
		ka, kb := keyOf(a, cfg.Column), keyOf(b, cfg.Column)
		switch {
		case !ka.present && !kb.present:
			return 0
		case !ka.present:
			return 1
		case !kb.present:
			return -1
		}
		if col != nil {
			return col.CompareString(ka.s, kb.s) * dir
		}
		return cmp.Compare(ka.n, kb.n) * dir
	})
	return out
}

func keyOf(d Data, column SortColumn) sortKey {
	switch column {
	case SortUserName:
		return sortKey{present: true, s: d.UserName}
	case SortScheduledTime:
		return clockKey(d.ScheduledTime)
	case SortContractTime:
		return clockKey(d.ContractTime)
	case SortArrivalTime:
		return timeKey(d.ArrivalTime)
	case SortDepartureTime:
		return timeKey(d.DepartureTime)
	case SortActualUsageTime:
		if m, ok := d.UsageMinutes(); ok {
			return sortKey{present: true, n: int64(m)}
		}
		return sortKey{}
	case SortStatus:
		return sortKey{present: true, n: int64(DeriveStatus(d))}
	}
	return sortKey{present: true}
}

func clockKey(s string) sortKey {
	if len(s) > 5 {
		s = s[:5]
	}
	m, err := ParseMinutes(s)
	if err != nil {
		return sortKey{}
	}
	return sortKey{present: true, n: int64(m)}
}

func timeKey(t *time.Time) sortKey {
	if t == nil {
		return sortKey{}
	}
	return sortKey{present: true, n: t.UnixMilli()}
}
