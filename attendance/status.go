package attendance

// Status は利用状況です。値の大小がソート順になります。
type Status int

const (
	StatusNotArrived Status = iota
	StatusInProgress
	StatusShortUsage
	StatusCompleted
)

var statusLabels = map[Status]string{
	StatusNotArrived: "未来所",
	StatusInProgress: "利用中",
	StatusShortUsage: "短時間利用",
	StatusCompleted:  "利用完了",
}

func (s Status) Label() string {
	return statusLabels[s]
}

func DeriveStatus(item Data) Status {
	switch {
	case item.ArrivalTime == nil:
		return StatusNotArrived
	case item.DepartureTime == nil:
		return StatusInProgress
	case item.IsShortUsage:
		return StatusShortUsage
	default:
		return StatusCompleted
	}
}

// Row は一覧に表示する1行 (表示用データ + ステータス) です。
type Row struct {
	Data
	Status      Status `json:"status"`
	StatusLabel string `json:"statusLabel"`
}

func Present(items []Data) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		st := DeriveStatus(item)
		rows = append(rows, Row{Data: item, Status: st, StatusLabel: st.Label()})
	}
	return rows
}
