// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\reception\desk.go
package reception

import (
	"context"
	"errors"
	"sync"
	"time"
	"tsusho/attendance"
	"tsusho/auth"
	"tsusho/barcode"
	"tsusho/database"
	"tsusho/visit"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// MessageType は受付画面の表示種別です。
type MessageType string

const (
	TypeInfo     MessageType = "info"
	TypeSuccess  MessageType = "success"
	TypeWarning  MessageType = "warning"
	TypeError    MessageType = "error"
	TypeQuestion MessageType = "question"
)

const (
	TextIdle           = "QRコードをスキャンしてください"
	TextArrival        = "こんにちは！"
	TextDeparture      = "おつかれさまでした"
	TextEarlyDeparture = "契約時間に達していませんが、帰宅されますか？"
	TextAlreadyLeft    = "退所時刻が登録されています。スタッフに声をかけてください。"
	TextCancelled      = "操作をキャンセルしました"
	TextUnknownCode    = "登録されていないQRコードです。スタッフに声をかけてください。"
	TextNoSchedule     = "本日の予定がありません。スタッフに声をかけてください。"
	TextNotArrived     = "来所時刻が登録されていません。スタッフに声をかけてください。"
	TextFailed         = "記録に失敗しました。スタッフに声をかけてください。"
)

// PendingTTL を過ぎた確認待ちは破棄します。
const PendingTTL = 2 * time.Minute

var ErrNoPendingConfirmation = errors.New("確認待ちの退所がありません")

// Message は受付画面に表示する内容です。
type Message struct {
	Type     MessageType `json:"type"`
	Text     string      `json:"text"`
	UserName string      `json:"userName"`
	RecordID string      `json:"recordId,omitempty"`
}

func Idle() Message {
	return Message{Type: TypeInfo, Text: TextIdle}
}

type pending struct {
	userName  string
	departure time.Time
	askedAt   time.Time
}

// Desk はQRコードの読み取りから来所・退所を判定して記録します。
type Desk struct {
	db     *sqlx.DB
	visits *visit.Service
	logger *logrus.Logger

	mu      sync.Mutex
	pending map[string]pending
}

func NewDesk(db *sqlx.DB, visits *visit.Service, logger *logrus.Logger) *Desk {
	return &Desk{db: db, visits: visits, logger: logger, pending: make(map[string]pending)}
}

// HandleScan は読み取ったコードの児童について、本日の実績の状態から来所/退所を判定します。
// 契約時間に満たない退所は記録せず確認を求めます (Confirm で確定)。
func (d *Desk) HandleScan(ctx context.Context, code string, now time.Time) (Message, error) {
	d.sweep(now)

	scan, err := barcode.ParseScan(code)
	if err != nil {
		return Message{Type: TypeError, Text: err.Error()}, nil
	}

	child, err := database.GetChildByScanCode(ctx, d.db, scan.Code)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			d.logger.WithField("code", scan.Code).Warn("unknown scan code")
			return Message{Type: TypeError, Text: TextUnknownCode}, nil
		}
		return Message{Type: TypeError, Text: TextFailed}, err
	}
	name := child.DisplayName()

	today := now.In(d.visits.Location()).Format("2006-01-02")
	item, err := d.visits.FindForChild(ctx, child.ChildID, today)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return Message{Type: TypeWarning, Text: TextNoSchedule, UserName: name}, nil
		}
		return Message{Type: TypeError, Text: TextFailed, UserName: name}, err
	}

	if item.DepartureTime != nil {
		return Message{Type: TypeWarning, Text: TextAlreadyLeft, UserName: name, RecordID: item.ID}, nil
	}

	event := scan.Hint
	if event == barcode.HintNone {
		event = barcode.HintDeparture
		if item.ArrivalTime == nil {
			event = barcode.HintArrival
		}
	}

	by := auth.Actor(ctx)
	if event == barcode.HintArrival {
		if item.ArrivalTime != nil {
			return Message{Type: TypeSuccess, Text: TextArrival, UserName: name, RecordID: item.ID}, nil
		}
		if _, err := d.visits.RecordArrival(ctx, item.ID, now, by, nil); err != nil {
			return Message{Type: TypeError, Text: TextFailed, UserName: name}, err
		}
		return Message{Type: TypeSuccess, Text: TextArrival, UserName: name, RecordID: item.ID}, nil
	}

	if item.ArrivalTime == nil {
		return Message{Type: TypeWarning, Text: TextNotArrived, UserName: name, RecordID: item.ID}, nil
	}
	departure := now.In(d.visits.Location()).Truncate(time.Minute)
	if preview := attendance.CalculateUsageTime(item, departure); preview.IsShortUsage {
		d.mu.Lock()
		d.pending[item.ID] = pending{userName: name, departure: now, askedAt: now}
		d.mu.Unlock()
		return Message{Type: TypeQuestion, Text: TextEarlyDeparture, UserName: name, RecordID: item.ID}, nil
	}
	return d.depart(ctx, item.ID, name, now, by)
}

// Confirm は確認待ちの退所を確定 (yes) または取り消します。
func (d *Desk) Confirm(ctx context.Context, recordID string, yes bool) (Message, error) {
	d.mu.Lock()
	p, ok := d.pending[recordID]
	delete(d.pending, recordID)
	d.mu.Unlock()

	if !ok || d.visits.Now().Sub(p.askedAt) > PendingTTL {
		return Idle(), ErrNoPendingConfirmation
	}
	if !yes {
		return Message{Type: TypeInfo, Text: TextCancelled}, nil
	}
	return d.depart(ctx, recordID, p.userName, p.departure, auth.Actor(ctx))
}

func (d *Desk) depart(ctx context.Context, recordID, name string, now time.Time, by string) (Message, error) {
	if _, err := d.visits.RecordDeparture(ctx, recordID, now, by, nil); err != nil {
		switch {
		case errors.Is(err, attendance.ErrNotArrived):
			return Message{Type: TypeWarning, Text: TextNotArrived, UserName: name, RecordID: recordID}, nil
		case errors.Is(err, attendance.ErrDepartureBeforeArrival):
			return Message{Type: TypeWarning, Text: err.Error(), UserName: name, RecordID: recordID}, nil
		}
		return Message{Type: TypeError, Text: TextFailed, UserName: name}, err
	}
	return Message{Type: TypeSuccess, Text: TextDeparture, UserName: name, RecordID: recordID}, nil
}

// sweep は PendingTTL を過ぎた確認待ちを破棄します。
func (d *Desk) sweep(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, p := range d.pending {
		if now.Sub(p.askedAt) > PendingTTL {
			delete(d.pending, id)
			d.logger.WithField("recordId", id).Debug("pending departure expired")
		}
	}
}

// Pending は確認待ちの件数です。
func (d *Desk) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
