// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\feed\session.go
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"
	"tsusho/attendance"
	"tsusho/model"

	"github.com/sirupsen/logrus"
)

// Source は指定日の実績一覧と、保存が確定した1件を取得します。
type Source interface {
	Snapshot(ctx context.Context, visitDate string) ([]model.VisitRecord, attendance.NameLookup, error)
	Get(ctx context.Context, id string) (attendance.Data, error)
}

// Conn は JSON メッセージを送受信する接続です (*websocket.Conn が満たします)。
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
}

// ClientMessage は画面から届くメッセージです。
//
//	{"type":"edit_begin","id":"...","kind":"time|note|reason"}
//	{"type":"edit_end","id":"..."}  保存した場合は id を付けます
//	{"type":"visibility","visible":false}
//	{"type":"date","date":"2025-04-01"}
//	{"type":"sort","column":"arrivalTime"}
type ClientMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Visible *bool  `json:"visible,omitempty"`
	Date    string `json:"date,omitempty"`
	Column  string `json:"column,omitempty"`
}

// ServerMessage は画面へ送るメッセージです。Type は "snapshot" または "error" です。
type ServerMessage struct {
	Type        string                `json:"type"`
	Date        string                `json:"date,omitempty"`
	Fingerprint string                `json:"fingerprint,omitempty"`
	Sort        attendance.SortConfig `json:"sort"`
	Rows        []attendance.Row      `json:"rows,omitempty"`
	Editing     string                `json:"editing,omitempty"`
	Message     string                `json:"message,omitempty"`
}

// Session は接続1本分の表示状態を持ち、Run のゴルーチンだけが状態を変更します。
type Session struct {
	conn      Conn
	source    Source
	hub       *Hub
	view      *attendance.View
	date      string
	visible   bool
	pollEvery time.Duration
	logger    logrus.FieldLogger

	sub    *Subscription
	ticker *time.Ticker
}

func NewSession(conn Conn, source Source, hub *Hub, loc *time.Location, visitDate string, pollEvery time.Duration, logger logrus.FieldLogger) *Session {
	return &Session{
		conn:      conn,
		source:    source,
		hub:       hub,
		view:      attendance.NewView(loc),
		date:      visitDate,
		visible:   true,
		pollEvery: pollEvery,
		logger:    logger.WithField("visitDate", visitDate),
	}
}

// Run は接続が閉じるか ctx が終わるまで配信を続けます。終了時に購読とタイマーを解放します。
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	incoming := make(chan ClientMessage)
	readErr := make(chan error, 1)
	go func() {
		for {
			var m ClientMessage
			if err := s.conn.ReadJSON(&m); err != nil {
				readErr <- err
				return
			}
			select {
			case incoming <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.sub = s.hub.Subscribe(s.date)
	defer s.teardown()
	s.startPolling()

	if err := s.refresh(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			s.logger.Debugf("feed connection closed: %v", err)
			return nil
		case m := <-incoming:
			if err := s.handle(ctx, m); err != nil {
				return err
			}
		case <-s.sub.Updates():
			if err := s.refresh(ctx); err != nil {
				return err
			}
		case <-s.tick():
			if err := s.refresh(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Session) handle(ctx context.Context, m ClientMessage) error {
	switch m.Type {
	case "edit_begin":
		if _, ok := s.view.Find(m.ID); !ok {
			return s.sendError("編集する実績が一覧にありません")
		}
		kind := attendance.EditKind(m.Kind)
		if kind == "" {
			kind = attendance.EditTime
		}
		s.view.BeginEdit(m.ID, kind)
		return nil
	case "edit_end":
		s.view.EndEdit()
		replaced := m.ID != "" && s.replaceSaved(ctx, m.ID)
		applied, err := s.apply(ctx)
		if err != nil || applied || !replaced {
			return err
		}
		return s.push()
	case "visibility":
		if m.Visible == nil {
			return s.sendError("visible が指定されていません")
		}
		s.visible = *m.Visible
		if !s.visible {
			s.stopPolling()
			return nil
		}
		s.startPolling()
		return s.refresh(ctx)
	case "date":
		if _, err := time.Parse("2006-01-02", m.Date); err != nil {
			return s.sendError("日付は YYYY-MM-DD 形式で指定してください")
		}
		if m.Date == s.date {
			return nil
		}
		s.sub.Close()
		s.date = m.Date
		s.logger = s.logger.WithField("visitDate", m.Date)
		s.sub = s.hub.Subscribe(s.date)
		// 前の日付の編集は引き継がない
		s.view.EndEdit()
		s.view.Clear()
		return s.refresh(ctx)
	case "sort":
		col, err := attendance.ParseSortColumn(m.Column)
		if err != nil {
			return s.sendError("並び替え列が不正です")
		}
		s.view.SetSort(col)
		return s.push()
	}
	return s.sendError(fmt.Sprintf("unknown message type %q", m.Type))
}

// refresh は最新の一覧を取得し、表示状態に反映できた場合だけ送信します。
// 取得の失敗はログに残し、次の通知または定期取得を待ちます。
func (s *Session) refresh(ctx context.Context) error {
	_, err := s.apply(ctx)
	return err
}

func (s *Session) apply(ctx context.Context) (bool, error) {
	records, names, err := s.source.Snapshot(ctx, s.date)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false, nil
		}
		s.logger.Warnf("snapshot fetch failed: %v", err)
		return false, nil
	}
	if !s.view.Apply(records, names) {
		return false, nil
	}
	return true, s.push()
}

// replaceSaved は保存が確定した1件を一覧に反映します。一覧の取得に失敗しても保存結果は表示されます。
func (s *Session) replaceSaved(ctx context.Context, id string) bool {
	item, err := s.source.Get(ctx, id)
	if err != nil {
		s.logger.WithField("recordId", id).Warnf("saved record fetch failed: %v", err)
		return false
	}
	if item.VisitDate != s.date {
		return false
	}
	s.view.Replace(item)
	return true
}

func (s *Session) push() error {
	msg := ServerMessage{
		Type:        "snapshot",
		Date:        s.date,
		Fingerprint: s.view.Fingerprint(),
		Sort:        s.view.Sort(),
		Rows:        attendance.Present(s.view.Items()),
	}
	if id, _, ok := s.view.Editing(); ok {
		msg.Editing = id
	}
	return s.conn.WriteJSON(msg)
}

func (s *Session) sendError(message string) error {
	return s.conn.WriteJSON(ServerMessage{Type: "error", Message: message, Sort: s.view.Sort()})
}

// 定期取得は画面が表示されている間だけ動かします。
func (s *Session) startPolling() {
	if s.pollEvery <= 0 || s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.pollEvery)
}

func (s *Session) stopPolling() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Session) tick() <-chan time.Time {
	if s.ticker == nil {
		return nil
	}
	return s.ticker.C
}

func (s *Session) teardown() {
	s.stopPolling()
	if s.sub != nil {
		s.sub.Close()
	}
}
