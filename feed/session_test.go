package feed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"tsusho/attendance"
	"tsusho/model"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var tokyo, _ = time.LoadLocation("Asia/Tokyo")

type fakeSource struct {
	mu      sync.Mutex
	records map[string][]model.VisitRecord
	calls   int
	fail    bool
}

var names = attendance.MapLookup(map[string]string{"C001": "山田太郎"})

func (f *fakeSource) Snapshot(ctx context.Context, visitDate string) ([]model.VisitRecord, attendance.NameLookup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, nil, errors.New("snapshot unavailable")
	}
	recs := append([]model.VisitRecord(nil), f.records[visitDate]...)
	return recs, names, nil
}

func (f *fakeSource) Get(ctx context.Context, id string) (attendance.Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, recs := range f.records {
		for _, rec := range recs {
			if rec.ID == id {
				return attendance.TransformRecord(rec, names, tokyo), nil
			}
		}
	}
	return attendance.Data{}, errors.New("not found")
}

func (f *fakeSource) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeSource) setNote(date, note string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records[date] {
		f.records[date][i].Remarks = sql.NullString{String: note, Valid: true}
	}
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newSource() *fakeSource {
	return &fakeSource{records: map[string][]model.VisitRecord{
		"2025-04-01": {{ID: "r1", VisitDate: "2025-04-01", ChildID: "C001", Remarks: sql.NullString{String: "a", Valid: true}, Version: 1}},
		"2025-04-02": {{ID: "r2", VisitDate: "2025-04-02", ChildID: "C001", Version: 1}},
	}}
}

// pipeConn はテスト用の Conn です。
type pipeConn struct {
	in   chan ClientMessage
	out  chan ServerMessage
	done chan struct{}
	once sync.Once
}

func newPipe() *pipeConn {
	return &pipeConn{in: make(chan ClientMessage, 8), out: make(chan ServerMessage, 16), done: make(chan struct{})}
}

func (p *pipeConn) ReadJSON(v interface{}) error {
	select {
	case m := <-p.in:
		*(v.(*ClientMessage)) = m
		return nil
	case <-p.done:
		return io.EOF
	}
}

func (p *pipeConn) WriteJSON(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m ServerMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	p.out <- m
	return nil
}

func (p *pipeConn) close() { p.once.Do(func() { close(p.done) }) }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func expectMessage(t *testing.T, p *pipeConn) ServerMessage {
	t.Helper()
	select {
	case m := <-p.out:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return ServerMessage{}
}

func expectSilence(t *testing.T, p *pipeConn, d time.Duration) {
	t.Helper()
	select {
	case m := <-p.out:
		t.Fatalf("unexpected message: %+v", m)
	case <-time.After(d):
	}
}

func waitCalls(t *testing.T, src *fakeSource, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for src.callCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("snapshot calls = %d, want >= %d", src.callCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startSession(t *testing.T, src *fakeSource, hub *Hub, poll time.Duration) (*pipeConn, chan error) {
	t.Helper()
	p := newPipe()
	s := NewSession(p, src, hub, tokyo, "2025-04-01", poll, quietLogger())
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	t.Cleanup(p.close)
	return p, done
}

func noteOf(m ServerMessage) string {
	if len(m.Rows) == 0 {
		return ""
	}
	return m.Rows[0].Note
}

func TestSessionEditGuardSuppressesPush(t *testing.T) {
	src := newSource()
	hub := NewHub()
	p, _ := startSession(t, src, hub, 0)

	if m := expectMessage(t, p); m.Type != "snapshot" || noteOf(m) != "a" {
		t.Fatalf("initial = %+v", m)
	}

	p.in <- ClientMessage{Type: "edit_begin", ID: "r1", Kind: "note"}
	p.in <- ClientMessage{Type: "sort", Column: "userName"}
	expectMessage(t, p)

	calls := src.callCount()
	src.setNote("2025-04-01", "b")
	hub.Notify("2025-04-01")
	waitCalls(t, src, calls+1)
	expectSilence(t, p, 50*time.Millisecond)

	p.in <- ClientMessage{Type: "sort", Column: "userName"}
	if m := expectMessage(t, p); noteOf(m) != "a" {
		t.Fatalf("pushed snapshot replaced edit state: %+v", m)
	}

	p.in <- ClientMessage{Type: "edit_end"}
	if m := expectMessage(t, p); noteOf(m) != "b" {
		t.Fatalf("after edit end = %+v", m)
	}
}

func TestSessionEditEndShowsSavedRecord(t *testing.T) {
	src := newSource()
	hub := NewHub()
	p, _ := startSession(t, src, hub, 0)
	expectMessage(t, p)

	p.in <- ClientMessage{Type: "edit_begin", ID: "r1", Kind: "note"}
	p.in <- ClientMessage{Type: "sort", Column: "userName"}
	if m := expectMessage(t, p); m.Editing != "r1" {
		t.Fatalf("editing = %q, want r1", m.Editing)
	}

	// 一覧の取得に失敗しても、保存した1件は反映される
	src.setNote("2025-04-01", "保存済み")
	src.setFail(true)
	p.in <- ClientMessage{Type: "edit_end", ID: "r1"}
	m := expectMessage(t, p)
	if noteOf(m) != "保存済み" || m.Editing != "" {
		t.Fatalf("after saved edit = %+v", m)
	}
}

func TestSessionEditBeginUnknownRecord(t *testing.T) {
	src := newSource()
	hub := NewHub()
	p, _ := startSession(t, src, hub, 0)
	expectMessage(t, p)

	p.in <- ClientMessage{Type: "edit_begin", ID: "r9"}
	if m := expectMessage(t, p); m.Type != "error" {
		t.Fatalf("reply = %+v", m)
	}
	// 編集状態にはならないので通知はそのまま反映される
	src.setNote("2025-04-01", "b")
	hub.Notify("2025-04-01")
	if m := expectMessage(t, p); noteOf(m) != "b" {
		t.Fatalf("pushed = %+v", m)
	}
}

func TestSessionDateSwitchEndsEdit(t *testing.T) {
	src := newSource()
	hub := NewHub()
	p, _ := startSession(t, src, hub, 0)
	expectMessage(t, p)

	p.in <- ClientMessage{Type: "edit_begin", ID: "r1", Kind: "time"}
	p.in <- ClientMessage{Type: "date", Date: "2025-04-02"}
	m := expectMessage(t, p)
	if m.Date != "2025-04-02" || len(m.Rows) != 1 || m.Rows[0].ID != "r2" || m.Editing != "" {
		t.Fatalf("after date switch while editing = %+v", m)
	}
}

func TestSessionSkipsRedundantSnapshots(t *testing.T) {
	src := newSource()
	hub := NewHub()
	p, _ := startSession(t, src, hub, 0)
	expectMessage(t, p)

	calls := src.callCount()
	hub.Notify("2025-04-01")
	waitCalls(t, src, calls+1)
	expectSilence(t, p, 50*time.Millisecond)
}

func TestSessionPollingOnlyWhileVisible(t *testing.T) {
	src := newSource()
	hub := NewHub()
	p, _ := startSession(t, src, hub, 10*time.Millisecond)
	expectMessage(t, p)
	waitCalls(t, src, 3)

	hidden := false
	p.in <- ClientMessage{Type: "visibility", Visible: &hidden}
	time.Sleep(30 * time.Millisecond)
	before := src.callCount()
	time.Sleep(60 * time.Millisecond)
	if after := src.callCount(); after > before {
		t.Fatalf("polled while hidden: %d -> %d", before, after)
	}

	visible := true
	p.in <- ClientMessage{Type: "visibility", Visible: &visible}
	waitCalls(t, src, before+2)
}

func TestSessionDateSwitchResubscribes(t *testing.T) {
	src := newSource()
	hub := NewHub()
	p, done := startSession(t, src, hub, 0)
	expectMessage(t, p)

	p.in <- ClientMessage{Type: "date", Date: "2025-04-02"}
	m := expectMessage(t, p)
	if m.Date != "2025-04-02" || len(m.Rows) != 1 || m.Rows[0].ID != "r2" {
		t.Fatalf("after date switch = %+v", m)
	}
	if hub.Subscribers("2025-04-01") != 0 || hub.Subscribers("2025-04-02") != 1 {
		t.Fatalf("subscribers = %d / %d", hub.Subscribers("2025-04-01"), hub.Subscribers("2025-04-02"))
	}

	p.in <- ClientMessage{Type: "date", Date: "04/02"}
	if m := expectMessage(t, p); m.Type != "error" {
		t.Fatalf("bad date reply = %+v", m)
	}

	p.close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	if hub.Subscribers("2025-04-02") != 0 {
		t.Fatal("subscription leaked after teardown")
	}
}

func TestHandlerOverWebSocket(t *testing.T) {
	src := newSource()
	hub := NewHub()
	srv := httptest.NewServer(Handler(src, hub, tokyo, 0, quietLogger()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?date=2025-04-01"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m ServerMessage
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatal(err)
	}
	if m.Type != "snapshot" || noteOf(m) != "a" || m.Rows[0].UserName != "山田太郎" {
		t.Fatalf("initial = %+v", m)
	}

	src.setNote("2025-04-01", "c")
	hub.Notify("2025-04-01")
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatal(err)
	}
	if noteOf(m) != "c" {
		t.Fatalf("pushed = %+v", m)
	}
}
