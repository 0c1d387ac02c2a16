package reception

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"tsusho/attendance"
	"tsusho/database"
	"tsusho/loader"
	"tsusho/model"
	"tsusho/scanner"
	"tsusho/visit"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

var tokyo, _ = time.LoadLocation("Asia/Tokyo")

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func at(t *testing.T, hhmm string) time.Time {
	t.Helper()
	v, err := attendance.ClockOn("2025-04-01", hhmm, tokyo)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// setup は 2025-04-01 に 山田太郎 (契約100分) の予定が1件ある状態を作ります。
func setup(t *testing.T) (*Desk, *visit.Service) {
	t.Helper()
	db, err := loader.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	if err := loader.ApplySchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO children (child_id, last_name, first_name, qr_code_name) VALUES ('C001', '山田', '太郎', 'yamada-taro')`); err != nil {
		t.Fatal(err)
	}
	rec := &model.VisitRecord{
		ID:                 "r1",
		VisitDate:          "2025-04-01",
		ChildID:            "C001",
		PlannedArrivalTime: sql.NullString{String: "16:00:00", Valid: true},
		ContractedDuration: sql.NullInt64{Int64: 100, Valid: true},
	}
	if _, err := database.InsertVisitRecordIfAbsent(ctx, db, rec); err != nil {
		t.Fatal(err)
	}

	logger := quietLogger()
	visits := visit.NewService(db, tokyo, nil, logger)
	visits.SetClock(func() time.Time { return at(t, "16:00") })
	return NewDesk(db, visits, logger), visits
}

func TestScanArrivalThenDeparture(t *testing.T) {
	d, visits := setup(t)
	ctx := context.Background()

	msg, err := d.HandleScan(ctx, "C001", at(t, "16:00"))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != TypeSuccess || msg.Text != TextArrival || msg.UserName != "山田太郎" {
		t.Fatalf("arrival message = %+v", msg)
	}

	msg, err = d.HandleScan(ctx, "yamada-taro", at(t, "18:10"))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != TextDeparture {
		t.Fatalf("departure message = %+v", msg)
	}

	item, err := visits.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if item.ActualUsageTime != "02:10" || item.IsShortUsage {
		t.Errorf("usage = %s short=%v", item.ActualUsageTime, item.IsShortUsage)
	}

	msg, _ = d.HandleScan(ctx, "C001", at(t, "18:20"))
	if msg.Type != TypeWarning || msg.Text != TextAlreadyLeft {
		t.Errorf("third scan = %+v", msg)
	}
}

func TestShortDepartureNeedsConfirmation(t *testing.T) {
	d, visits := setup(t)
	ctx := context.Background()

	if _, err := d.HandleScan(ctx, "C001", at(t, "16:00")); err != nil {
		t.Fatal(err)
	}
	msg, err := d.HandleScan(ctx, "C001", at(t, "17:00"))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != TypeQuestion || msg.Text != TextEarlyDeparture || msg.RecordID != "r1" {
		t.Fatalf("message = %+v", msg)
	}

	item, _ := visits.Get(ctx, "r1")
	if item.DepartureTime != nil {
		t.Fatal("departure recorded before confirmation")
	}

	msg, err = d.Confirm(ctx, "r1", true)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != TextDeparture {
		t.Fatalf("confirm message = %+v", msg)
	}
	item, _ = visits.Get(ctx, "r1")
	if item.ActualUsageTime != "01:00" || !item.IsShortUsage {
		t.Errorf("usage = %s short=%v", item.ActualUsageTime, item.IsShortUsage)
	}

	if _, err := d.Confirm(ctx, "r1", true); !errors.Is(err, ErrNoPendingConfirmation) {
		t.Errorf("second confirm err = %v", err)
	}
}

func TestShortDepartureCancelled(t *testing.T) {
	d, visits := setup(t)
	ctx := context.Background()

	d.HandleScan(ctx, "C001", at(t, "16:00"))
	d.HandleScan(ctx, "C001", at(t, "17:00"))

	msg, err := d.Confirm(ctx, "r1", false)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != TextCancelled {
		t.Errorf("message = %+v", msg)
	}
	if d.Pending() != 0 {
		t.Errorf("pending = %d", d.Pending())
	}
	item, _ := visits.Get(ctx, "r1")
	if item.DepartureTime != nil {
		t.Error("cancelled departure was recorded")
	}
}

func TestScanHints(t *testing.T) {
	d, _ := setup(t)
	ctx := context.Background()

	msg, _ := d.HandleScan(ctx, "out:C001", at(t, "16:00"))
	if msg.Text != TextNotArrived {
		t.Errorf("departure hint before arrival = %+v", msg)
	}
	msg, _ = d.HandleScan(ctx, "in:C001", at(t, "16:00"))
	if msg.Text != TextArrival {
		t.Errorf("arrival hint = %+v", msg)
	}
	msg, _ = d.HandleScan(ctx, "arrival:C001", at(t, "16:05"))
	if msg.Text != TextArrival {
		t.Errorf("repeated arrival hint = %+v", msg)
	}
}

func TestScanUnknownAndEmpty(t *testing.T) {
	d, _ := setup(t)
	ctx := context.Background()

	msg, err := d.HandleScan(ctx, "C999", at(t, "16:00"))
	if err != nil || msg.Text != TextUnknownCode {
		t.Errorf("unknown = %+v, %v", msg, err)
	}
	msg, err = d.HandleScan(ctx, "  ", at(t, "16:00"))
	if err != nil || msg.Type != TypeError {
		t.Errorf("empty = %+v, %v", msg, err)
	}

	// 予定の無い日
	msg, err = d.HandleScan(ctx, "C001", at(t, "16:00").AddDate(0, 0, 1))
	if err != nil || msg.Text != TextNoSchedule {
		t.Errorf("no schedule = %+v, %v", msg, err)
	}
}

func TestScanHandler(t *testing.T) {
	d, _ := setup(t)
	h := ScanHandler(d, quietLogger())

	body, _ := json.Marshal(scanRequest{Code: "C001"})
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodPost, "/api/reception/scan", bytes.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var msg Message
	json.NewDecoder(rr.Body).Decode(&msg)
	if msg.Text != TextArrival {
		t.Errorf("message = %+v", msg)
	}

	rr = httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodPost, "/api/reception/scan", strings.NewReader(`{}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	ConfirmHandler(d, quietLogger())(rr, httptest.NewRequest(http.MethodPost, "/api/reception/confirm", strings.NewReader(`{"recordId":"r1","yes":true}`)))
	if rr.Code != http.StatusConflict {
		t.Errorf("confirm without pending status = %d", rr.Code)
	}
}

func TestWSHandlerBuffersKeystrokes(t *testing.T) {
	d, _ := setup(t)
	srv := httptest.NewServer(WSHandler(d, scanner.Options{Quiet: time.Hour}, quietLogger()))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Text != TextIdle {
		t.Fatalf("first message = %+v", msg)
	}

	for _, chunk := range []string{"C0", "01", "\r"} {
		if err := conn.WriteJSON(clientMessage{Type: "input", Data: chunk}); err != nil {
			t.Fatal(err)
		}
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Text != TextArrival || msg.UserName != "山田太郎" {
		t.Errorf("scan message = %+v", msg)
	}
}

func TestExpiredPendingSweptOnScan(t *testing.T) {
	d, _ := setup(t)
	ctx := context.Background()

	d.HandleScan(ctx, "C001", at(t, "16:00"))
	d.HandleScan(ctx, "C001", at(t, "17:00"))
	if d.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", d.Pending())
	}

	d.HandleScan(ctx, "unknown-code", at(t, "17:01"))
	if d.Pending() != 1 {
		t.Fatalf("pending within TTL = %d, want 1", d.Pending())
	}
	d.HandleScan(ctx, "unknown-code", at(t, "17:03"))
	if d.Pending() != 0 {
		t.Fatalf("pending after TTL = %d, want 0", d.Pending())
	}
	if _, err := d.Confirm(ctx, "r1", true); !errors.Is(err, ErrNoPendingConfirmation) {
		t.Errorf("confirm after sweep err = %v", err)
	}
}

func TestKioskSendLogsWriteError(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- c
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	conn := <-conns
	conn.Close()
	k := &kioskConn{conn: conn, logger: logger}
	k.send(Idle())

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.DebugLevel || !strings.Contains(entry.Message, "kiosk write failed") {
		t.Fatalf("entry = %+v", entry)
	}
}
