package reception

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
	"tsusho/scanner"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// 表示を待ち受けに戻すまでの時間
var (
	resetAfterSuccess = 3 * time.Second
	resetAfterCancel  = 2 * time.Second
)

func writeJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

type scanRequest struct {
	Code string `json:"code" validate:"required"`
}

type confirmRequest struct {
	RecordID string `json:"recordId" validate:"required"`
	Yes      bool   `json:"yes"`
}

// ScanHandler は読み取ったコードを受け取り、表示するメッセージを返します。
func ScanHandler(d *Desk, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req scanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || validate.Struct(req) != nil {
			writeJSON(w, map[string]string{"message": "QRコードの内容を指定してください。"}, http.StatusBadRequest)
			return
		}

		msg, err := d.HandleScan(r.Context(), req.Code, d.visits.Now())
		if err != nil {
			logger.WithField("code", req.Code).Errorf("reception scan failed: %v", err)
			writeJSON(w, msg, http.StatusInternalServerError)
			return
		}
		writeJSON(w, msg, http.StatusOK)
	}
}

// ConfirmHandler は早退確認への回答を受け取ります。
func ConfirmHandler(d *Desk, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req confirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || validate.Struct(req) != nil {
			writeJSON(w, map[string]string{"message": "recordId は必須です。"}, http.StatusBadRequest)
			return
		}

		msg, err := d.Confirm(r.Context(), req.RecordID, req.Yes)
		switch {
		case errors.Is(err, ErrNoPendingConfirmation):
			writeJSON(w, map[string]string{"message": err.Error()}, http.StatusConflict)
		case err != nil:
			logger.WithField("recordId", req.RecordID).Errorf("reception confirm failed: %v", err)
			writeJSON(w, msg, http.StatusInternalServerError)
		default:
			writeJSON(w, msg, http.StatusOK)
		}
	}
}

// clientMessage は受付端末から届くメッセージです。
// input はスキャナのキー入力 (生の文字列)、confirm は早退確認への回答です。
type clientMessage struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	RecordID string `json:"recordId"`
	Yes      bool   `json:"yes"`
}

// WSHandler は受付端末の WebSocket です。接続ごとにスキャン入力のバッファを持ちます。
func WSHandler(d *Desk, opts scanner.Options, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnf("reception upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		ctx := r.Context()
		kiosk := &kioskConn{conn: conn, logger: logger}
		defer kiosk.close()

		buf := scanner.NewBuffer(opts, func(code string) {
			msg, err := d.HandleScan(ctx, code, d.visits.Now())
			if err != nil {
				logger.WithField("code", code).Errorf("reception scan failed: %v", err)
			}
			kiosk.show(msg)
		})
		defer buf.Close()

		kiosk.send(Idle())
		for {
			var in clientMessage
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			switch in.Type {
			case "input":
				buf.Input(in.Data)
			case "confirm":
				msg, err := d.Confirm(ctx, in.RecordID, in.Yes)
				if err != nil && !errors.Is(err, ErrNoPendingConfirmation) {
					logger.WithField("recordId", in.RecordID).Errorf("reception confirm failed: %v", err)
				}
				kiosk.show(msg)
			default:
				kiosk.send(Message{Type: TypeError, Text: "不明なメッセージです: " + in.Type})
			}
		}
	}
}

// kioskConn は書き込みを直列化し、結果表示後に待ち受け表示へ戻します。
type kioskConn struct {
	conn   *websocket.Conn
	logger logrus.FieldLogger

	mu     sync.Mutex
	reset  *time.Timer
	closed bool
}

func (k *kioskConn) send(msg Message) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}
	if err := k.conn.WriteJSON(msg); err != nil {
		k.logger.Debugf("kiosk write failed: %v", err)
	}
}

func (k *kioskConn) show(msg Message) {
	k.mu.Lock()
	if k.reset != nil {
		k.reset.Stop()
		k.reset = nil
	}
	var after time.Duration
	switch {
	case msg.Type == TypeSuccess:
		after = resetAfterSuccess
	case msg.Type == TypeInfo && msg.Text == TextCancelled:
		after = resetAfterCancel
	}
	if after > 0 && !k.closed {
		k.reset = time.AfterFunc(after, func() { k.send(Idle()) })
	}
	k.mu.Unlock()

	k.send(msg)
}

func (k *kioskConn) close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	if k.reset != nil {
		k.reset.Stop()
	}
}
