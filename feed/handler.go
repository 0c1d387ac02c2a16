package feed

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Handler は通所実績のライブ配信 (WebSocket) です。?date= で初期表示日を指定します。
// セッションの確認は呼び出し側のミドルウェアで行います。
func Handler(source Source, hub *Hub, loc *time.Location, pollEvery time.Duration, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if _, err := time.Parse("2006-01-02", date); err != nil {
			date = time.Now().In(loc).Format("2006-01-02")
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnf("feed upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		session := NewSession(conn, source, hub, loc, date, pollEvery, logger)
		if err := session.Run(r.Context()); err != nil {
			logger.WithField("visitDate", date).Warnf("feed session ended: %v", err)
		}
	}
}
