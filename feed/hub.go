// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\feed\hub.go
package feed

import (
	"sync"
)

// Hub は日付ごとの購読者に「その日の実績が変わった」ことを知らせます。
// 通知は1件にまとめられ、購読者は受け取ったら最新の一覧を取り直します。
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription は1つの購読です。Close は何度呼んでも1回だけ解除します。
type Subscription struct {
	hub  *Hub
	date string
	ch   chan struct{}
	once sync.Once
}

func (h *Hub) Subscribe(visitDate string) *Subscription {
	sub := &Subscription{hub: h, date: visitDate, ch: make(chan struct{}, 1)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[visitDate]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[visitDate] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Notify は visitDate の購読者全員に通知します。受信待ちの通知がある購読者には重ねて送りません。
func (h *Hub) Notify(visitDate string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[visitDate] {
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers は visitDate の購読数です。
func (h *Hub) Subscribers(visitDate string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[visitDate])
}

func (s *Subscription) Updates() <-chan struct{} {
	return s.ch
}

func (s *Subscription) Date() string {
	return s.date
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[s.date]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.date)
			}
		}
	})
}
