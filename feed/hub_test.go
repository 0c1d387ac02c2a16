package feed

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestHubNotifyCoalesces(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("2025-04-01")
	other := h.Subscribe("2025-04-02")
	defer other.Close()

	h.Notify("2025-04-01")
	h.Notify("2025-04-01")

	select {
	case <-sub.Updates():
	default:
		t.Fatal("no notification delivered")
	}
	select {
	case <-sub.Updates():
		t.Fatal("notifications were not coalesced")
	default:
	}
	select {
	case <-other.Updates():
		t.Fatal("other date notified")
	default:
	}
}

func TestSubscriptionCloseOnce(t *testing.T) {
	h := NewHub()
	a := h.Subscribe("2025-04-01")
	b := h.Subscribe("2025-04-01")
	if n := h.Subscribers("2025-04-01"); n != 2 {
		t.Fatalf("subscribers = %d", n)
	}
	a.Close()
	a.Close()
	if n := h.Subscribers("2025-04-01"); n != 1 {
		t.Fatalf("subscribers after double close = %d, want 1", n)
	}
	b.Close()
	if n := h.Subscribers("2025-04-01"); n != 0 {
		t.Fatalf("subscribers = %d", n)
	}
	h.Notify("2025-04-01")
}

func TestRedisMessageFormat(t *testing.T) {
	payload := encodeMessage("inst-1", "2025-04-01")
	inst, date, err := parseMessage(payload)
	if err != nil || inst != "inst-1" || date != "2025-04-01" {
		t.Fatalf("parse(%q) = %q %q %v", payload, inst, date, err)
	}
	for _, bad := range []string{"", "nodate", "|2025-04-01", "inst|"} {
		if _, _, err := parseMessage(bad); err == nil {
			t.Errorf("parseMessage(%q) accepted", bad)
		}
	}
}

func TestRedisBridgeRelaySkipsOwnMessages(t *testing.T) {
	h := NewHub()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	b := NewRedisBridge(nil, "test", h, logger)
	sub := h.Subscribe("2025-04-01")
	defer sub.Close()

	b.relay(encodeMessage(b.instance, "2025-04-01"))
	select {
	case <-sub.Updates():
		t.Fatal("own message relayed")
	default:
	}

	b.relay(encodeMessage("another", "2025-04-01"))
	select {
	case <-sub.Updates():
	default:
		t.Fatal("foreign message not relayed")
	}
	b.relay("garbage")
}
