package notify

import (
	"testing"

	"go.uber.org/zap"
)

func TestVersionBumpsPerNotification(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())

	if v := h.Version(); v != 0 {
		t.Fatalf("fresh hub should start at version 0, got %d", v)
	}

	if v := h.NotifyUpdated("08-28-2026", "10:00 AM"); v != 1 {
		t.Fatalf("expected version 1, got %d", v)
	}
	if v := h.NotifyUpdated("08-28-2026", "11:00 AM"); v != 2 {
		t.Fatalf("expected version 2, got %d", v)
	}
	if v := h.Version(); v != 2 {
		t.Fatalf("Version should report 2, got %d", v)
	}
}

// NotifyUpdated must never block the fetch path, even without a running hub
// and with a saturated broadcast buffer.
func TestNotifyNeverBlocks(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())

	for i := 0; i < sendBufferLen*2; i++ {
		h.NotifyUpdated("08-28-2026", "10:00 AM")
	}
	if v := h.Version(); v != uint64(sendBufferLen*2) {
		t.Fatalf("version must keep moving when broadcasts drop, got %d", v)
	}
}

func TestRunAndShutdown(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())
	go h.Run()

	h.NotifyUpdated("08-28-2026", "10:00 AM")
	h.Shutdown()

	if v := h.Version(); v != 1 {
		t.Fatalf("expected version 1 after shutdown, got %d", v)
	}
}
