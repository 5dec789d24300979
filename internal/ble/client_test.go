package ble

import (
	"testing"

	"go.uber.org/zap"
)

func TestIsCube(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"QY-QYSC-S-8A2F", true},
		{"QY-QYSC", true},
		{"qy-qysc-lower", false},
		{"GoCube_1234", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsCube(tt.name); got != tt.want {
			t.Errorf("IsCube(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHandleNotificationCopiesAndQueues(t *testing.T) {
	c := &Client{notifications: make(chan []byte, 1)}
	c.log = zap.NewNop()

	data := []byte{1, 2, 3}
	c.handleNotification(data)
	data[0] = 9

	got := <-c.Notifications()
	if got[0] != 1 {
		t.Error("queued frame should be a copy of the notification buffer")
	}
}

func TestHandleNotificationDropsWhenFull(t *testing.T) {
	c := &Client{notifications: make(chan []byte, 1)}
	c.log = zap.NewNop()

	c.handleNotification([]byte{1})
	c.handleNotification([]byte{2})

	if got := <-c.notifications; got[0] != 1 {
		t.Errorf("first frame = %v, want [1]", got)
	}
	select {
	case f := <-c.notifications:
		t.Errorf("second frame %v should have been dropped", f)
	default:
	}
}
