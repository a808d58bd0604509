package events

import (
	"sync/atomic"
	"testing"
)

func TestNotifyDeliversToAllListeners(t *testing.T) {
	var got atomic.Int32
	Register(func(event any) {
		if _, ok := event.(CreateSnapshotEvent); ok {
			got.Add(1)
		}
	})
	Register(func(any) { got.Add(1) })

	Notify(CreateSnapshotEvent{TableName: "db.t", SnapshotID: 1})
	if got.Load() != 2 {
		t.Fatalf("deliveries = %d, want 2", got.Load())
	}
}

func TestNotifySurvivesPanickingListener(t *testing.T) {
	var got atomic.Int32
	Register(func(any) { panic("listener bug") })
	Register(func(any) { got.Add(1) })

	Notify(CreateSnapshotEvent{TableName: "db.t"})
	if got.Load() == 0 {
		t.Fatalf("listener after the panicking one was skipped")
	}
}
