package main

import (
	"strings"
	"testing"

	"shotsync/internal/daemon"
	"shotsync/internal/syncqueue"
)

func TestQueueHealth(t *testing.T) {
	tests := []struct {
		name  string
		queue syncqueue.Status
		want  health
	}{
		{name: "idle", queue: syncqueue.Status{Online: true, Synced: 4}, want: healthGood},
		{name: "draining", queue: syncqueue.Status{Online: true, Pending: 2}, want: healthNeutral},
		{name: "stalled offline", queue: syncqueue.Status{Pending: 2}, want: healthAttention},
		{name: "exhausted", queue: syncqueue.Status{Online: true, Pending: 1, Failed: 1}, want: healthDegraded},
	}
	for _, tc := range tests {
		if got := queueHealth(tc.queue); got != tc.want {
			t.Fatalf("%s: queueHealth = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestRenderStatusFlagsFailuresAndOffline(t *testing.T) {
	out := renderStatus(daemon.Status{
		Queue:          syncqueue.Status{Pending: 1, Failed: 2},
		DeferredWrites: 3,
		ActiveProject:  "P",
		StorePath:      "/tmp/shotsync.db",
	}, false)

	for _, want := range []string{
		"Connectivity:    [WARN] offline",
		"Upload queue:    [ERROR] 1 pending, 0 in progress, 0 synced, 2 failed",
		"Deferred writes: [WARN] 3",
		"Active project:  [INFO] P",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in status output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("uncolored output should not contain escapes:\n%s", out)
	}
}
