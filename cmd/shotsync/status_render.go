package main

import (
	"fmt"
	"strings"

	"shotsync/internal/daemon"
	"shotsync/internal/syncqueue"
)

// health grades one line of the status report.
type health int

const (
	healthNeutral health = iota
	healthGood
	healthAttention
	healthDegraded
)

var healthStyles = map[health]struct {
	tag   string
	color string
}{
	healthNeutral:   {"INFO", "\x1b[34m"},
	healthGood:      {"OK", "\x1b[32m"},
	healthAttention: {"WARN", "\x1b[33m"},
	healthDegraded:  {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

type statusRow struct {
	label  string
	health health
	detail string
}

// queueHealth is degraded once any upload has exhausted its retries and
// needs attention while work is waiting but the drain cannot run.
func queueHealth(st syncqueue.Status) health {
	switch {
	case st.Failed > 0:
		return healthDegraded
	case !st.Online && st.Pending+st.InProgress > 0:
		return healthAttention
	case st.Pending+st.InProgress > 0:
		return healthNeutral
	default:
		return healthGood
	}
}

func queueDetail(st syncqueue.Status) string {
	parts := []string{
		fmt.Sprintf("%d pending", st.Pending),
		fmt.Sprintf("%d in progress", st.InProgress),
		fmt.Sprintf("%d synced", st.Synced),
	}
	if st.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed (queue retry)", st.Failed))
	}
	return strings.Join(parts, ", ")
}

func statusRows(status daemon.Status) []statusRow {
	conn := statusRow{label: "Connectivity", health: healthGood, detail: "online"}
	if !status.Queue.Online {
		conn = statusRow{label: "Connectivity", health: healthAttention, detail: "offline; uploads and record writes wait"}
	}
	deferred := healthGood
	if status.DeferredWrites > 0 {
		deferred = healthAttention
	}
	rows := []statusRow{
		conn,
		{label: "Upload queue", health: queueHealth(status.Queue), detail: queueDetail(status.Queue)},
		{label: "Tombstones", detail: fmt.Sprintf("%d", status.Queue.Tombstones)},
		{label: "Deferred writes", health: deferred, detail: fmt.Sprintf("%d", status.DeferredWrites)},
		{label: "Reconciling", detail: yesNo(status.Reconciling)},
		{label: "Hydrating", detail: yesNo(status.Hydrating)},
	}
	if status.ActiveProject != "" {
		rows = append(rows, statusRow{label: "Active project", detail: status.ActiveProject})
	}
	return append(rows, statusRow{label: "Store", detail: status.StorePath})
}

func renderStatus(status daemon.Status, colorize bool) string {
	var b strings.Builder
	title := "== Sync =="
	fmt.Fprintf(&b, "%s\n%s\n", title, strings.Repeat("-", len(title)))
	for _, row := range statusRows(status) {
		style := healthStyles[row.health]
		line := fmt.Sprintf("  %-16s [%s] %s", row.label+":", style.tag, row.detail)
		if colorize {
			line = style.color + line + ansiReset
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
