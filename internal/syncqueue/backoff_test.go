package syncqueue

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		retries int
		ceiling time.Duration
		want    time.Duration
	}{
		{retries: 0, want: time.Second},
		{retries: 1, want: time.Second},
		{retries: 2, want: 2 * time.Second},
		{retries: 3, want: 4 * time.Second},
		{retries: 4, want: 8 * time.Second},
		{retries: 10, ceiling: 60 * time.Second, want: 60 * time.Second},
		{retries: 7, ceiling: 60 * time.Second, want: 60 * time.Second},
		{retries: 6, ceiling: 60 * time.Second, want: 32 * time.Second},
		{retries: 1, ceiling: 500 * time.Millisecond, want: 500 * time.Millisecond},
		{retries: 20, want: (1 << 19) * time.Second},
	}
	for _, tc := range tests {
		if got := Backoff(time.Second, tc.ceiling, tc.retries); got != tc.want {
			t.Fatalf("Backoff(retries=%d, ceiling=%s) = %s, want %s", tc.retries, tc.ceiling, got, tc.want)
		}
	}
}
