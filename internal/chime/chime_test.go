package chime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"voxremind/internal/clock/clocktest"
	logx "voxremind/pkg/logx"
)

func TestSpokenTime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		h, m int
		want string
	}{
		{0, 0, "It's 12 o'clock AM"},
		{9, 0, "It's 9 o'clock AM"},
		{12, 0, "It's 12 o'clock PM"},
		{15, 15, "It's 3 15 PM"},
		{23, 59, "It's 11 59 PM"},
	}
	for _, tt := range tests {
		got := SpokenTime(time.Date(2024, 1, 1, tt.h, tt.m, 0, 0, time.UTC))
		if got != tt.want {
			t.Fatalf("SpokenTime(%02d:%02d) = %q, want %q", tt.h, tt.m, got, tt.want)
		}
	}
}

func TestIntervalSpecs(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 1, 1, 9, 10, 30, 0, time.UTC)
	tests := []struct {
		raw  string
		next time.Time
	}{
		{raw: "hourly", next: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{raw: "minutely", next: time.Date(2024, 1, 1, 9, 11, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		iv, err := ParseInterval(tt.raw)
		if err != nil {
			t.Fatalf("ParseInterval(%q) error: %v", tt.raw, err)
		}
		sched, err := cron.ParseStandard(iv.Spec())
		if err != nil {
			t.Fatalf("ParseStandard(%q) error: %v", iv.Spec(), err)
		}
		if got := sched.Next(base); !got.Equal(tt.next) {
			t.Fatalf("%s next = %v, want %v", tt.raw, got, tt.next)
		}
	}
	if _, err := ParseInterval("weekly"); err == nil {
		t.Fatal("expected error for unknown interval")
	}
}

type recorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *recorder) Announce(_ context.Context, text string) error {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()
	return nil
}

func TestFireOncePerMinute(t *testing.T) {
	t.Parallel()
	clk := clocktest.New(time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC))
	rec := &recorder{}
	ch := New(rec, clk, time.UTC, logx.Nop())
	ctx := context.Background()

	if !ch.Fire(ctx) {
		t.Fatal("first Fire should speak")
	}
	clk.Add(30 * time.Second)
	if ch.Fire(ctx) {
		t.Fatal("second Fire in the same minute should be skipped")
	}
	clk.Add(30 * time.Second)
	if !ch.Fire(ctx) {
		t.Fatal("Fire in the next minute should speak")
	}
	if len(rec.texts) != 2 || rec.texts[0] != "It's 2 o'clock PM" || rec.texts[1] != "It's 2 1 PM" {
		t.Fatalf("texts = %q", rec.texts)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	ch := New(&recorder{}, nil, time.UTC, logx.Nop())
	if err := ch.Start(context.Background(), Minutely); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := ch.Start(context.Background(), Hourly); err != nil {
		t.Fatalf("restart error: %v", err)
	}
	if running, iv := ch.Running(); !running || iv != Hourly {
		t.Fatalf("Running = %v/%v, want true/hourly", running, iv)
	}
	ch.Stop()
	if running, _ := ch.Running(); running {
		t.Fatal("still running after Stop")
	}
}
