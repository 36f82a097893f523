package reminder

import (
	"errors"
	"testing"
	"time"
)

func TestPrepareNormalizesAndAssignsID(t *testing.T) {
	t.Parallel()
	got, err := Prepare(Task{Time: " 9:05 ", Kind: KindReminder, Message: "  Stand up "})
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	if got.Time != "09:05" {
		t.Fatalf("Time = %q, want 09:05", got.Time)
	}
	if got.Message != "Stand up" {
		t.Fatalf("Message = %q, want trimmed", got.Message)
	}
	if got.ID == "" {
		t.Fatal("expected an assigned ID")
	}

	kept, err := Prepare(Task{ID: "morning", Time: "07:30", Kind: KindReminder, Message: "Coffee"})
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	if kept.ID != "morning" {
		t.Fatalf("ID = %q, want morning", kept.ID)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		task  Task
		field string
	}{
		{name: "empty time", task: Task{Kind: KindReminder, Message: "x"}, field: "time"},
		{name: "hour out of range", task: Task{Time: "24:00", Kind: KindReminder, Message: "x"}, field: "time"},
		{name: "minute out of range", task: Task{Time: "09:60", Kind: KindReminder, Message: "x"}, field: "time"},
		{name: "not a time", task: Task{Time: "nine", Kind: KindReminder, Message: "x"}, field: "time"},
		{name: "unknown kind", task: Task{Time: "09:00", Kind: Kind(7)}, field: "kind"},
		{name: "reminder without message", task: Task{Time: "09:00", Kind: KindReminder}, field: "message"},
		{name: "call without contact", task: Task{Time: "09:00", Kind: KindCall, PhoneNumber: "555"}, field: "contact_name"},
		{name: "call without phone", task: Task{Time: "09:00", Kind: KindCall, ContactName: "Mom"}, field: "phone_number"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(tt.task)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Prepare error = %v, want *ValidationError", err)
			}
			if !verr.Has(tt.field) {
				t.Fatalf("error %q does not name field %q", verr.Error(), tt.field)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: "09:00", want: "09:00", ok: true},
		{raw: "9:00", want: "09:00", ok: true},
		{raw: "00:00", want: "00:00", ok: true},
		{raw: "23:59", want: "23:59", ok: true},
		{raw: "24:00"},
		{raw: "12:5"},
		{raw: "123:00"},
		{raw: "-1:00"},
		{raw: "+9:00"},
		{raw: "0900"},
		{raw: ""},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.raw)
		if tt.ok {
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) error: %v", tt.raw, err)
			}
			if got.String() != tt.want {
				t.Fatalf("ParseTimeOfDay(%q) = %s, want %s", tt.raw, got, tt.want)
			}
			continue
		}
		if err == nil {
			t.Fatalf("ParseTimeOfDay(%q) = %s, want error", tt.raw, got)
		}
	}
}

func TestNextFire(t *testing.T) {
	t.Parallel()
	task := Task{Time: "09:00", Kind: KindReminder, Message: "x"}

	if got, want := task.NextFire(at(8, 30, 0)), at(9, 0, 0); !got.Equal(want) {
		t.Fatalf("NextFire before = %v, want %v", got, want)
	}
	// The current minute is already past.
	if got, want := task.NextFire(at(9, 0, 0)), at(9, 0, 0).Add(24*time.Hour); !got.Equal(want) {
		t.Fatalf("NextFire at = %v, want %v", got, want)
	}
	if got := (Task{Time: "bad"}).NextFire(at(8, 0, 0)); !got.IsZero() {
		t.Fatalf("NextFire malformed = %v, want zero", got)
	}
}

func TestTaskTexts(t *testing.T) {
	t.Parallel()
	r := Task{Time: "09:00", Kind: KindReminder, Message: "Stand up"}
	if got := r.Announcement(); got != "Reminder: Stand up" {
		t.Fatalf("Announcement = %q", got)
	}
	c := Task{Time: "18:00", Kind: KindCall, ContactName: "Mom", PhoneNumber: "555-1234"}
	if got := c.Summary(); got != "18:00 call Mom (555-1234)" {
		t.Fatalf("Summary = %q", got)
	}
	if got := MinuteKey(at(7, 5, 59)); got != "07:05" {
		t.Fatalf("MinuteKey = %q, want 07:05", got)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()
	if k, err := ParseKind("Call"); err != nil || k != KindCall {
		t.Fatalf("ParseKind(Call) = %v, %v", k, err)
	}
	if _, err := ParseKind("email"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
