package telegram

import (
	"context"
	"strings"
	"testing"

	"voxremind/internal/transport"
	logx "voxremind/pkg/logx"
)

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
	a, err := New(Config{Token: "123:abc", Offline: true}, logx.Nop())
	if err != nil {
		t.Fatalf("New offline: %v", err)
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if a.Supervisor() != nil {
		t.Fatal("supervisor should be nil before Start")
	}
}

func TestInlineMarkup(t *testing.T) {
	t.Parallel()
	rm := inlineMarkup([][]transport.Button{{{Text: "Yes", Data: callbackYes}, {Text: "No", Data: callbackNo}}})
	if len(rm.InlineKeyboard) != 1 || len(rm.InlineKeyboard[0]) != 2 {
		t.Fatalf("keyboard = %+v", rm.InlineKeyboard)
	}
	if rm.InlineKeyboard[0][1].Data != callbackNo {
		t.Fatalf("button data = %q", rm.InlineKeyboard[0][1].Data)
	}
	if empty := inlineMarkup(nil); empty.InlineKeyboard == nil {
		t.Fatal("empty markup should clear the keyboard")
	}
}

func TestSplitText(t *testing.T) {
	t.Parallel()
	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short = %q", got)
	}
	if got := splitText("", 10); len(got) != 1 {
		t.Fatalf("empty = %q", got)
	}

	long := strings.Repeat("a", 25)
	got := splitText(long, 10)
	if len(got) != 3 || got[2] != "aaaaa" {
		t.Fatalf("hard split = %q", got)
	}

	lines := "line one\nline two\nline three"
	got = splitText(lines, 12)
	want := []string{"line one", "line two", "line three"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("newline split = %q, want %q", got, want)
	}
	for _, c := range splitText(strings.Repeat("é", 9000), textLimit) {
		if n := len([]rune(c)); n > textLimit {
			t.Fatalf("chunk of %d runes exceeds limit", n)
		}
	}
}
