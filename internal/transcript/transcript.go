// Package transcript turns a free-text utterance ("remind me to stretch at
// 9:30", "call mom at 6 pm") into a reminder.Task.
//
// Parsing is best-effort: it recognizes a handful of phrasings and rejects the
// rest. Callers echo the parsed task back to the user before relying on it.
package transcript

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"voxremind/internal/reminder"
)

var (
	ErrEmpty  = errors.New("no speech detected, please try again")
	ErrNoTime = errors.New("no time found (try \"at 9:30\" or \"at 6 pm\")")
)

// UnknownContactError is returned for a call request whose contact has no
// phone number in the directory and none was spoken.
type UnknownContactError struct {
	Name string
}

func (e *UnknownContactError) Error() string {
	return fmt.Sprintf("no phone number known for %q", e.Name)
}

// Contacts resolves a spoken contact name to a phone number.
type Contacts interface {
	Lookup(name string) (phone string, ok bool)
}

// Directory is a case-insensitive, hot-swappable contact list.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]contact
}

type contact struct {
	name  string
	phone string
}

func NewDirectory(m map[string]string) *Directory {
	d := &Directory{}
	d.Replace(m)
	return d
}

// Replace swaps the whole directory.
func (d *Directory) Replace(m map[string]string) {
	entries := make(map[string]contact, len(m))
	for name, phone := range m {
		key := normalizeName(name)
		phone = strings.TrimSpace(phone)
		if key == "" || phone == "" {
			continue
		}
		entries[key] = contact{name: strings.TrimSpace(name), phone: phone}
	}
	d.mu.Lock()
	d.entries = entries
	d.mu.Unlock()
}

func (d *Directory) Lookup(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.entries[normalizeName(name)]
	return c.phone, ok
}

// Names returns the display names, sorted.
func (d *Directory) Names() []string {
	d.mu.RLock()
	out := make([]string, 0, len(d.entries))
	for _, c := range d.entries {
		out = append(out, c.name)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

var (
	// "at 9", "at 9:05", "at 9 pm", "at 21:30"
	atTimeRe = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)?(?:\s|$|[,.!?])`)
	// "9:05", "21:30", "9pm", "9 am" without "at"
	bareTimeRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)(?:\s|$|[,.!?])|\b(\d{1,2}):(\d{2})\b`)
	phoneRe    = regexp.MustCompile(`^\+?[0-9][0-9().\- ]{2,}[0-9]$`)

	// Tried in order; matched case-insensitively against the original text so
	// offsets stay valid when case mapping changes byte lengths.
	reminderPrefixRes = prefixRes("remind me to ", "remind me about ", "remind me ", "reminder to ", "reminder ", "remember to ")
	callVerbs        = map[string]bool{"call": true, "phone": true, "ring": true}
)

// Parser builds tasks from transcripts.
type Parser struct {
	Contacts Contacts
}

// Parse extracts a task from text. The returned task is validated.
func (p Parser) Parse(text string) (reminder.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return reminder.Task{}, ErrEmpty
	}
	tod, rest, ok := extractTime(text)
	if !ok {
		return reminder.Task{}, ErrNoTime
	}
	at := tod.String()

	if name, phone, isCall := callIntent(rest); isCall {
		if name == "" {
			return reminder.Task{}, errors.New("call request without a contact name")
		}
		if phone == "" && p.Contacts != nil {
			phone, _ = p.Contacts.Lookup(name)
		}
		if phone == "" {
			return reminder.Task{}, &UnknownContactError{Name: name}
		}
		return reminder.NewCall(at, name, phone)
	}

	msg := reminderMessage(rest)
	if msg == "" {
		msg = text
	}
	return reminder.NewReminder(at, msg)
}

// extractTime finds the time phrase and returns the text with it removed.
func extractTime(text string) (reminder.TimeOfDay, string, bool) {
	if loc := atTimeRe.FindStringSubmatchIndex(text); loc != nil {
		tod, ok := toTimeOfDay(group(text, loc, 1), group(text, loc, 2), group(text, loc, 3))
		if ok {
			return tod, cut(text, loc[0], loc[1]), true
		}
	}
	if loc := bareTimeRe.FindStringSubmatchIndex(text); loc != nil {
		var (
			tod reminder.TimeOfDay
			ok  bool
		)
		if loc[2] >= 0 {
			tod, ok = toTimeOfDay(group(text, loc, 1), group(text, loc, 2), group(text, loc, 3))
		} else {
			tod, ok = toTimeOfDay(group(text, loc, 4), group(text, loc, 5), "")
		}
		if ok {
			return tod, cut(text, loc[0], loc[1]), true
		}
	}
	return reminder.TimeOfDay{}, text, false
}

func group(s string, loc []int, i int) string {
	if 2*i+1 >= len(loc) || loc[2*i] < 0 {
		return ""
	}
	return s[loc[2*i]:loc[2*i+1]]
}

func cut(s string, from, to int) string {
	return strings.Join(strings.Fields(s[:from]+" "+s[to:]), " ")
}

func toTimeOfDay(hs, ms, meridiem string) (reminder.TimeOfDay, bool) {
	h, err := strconv.Atoi(hs)
	if err != nil {
		return reminder.TimeOfDay{}, false
	}
	m := 0
	if ms != "" {
		if m, err = strconv.Atoi(ms); err != nil || m > 59 {
			return reminder.TimeOfDay{}, false
		}
	}
	switch strings.ToLower(strings.ReplaceAll(meridiem, ".", "")) {
	case "am":
		if h < 1 || h > 12 {
			return reminder.TimeOfDay{}, false
		}
		if h == 12 {
			h = 0
		}
	case "pm":
		if h < 1 || h > 12 {
			return reminder.TimeOfDay{}, false
		}
		if h != 12 {
			h += 12
		}
	}
	if h > 23 {
		return reminder.TimeOfDay{}, false
	}
	return reminder.TimeOfDay{Hour: h, Minute: m}, true
}

// callIntent looks for "call <name>" and an optional spoken phone number.
func callIntent(text string) (name, phone string, ok bool) {
	words := strings.Fields(text)
	for i, w := range words {
		if !callVerbs[strings.ToLower(trimPunct(w))] {
			continue
		}
		var nameParts []string
		for _, next := range words[i+1:] {
			clean := trimPunct(next)
			if phoneRe.MatchString(clean) {
				phone = clean
				break
			}
			if isFiller(clean) {
				if len(nameParts) > 0 {
					break
				}
				continue
			}
			nameParts = append(nameParts, clean)
		}
		return strings.Join(nameParts, " "), phone, true
	}
	return "", "", false
}

func isFiller(w string) bool {
	switch strings.ToLower(w) {
	case "", "to", "please", "me", "my", "and", "on", "the", "at", "number":
		return true
	}
	return false
}

func trimPunct(w string) string {
	return strings.Trim(w, ",.!?;:\"'")
}

func prefixRes(prefixes ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(p)))
	}
	return out
}

func reminderMessage(text string) string {
	for _, re := range reminderPrefixRes {
		if loc := re.FindStringIndex(text); loc != nil {
			text = text[loc[1]:]
			break
		}
	}
	return strings.Trim(strings.TrimSpace(text), ",.!?;: ")
}
