// Package ical converts events to and from iCalendar (RFC 5545) text.
//
// Encoding always produces the same fixed property layout. Decoding is
// lenient and line oriented.
package ical

import (
	"strings"

	"gitea.jw6.us/james/calhub/internal/apperr"
	"gitea.jw6.us/james/calhub/internal/store"
)

// ProductID identifies this server in generated VCALENDAR documents.
const ProductID = "-//calhub//CalDAV Server//EN"

const crlf = "\r\n"

var (
	textEscaper   = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, "\n", `\n`)
	nestedSkipped = map[string]bool{"VALARM": true, "VTIMEZONE": true}
)

// EscapeText escapes an iCalendar TEXT value.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// UnescapeText reverses EscapeText. Unknown escapes keep the escaped character.
func UnescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// EncodeEvent renders ev as a VEVENT block with CRLF line endings.
func EncodeEvent(ev store.Event) string {
	var b strings.Builder
	writeEvent(&b, ev)
	return b.String()
}

func writeEvent(b *strings.Builder, ev store.Event) {
	line := func(name, value string) {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(value)
		b.WriteString(crlf)
	}
	line("BEGIN", "VEVENT")
	line("UID", ev.ID.String())
	line("SUMMARY", EscapeText(ev.Title))
	line("DESCRIPTION", EscapeText(deref(ev.Description)))
	line("LOCATION", EscapeText(deref(ev.Location)))
	line("DTSTART", FormatDateTime(ev.StartTime))
	line("DTEND", FormatDateTime(ev.EndTime))
	line("END", "VEVENT")
}

// EncodeCalendar renders a full calendar export. A non-empty name is
// emitted as X-WR-CALNAME.
func EncodeCalendar(name string, events []store.Event) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR" + crlf)
	b.WriteString("VERSION:2.0" + crlf)
	b.WriteString("PRODID:" + ProductID + crlf)
	b.WriteString("CALSCALE:GREGORIAN" + crlf)
	if name != "" {
		b.WriteString("X-WR-CALNAME:" + EscapeText(name) + crlf)
	}
	for _, ev := range events {
		writeEvent(&b, ev)
	}
	b.WriteString("END:VCALENDAR" + crlf)
	return b.String()
}

// EncodeSingle wraps one event in a minimal VCALENDAR, as served for a
// single event resource.
func EncodeSingle(ev store.Event) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR" + crlf)
	b.WriteString("VERSION:2.0" + crlf)
	b.WriteString("PRODID:" + ProductID + crlf)
	writeEvent(&b, ev)
	b.WriteString("END:VCALENDAR" + crlf)
	return b.String()
}

// DecodeEvent extracts an event draft from iCalendar text. It reads SUMMARY,
// DESCRIPTION, LOCATION, DTSTART and DTEND by line prefix; a later occurrence
// overrides an earlier one. Lines inside VALARM and VTIMEZONE are ignored.
func DecodeEvent(data string) (store.EventDraft, error) {
	var (
		draft       store.EventDraft
		title       *string
		start, end  *string
		nested      string
		startAllDay bool
		endAllDay   bool
	)

	for _, raw := range strings.Split(data, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if nested != "" {
			if strings.EqualFold(line, "END:"+nested) {
				nested = ""
			}
			continue
		}
		if comp, ok := strings.CutPrefix(line, "BEGIN:"); ok && nestedSkipped[strings.ToUpper(comp)] {
			nested = strings.ToUpper(comp)
			continue
		}

		switch {
		case strings.HasPrefix(line, "SUMMARY:"):
			v := UnescapeText(strings.TrimPrefix(line, "SUMMARY:"))
			title = &v
		case strings.HasPrefix(line, "DESCRIPTION:"):
			v := UnescapeText(strings.TrimPrefix(line, "DESCRIPTION:"))
			draft.Description = &v
		case strings.HasPrefix(line, "LOCATION:"):
			v := UnescapeText(strings.TrimPrefix(line, "LOCATION:"))
			draft.Location = &v
		case strings.HasPrefix(line, "DTSTART"):
			v := valueAfterLastColon(line)
			start = &v
			startAllDay = strings.Contains(line, "VALUE=DATE")
		case strings.HasPrefix(line, "DTEND"):
			v := valueAfterLastColon(line)
			end = &v
			endAllDay = strings.Contains(line, "VALUE=DATE")
		}
	}

	if title == nil {
		return store.EventDraft{}, apperr.Validation("Missing SUMMARY")
	}
	if start == nil {
		return store.EventDraft{}, apperr.Validation("Missing DTSTART")
	}
	if end == nil {
		return store.EventDraft{}, apperr.Validation("Missing DTEND")
	}

	var err error
	if draft.StartTime, err = ParseDateTime(*start); err != nil {
		return store.EventDraft{}, err
	}
	if draft.EndTime, err = ParseDateTime(*end); err != nil {
		return store.EventDraft{}, err
	}
	draft.Title = *title
	draft.IsAllDay = startAllDay || endAllDay
	return draft, nil
}

func valueAfterLastColon(line string) string {
	if i := strings.LastIndex(line, ":"); i >= 0 {
		return line[i+1:]
	}
	return line
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
