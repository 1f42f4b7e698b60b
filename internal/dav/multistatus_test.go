package dav

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"gitea.jw6.us/james/calhub/internal/store"
)

func TestEscapeXML(t *testing.T) {
	got := EscapeXML(`a & b < c > d "e" 'f'`)
	want := "a &amp; b &lt; c &gt; d &quot;e&quot; &apos;f&apos;"
	if got != want {
		t.Fatalf("EscapeXML = %q, want %q", got, want)
	}
}

func TestRenderMultistatusCalendar(t *testing.T) {
	cal := store.Calendar{ID: uuid.MustParse("0b9f6c1e-7a53-4c4f-9a0e-3f1f2b5c8d11"), Name: "Work & <Play>"}

	body, err := renderMultistatus([]response{calendarResponse(cal)})
	if err != nil {
		t.Fatalf("renderMultistatus error: %v", err)
	}
	doc := string(body)

	if !strings.HasPrefix(doc, `<?xml version="1.0" encoding="utf-8"?>`) {
		t.Fatalf("missing xml declaration: %q", doc)
	}
	for _, want := range []string{
		`<d:multistatus xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav">`,
		"<d:href>/calendars/0b9f6c1e-7a53-4c4f-9a0e-3f1f2b5c8d11/</d:href>",
		"<d:collection></d:collection>",
		"<cal:calendar></cal:calendar>",
		"<d:displayname>Work &amp; &lt;Play&gt;</d:displayname>",
		`<cal:comp name="VEVENT"></cal:comp>`,
		`<cal:comp name="VTODO"></cal:comp>`,
		"<d:status>HTTP/1.1 200 OK</d:status>",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("expected %q in multistatus:\n%s", want, doc)
		}
	}
}

func TestRenderMultistatusEventData(t *testing.T) {
	ev := store.Event{
		ID:         uuid.MustParse("5d2e8a40-1c7b-4b7e-8f5a-6a9d0c3e2f44"),
		CalendarID: uuid.MustParse("0b9f6c1e-7a53-4c4f-9a0e-3f1f2b5c8d11"),
		Title:      `Q&A "Tom's" <review>`,
		StartTime:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	body, err := renderMultistatus([]response{eventResponse(ev, true)})
	if err != nil {
		t.Fatalf("renderMultistatus error: %v", err)
	}
	doc := string(body)

	for _, want := range []string{
		"<d:href>/calendars/0b9f6c1e-7a53-4c4f-9a0e-3f1f2b5c8d11/5d2e8a40-1c7b-4b7e-8f5a-6a9d0c3e2f44.ics</d:href>",
		"<d:getetag>&quot;5d2e8a40-1c7b-4b7e-8f5a-6a9d0c3e2f44&quot;</d:getetag>",
		"SUMMARY:Q&amp;A &quot;Tom&apos;s&quot; &lt;review&gt;",
		"DTSTART:20240301T090000Z",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("expected %q in multistatus:\n%s", want, doc)
		}
	}
}

func TestRenderMultistatusIsWellFormed(t *testing.T) {
	ev := store.Event{
		ID:         uuid.New(),
		CalendarID: uuid.New(),
		Title:      "Team; Sync, Room\\1\nFinal & more",
		StartTime:  time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC),
		EndTime:    time.Date(2024, 1, 15, 15, 30, 0, 0, time.UTC),
	}
	cal := store.Calendar{ID: ev.CalendarID, Name: "<Team>"}

	body, err := renderMultistatus([]response{calendarResponse(cal), eventResponse(ev, true), eventResponse(ev, false)})
	if err != nil {
		t.Fatalf("renderMultistatus error: %v", err)
	}

	var parsed struct {
		Responses []struct {
			Href     string `xml:"href"`
			Propstat struct {
				Prop struct {
					DisplayName  string `xml:"displayname"`
					ETag         string `xml:"getetag"`
					CalendarData string `xml:"calendar-data"`
				} `xml:"prop"`
				Status string `xml:"status"`
			} `xml:"propstat"`
		} `xml:"response"`
	}
	if err := xml.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("multistatus is not well-formed: %v\n%s", err, body)
	}
	if len(parsed.Responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(parsed.Responses))
	}
	if parsed.Responses[0].Propstat.Prop.DisplayName != "<Team>" {
		t.Errorf("displayname = %q", parsed.Responses[0].Propstat.Prop.DisplayName)
	}
	data := parsed.Responses[1].Propstat.Prop.CalendarData
	if !strings.Contains(data, `SUMMARY:Team\; Sync\, Room\\1\nFinal & more`) {
		t.Errorf("calendar-data did not round trip through XML: %q", data)
	}
	if parsed.Responses[2].Propstat.Prop.CalendarData != "" {
		t.Errorf("expected no calendar-data on depth listing")
	}
	for _, r := range parsed.Responses {
		if r.Propstat.Status != "HTTP/1.1 200 OK" {
			t.Errorf("status = %q", r.Propstat.Status)
		}
	}
}
