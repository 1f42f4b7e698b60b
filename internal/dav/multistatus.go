package dav

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"gitea.jw6.us/james/calhub/internal/ical"
	"gitea.jw6.us/james/calhub/internal/store"
)

const (
	xmlDeclaration = `<?xml version="1.0" encoding="utf-8"?>` + "\n"
	statusOK       = "HTTP/1.1 200 OK"
	nsDAV          = "DAV:"
	nsCalDAV       = "urn:ietf:params:xml:ns:caldav"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes the five XML special characters.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

type multistatus struct {
	XMLName  xml.Name   `xml:"d:multistatus"`
	XmlnsD   string     `xml:"xmlns:d,attr"`
	XmlnsC   string     `xml:"xmlns:cal,attr"`
	Response []response `xml:"d:response"`
}

type response struct {
	Href     escapedText `xml:"d:href"`
	Propstat []propstat  `xml:"d:propstat"`
}

type propstat struct {
	Prop   prop   `xml:"d:prop"`
	Status string `xml:"d:status"`
}

type prop struct {
	ResourceType                  *resourceType `xml:"d:resourcetype,omitempty"`
	DisplayName                   *escapedText  `xml:"d:displayname,omitempty"`
	GetETag                       *escapedText  `xml:"d:getetag,omitempty"`
	GetContentType                string        `xml:"d:getcontenttype,omitempty"`
	SupportedCalendarComponentSet *componentSet `xml:"cal:supported-calendar-component-set,omitempty"`
	CalendarData                  *escapedText  `xml:"cal:calendar-data,omitempty"`
}

// escapedText carries element content that was already escaped with
// EscapeXML, so the encoder writes it verbatim.
type escapedText struct {
	Inner string `xml:",innerxml"`
}

func text(s string) *escapedText {
	return &escapedText{Inner: EscapeXML(s)}
}

type resourceType struct {
	Collection *struct{} `xml:"d:collection,omitempty"`
	Calendar   *struct{} `xml:"cal:calendar,omitempty"`
}

type componentSet struct {
	Comp []component `xml:"cal:comp"`
}

type component struct {
	Name string `xml:"name,attr"`
}

var supportedComponents = &componentSet{Comp: []component{{Name: "VEVENT"}, {Name: "VTODO"}}}

func newMultistatus(responses []response) multistatus {
	return multistatus{XmlnsD: nsDAV, XmlnsC: nsCalDAV, Response: responses}
}

func okResponse(href string, p prop) response {
	return response{
		Href:     *text(href),
		Propstat: []propstat{{Prop: p, Status: statusOK}},
	}
}

func calendarResponse(cal store.Calendar) response {
	return okResponse(calendarHref(cal.ID), prop{
		ResourceType:                  &resourceType{Collection: &struct{}{}, Calendar: &struct{}{}},
		DisplayName:                   text(cal.Name),
		SupportedCalendarComponentSet: supportedComponents,
	})
}

// eventResponse describes an event; calendar-data is included when withData is set.
func eventResponse(ev store.Event, withData bool) response {
	p := prop{GetETag: text(quotedETag(ev.ID))}
	if withData {
		p.CalendarData = text(ical.EncodeEvent(ev))
	} else {
		p.GetContentType = "text/calendar; component=vevent"
	}
	return okResponse(eventHref(ev.CalendarID, ev.ID), p)
}

// renderMultistatus serializes responses into a complete document.
func renderMultistatus(responses []response) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xmlDeclaration)
	if err := xml.NewEncoder(&buf).Encode(newMultistatus(responses)); err != nil {
		return nil, fmt.Errorf("encode multistatus: %w", err)
	}
	return buf.Bytes(), nil
}

func writeMultiStatus(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", xmlContentType)
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = w.Write(body)
}
