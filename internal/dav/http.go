package dav

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gitea.jw6.us/james/calhub/internal/apperr"
	"gitea.jw6.us/james/calhub/internal/auth"
	httperrors "gitea.jw6.us/james/calhub/internal/http/errors"
	"gitea.jw6.us/james/calhub/internal/metrics"
)

const (
	xmlContentType  = "application/xml; charset=utf-8"
	icalContentType = "text/calendar; charset=utf-8"
	davCapabilities = "1, calendar-access"

	// maxDAVBodyBytes is the maximum body size for DAV requests.
	maxDAVBodyBytes int64 = 10 * 1024 * 1024

	MethodPropfind   = "PROPFIND"
	MethodReport     = "REPORT"
	MethodMkcol      = "MKCOL"
	MethodMkcalendar = "MKCALENDAR"
)

const (
	collectionAllow = "OPTIONS, PROPFIND, REPORT"
	calendarAllow   = "OPTIONS, HEAD, GET, PROPFIND, REPORT, MKCOL, MKCALENDAR"
	resourceAllow   = "OPTIONS, HEAD, GET, PUT, DELETE"
)

var errRequestTooLarge = errors.New("request body too large")

// Discovery answers /.well-known/caldav with the collection root.
func Discovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, collectionRoot)
}

// Collection serves /calendars and /calendars/. REPORT returns events;
// every other verb lists the principal's calendars.
func (h *Handler) Collection(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		options(w, collectionAllow)
		return
	}
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var (
		body []byte
		err  error
	)
	if r.Method == MethodReport {
		if !h.inspectReport(w, r) {
			return
		}
		body, err = h.ReportEvents(r.Context(), p)
	} else {
		body, err = h.ListCalendars(r.Context(), p)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	observe(r, nil)
	writeMultiStatus(w, body)
}

// Calendar serves /calendars/{calendarID} and its trailing-slash form.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		options(w, calendarAllow)
		return
	case http.MethodGet, http.MethodHead, MethodPropfind, MethodReport, MethodMkcol, MethodMkcalendar:
	default:
		methodNotAllowed(w, calendarAllow)
		return
	}
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	if r.Method == MethodMkcol || r.Method == MethodMkcalendar {
		h.mkcol(w, r, p)
		return
	}

	rp, err := ParseCalendarPath(r.URL.Path)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var body []byte
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.get(w, r, p, rp)
		return
	case MethodReport:
		if !h.inspectReport(w, r) {
			return
		}
		body, err = h.ReportCalendar(r.Context(), p, rp.CalendarID)
	default:
		body, err = h.PropfindCalendar(r.Context(), p, rp.CalendarID, r.Header.Get("Depth"))
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	observe(r, nil)
	writeMultiStatus(w, body)
}

// Resource serves /calendars/{calendarID}/{resource}.
func (h *Handler) Resource(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		options(w, resourceAllow)
		return
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
	default:
		methodNotAllowed(w, resourceAllow)
		return
	}
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		rp, err := ParseCalendarPath(r.URL.Path)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.get(w, r, p, rp)
	case http.MethodPut:
		h.put(w, r, p)
	case http.MethodDelete:
		h.remove(w, r, p)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, p auth.Principal, rp ResourcePath) {
	res, err := h.GetResource(r.Context(), p, rp)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	observe(r, nil)
	w.Header().Set("Content-Type", icalContentType)
	if res.ETag != "" {
		w.Header().Set("ETag", res.ETag)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, res.Body)
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	rp, err := ParseEventTarget(r.URL.Path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	created, err := h.PutEvent(r.Context(), p, rp, string(body))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	observe(r, nil)
	w.Header().Set("Location", created.Location)
	w.Header().Set("ETag", created.ETag)
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	rp, err := ParseEventPath(r.URL.Path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.DeleteEvent(r.Context(), p, rp); err != nil {
		h.fail(w, r, err)
		return
	}
	observe(r, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) mkcol(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	created, err := h.CreateCalendar(r.Context(), p, chi.URLParam(r, "calendarID"), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	observe(r, nil)
	httperrors.LogInfo(r, "created calendar "+created.Location)
	w.Header().Set("Location", created.Location)
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.fail(w, r, apperr.Authentication("Authentication required"))
		return auth.Principal{}, false
	}
	return p, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	observe(r, err)
	httperrors.WriteDAVError(w, r, err)
}

func observe(r *http.Request, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindOf(err).String()
	}
	metrics.ObserveCalDAV(r.Method, outcome)
}

func options(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	w.Header().Set("DAV", davCapabilities)
	w.WriteHeader(http.StatusNoContent)
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

// readBody reads a request body up to maxDAVBodyBytes, answering 413 or 400
// itself when it cannot.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := readDAVBody(w, r)
	if err == nil {
		return body, true
	}
	if errors.Is(err, errRequestTooLarge) {
		observe(r, apperr.Validation("request too large"))
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	httperrors.LogWarn(r, "failed to read body: "+err.Error())
	observe(r, apperr.Validation("unreadable body"))
	http.Error(w, "failed to read body", http.StatusBadRequest)
	return nil, false
}

func readDAVBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDAVBodyBytes))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, errRequestTooLarge
	}
	return body, err
}
