package errors

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"gitea.jw6.us/james/calhub/internal/apperr"
)

// DAVChallenge is sent with 401 responses on CalDAV routes.
const DAVChallenge = `Basic realm="calhub CalDAV"`

type apiError struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] encode json response: %v", err)
	}
}

// WriteAPIError renders err as {"error": ..., "status": ...}.
func WriteAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := logByKind(r, err)
	WriteJSON(w, status, apiError{Error: apperr.PublicMessage(err), Status: status})
}

// WriteDAVError renders err as plain text. Authentication failures carry a
// Basic challenge so CalDAV clients prompt for credentials.
func WriteDAVError(w http.ResponseWriter, r *http.Request, err error) {
	status := logByKind(r, err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", DAVChallenge)
	}
	http.Error(w, apperr.PublicMessage(err), status)
}

func logByKind(r *http.Request, err error) int {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindInternal:
		LogError(r, "request failed", err)
	case apperr.KindAuthentication, apperr.KindNotFound:
		// routine; chi's access log already records these
	default:
		LogWarn(r, kind.String()+": "+err.Error())
	}
	return kind.Status()
}

func LogError(r *http.Request, message string, err error) {
	requestID := middleware.GetReqID(r.Context())

	if requestID != "" {
		log.Printf("[ERROR] RequestID=%s: %s: %v", requestID, message, err)
	} else {
		log.Printf("[ERROR] %s: %v", message, err)
	}
}

func LogWarn(r *http.Request, message string) {
	requestID := middleware.GetReqID(r.Context())

	if requestID != "" {
		log.Printf("[WARN] RequestID=%s: %s", requestID, message)
	} else {
		log.Printf("[WARN] %s", message)
	}
}

func LogInfo(r *http.Request, message string) {
	requestID := middleware.GetReqID(r.Context())

	if requestID != "" {
		log.Printf("[INFO] RequestID=%s: %s", requestID, message)
	} else {
		log.Printf("[INFO] %s", message)
	}
}
