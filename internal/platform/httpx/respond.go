// Package httpx holds the JSON request and response helpers shared by every HTTP handler and
// the one mapping from domain errors to status codes.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	enrollmentdomain "carescope/backend/internal/enrollment/domain"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes v as JSON with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status and writes it. Enrollment rejections carry their details;
// internal errors are logged with the request logger and reported generically.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	var rej *enrollmentdomain.Rejection
	switch {
	case errors.As(err, &rej):
		WriteJSON(w, status, rej)
	case status == http.StatusInternalServerError:
		log.FromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		WriteJSON(w, status, ErrorBody{Error: "internal error"})
	case status == http.StatusUnauthorized:
		// Report only the sentinel text; wrapped token errors carry parser detail.
		WriteJSON(w, status, ErrorBody{Error: unauthorizedMessage(err)})
	default:
		WriteJSON(w, status, ErrorBody{Error: err.Error()})
	}
}

func unauthorizedMessage(err error) string {
	for _, e := range statusByErr {
		if e.status == http.StatusUnauthorized && errors.Is(err, e.err) {
			return e.err.Error()
		}
	}
	return "authentication required"
}

// ReadBody reads at most 1 MiB of the request body.
func ReadBody(r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if len(b) > maxBodyBytes {
		return nil, fmt.Errorf("%w: body too large", ErrBadRequest)
	}
	return b, nil
}

// Decode reads a JSON body into v. An empty body leaves v unchanged.
func Decode(r *http.Request, v any) error {
	b, err := ReadBody(r)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// Page returns limit and offset query parameters, zero when absent.
func Page(r *http.Request) (limit, offset int32, err error) {
	q := r.URL.Query()
	if limit, err = int32Param(q.Get("limit")); err != nil {
		return 0, 0, err
	}
	if offset, err = int32Param(q.Get("offset")); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func int32Param(s string) (int32, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrBadRequest, s)
	}
	return int32(n), nil
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp. Empty input is nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q is not a date", ErrBadRequest, s)
}
