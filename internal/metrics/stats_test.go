package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStatsServer_ServesCounters(t *testing.T) {
	EnrollmentDecisions.WithLabelValues("rejected").Inc()
	OverdueMarked.Add(2)

	s := NewStatsServer(":0")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`carescope_enrollment_decisions_total{outcome="rejected"}`,
		"carescope_payments_overdue_marked_total",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
