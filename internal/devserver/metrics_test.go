// ABOUTME: Tests for dev backend metrics
// ABOUTME: Checks login outcome counters, event counters and the /metrics endpoint

package devserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_LoginOutcomes(t *testing.T) {
	s, ts := newTestServer(t, Options{})

	login(t, ts.URL, "crew.lead", "validPass123!")
	call(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{"identifier": "crew.lead", "password": "nope"})

	if got := testutil.ToFloat64(s.metrics.LoginAttempts.WithLabelValues(outcomeSuccess)); got != 1 {
		t.Errorf("expected 1 successful login, got %v", got)
	}
	if got := testutil.ToFloat64(s.metrics.LoginAttempts.WithLabelValues(outcomeInvalidCredentials)); got != 1 {
		t.Errorf("expected 1 failed login, got %v", got)
	}
}

func TestMetrics_EventsPublished(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	s.Publish(models.Event{Name: models.EventOrderStatusUpdated, Data: json.RawMessage(`{"orderId":"41"}`)})
	s.Publish(models.Event{Name: models.EventOrderStatusUpdated, Data: json.RawMessage(`{"orderId":"42"}`)})

	if got := testutil.ToFloat64(s.metrics.EventsPublished.WithLabelValues(models.EventOrderStatusUpdated)); got != 2 {
		t.Errorf("expected 2 published events, got %v", got)
	}
	if got := testutil.ToFloat64(s.metrics.EventDeliveries); got != 0 {
		t.Errorf("expected no deliveries without clients, got %v", got)
	}
}

func TestMetrics_Endpoint(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	login(t, ts.URL, "manager", "Manager123!")

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	text := string(body)
	for _, want := range []string{
		"fastfood_dev_realtime_clients 0",
		`fastfood_dev_login_attempts_total{outcome="success"} 1`,
		`route="/api/auth/login"`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}
