// ABOUTME: Tests for the dev backend HTTP API
// ABOUTME: Exercises auth flows, role scopes, rate limiting and the realtime hub over httptest

package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	if opts.JWTSecret == "" {
		opts.JWTSecret = "test-secret"
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

type response struct {
	Status int
	Header http.Header
	Body   map[string]any
}

func (r response) data() map[string]any {
	d, _ := r.Body["data"].(map[string]any)
	return d
}

func call(t *testing.T, method, url, token string, body any) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	out := response{Status: resp.StatusCode, Header: resp.Header}
	json.NewDecoder(resp.Body).Decode(&out.Body)
	return out
}

func login(t *testing.T, base, identifier, password string) string {
	t.Helper()
	resp := call(t, http.MethodPost, base+"/api/auth/login", "", map[string]string{"identifier": identifier, "password": password})
	if resp.Status != http.StatusOK {
		t.Fatalf("login %s: status %d body %v", identifier, resp.Status, resp.Body)
	}
	token, _ := resp.data()["token"].(string)
	if token == "" {
		t.Fatal("expected token in login response")
	}
	return token
}

func TestLogin_Success(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp := call(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{"identifier": "crew.lead", "password": "validPass123!"})
	if resp.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	user, _ := resp.data()["user"].(map[string]any)
	if user["role"] != "staff" || user["username"] != "crew.lead" {
		t.Errorf("unexpected user %v", user)
	}
	if resp.data()["expiresIn"].(float64) != 3600 {
		t.Errorf("expiresIn = %v", resp.data()["expiresIn"])
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestLogin_EmailIdentifier(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	login(t, ts.URL, "CREW.LEAD@example.com", "validPass123!")
}

func TestLogin_CaptchaAfterFailures(t *testing.T) {
	_, ts := newTestServer(t, Options{CaptchaAfter: 2, RateLimit: 100})
	bad := map[string]string{"identifier": "crew.lead", "password": "nope"}

	for i := 0; i < 2; i++ {
		if resp := call(t, http.MethodPost, ts.URL+"/api/auth/login", "", bad); resp.Status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, resp.Status)
		}
	}

	resp := call(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{"identifier": "crew.lead", "password": "validPass123!"})
	if resp.Status != http.StatusForbidden || resp.Body["requireCaptcha"] != true {
		t.Fatalf("expected captcha demand, got %d %v", resp.Status, resp.Body)
	}

	resp = call(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"identifier": "crew.lead", "password": "validPass123!", "captchaToken": "solved",
	})
	if resp.Status != http.StatusOK {
		t.Fatalf("expected success with captcha, got %d", resp.Status)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	_, ts := newTestServer(t, Options{RateLimit: 2, CaptchaAfter: -1})
	bad := map[string]string{"identifier": "ana", "password": "nope"}

	call(t, http.MethodPost, ts.URL+"/api/auth/login", "", bad)
	call(t, http.MethodPost, ts.URL+"/api/auth/login", "", bad)
	resp := call(t, http.MethodPost, ts.URL+"/api/auth/login", "", bad)

	if resp.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Status)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if secs, _ := resp.Body["retryAfterSeconds"].(float64); secs < 1 || secs > 60 {
		t.Errorf("retryAfterSeconds = %v", resp.Body["retryAfterSeconds"])
	}
}

func TestDashboard_RoleScopes(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	staff := login(t, ts.URL, "crew.lead", "validPass123!")

	tests := []struct {
		path   string
		token  string
		status int
	}{
		{"/api/staff/dashboard", staff, http.StatusOK},
		{"/api/admin/dashboard", staff, http.StatusForbidden},
		{"/api/staff/dashboard", "", http.StatusUnauthorized},
		{"/api/staff/dashboard", "garbage", http.StatusUnauthorized},
		{"/api/staff/orders/42", staff, http.StatusOK},
		{"/api/staff/inventory/buns", staff, http.StatusNotFound},
	}
	for _, tt := range tests {
		if resp := call(t, http.MethodGet, ts.URL+tt.path, tt.token, nil); resp.Status != tt.status {
			t.Errorf("GET %s: status %d, want %d", tt.path, resp.Status, tt.status)
		}
	}

	resp := call(t, http.MethodGet, ts.URL+"/api/staff/dashboard", staff, nil)
	collections, _ := resp.data()["collections"].(map[string]any)
	if _, ok := collections["tasks"]; !ok {
		t.Errorf("staff dashboard should include tasks: %v", collections)
	}
	if _, ok := collections["inventory"]; ok {
		t.Error("staff dashboard should not include inventory")
	}
}

func TestDashboard_CustomerSeesOwnOrders(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	ana := login(t, ts.URL, "ana", "Customer123!")

	resp := call(t, http.MethodGet, ts.URL+"/api/customer/dashboard", ana, nil)
	collections, _ := resp.data()["collections"].(map[string]any)
	orders, _ := collections["orders"].([]any)
	if len(orders) != 2 {
		t.Fatalf("expected 2 own orders, got %d", len(orders))
	}

	if resp := call(t, http.MethodGet, ts.URL+"/api/customer/orders/43", ana, nil); resp.Status != http.StatusNotFound {
		t.Errorf("foreign order: status %d, want 404", resp.Status)
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	token := login(t, ts.URL, "crew.lead", "validPass123!")

	if resp := call(t, http.MethodPost, ts.URL+"/api/auth/logout", token, nil); resp.Status != http.StatusOK {
		t.Fatalf("logout: status %d", resp.Status)
	}
	if resp := call(t, http.MethodGet, ts.URL+"/api/staff/dashboard", token, nil); resp.Status != http.StatusUnauthorized {
		t.Errorf("revoked token: status %d, want 401", resp.Status)
	}
}

func TestSignup(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp := call(t, http.MethodPost, ts.URL+"/api/auth/signup", "", map[string]string{
		"username": "newbie", "email": "newbie@example.com", "password": "Str0ng!pass",
	})
	if resp.Status != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", resp.Status, resp.Body)
	}

	resp = call(t, http.MethodPost, ts.URL+"/api/auth/signup", "", map[string]string{
		"username": "crew.lead", "email": "other@example.com", "password": "Str0ng!pass",
	})
	if resp.Status != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate: expected 422, got %d", resp.Status)
	}
	errs, _ := resp.Body["errors"].(map[string]any)
	if errs["username"] != "is already taken" {
		t.Errorf("unexpected field errors %v", errs)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	s, ts := newTestServer(t, Options{})

	if resp := call(t, http.MethodPost, ts.URL+"/api/auth/forgot-password", "", map[string]string{"identifier": "missing@x.com"}); resp.Status != http.StatusNotFound {
		t.Errorf("unknown account: status %d, want 404", resp.Status)
	}
	if resp := call(t, http.MethodPost, ts.URL+"/api/auth/forgot-password", "", map[string]string{"identifier": "ana"}); resp.Status != http.StatusOK {
		t.Errorf("known account: status %d, want 200", resp.Status)
	}

	ana, _ := s.users.Find("ana")
	token := s.resets.issue(ana.ID)

	resp := call(t, http.MethodPost, ts.URL+"/api/auth/reset-password", "", map[string]string{"token": token, "password": "Fresh!pass9"})
	if resp.Status != http.StatusOK {
		t.Fatalf("reset: status %d %v", resp.Status, resp.Body)
	}
	login(t, ts.URL, "ana", "Fresh!pass9")

	// tokens are single use
	resp = call(t, http.MethodPost, ts.URL+"/api/auth/reset-password", "", map[string]string{"token": token, "password": "Another!pass9"})
	if resp.Status != http.StatusBadRequest {
		t.Errorf("reused token: status %d, want 400", resp.Status)
	}
}

func TestVerifyEmail(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	ana, _ := s.users.Find("ana")
	token := s.verifications.issue(ana.ID)

	if resp := call(t, http.MethodGet, ts.URL+"/api/auth/verify-email?token=bogus", "", nil); resp.Status != http.StatusBadRequest {
		t.Errorf("bogus token: status %d", resp.Status)
	}
	if resp := call(t, http.MethodGet, ts.URL+"/api/auth/verify-email?token="+token, "", nil); resp.Status != http.StatusOK {
		t.Errorf("valid token: status %d", resp.Status)
	}
	if resp := call(t, http.MethodPost, ts.URL+"/api/auth/resend-verification", "", map[string]string{"identifier": "ana"}); resp.Status != http.StatusOK {
		t.Errorf("resend: status %d", resp.Status)
	}
}

func TestDevEvents(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	admin := login(t, ts.URL, "manager", "Manager123!")
	staff := login(t, ts.URL, "crew.lead", "validPass123!")

	body := map[string]any{
		"event":      models.EventOrderStatusUpdated,
		"data":       map[string]any{"orderId": "42"},
		"collection": "orders",
		"id":         "42",
		"fields":     map[string]any{"status": "completed"},
	}
	if resp := call(t, http.MethodPost, ts.URL+"/api/dev/events", staff, body); resp.Status != http.StatusForbidden {
		t.Errorf("staff publish: status %d, want 403", resp.Status)
	}
	if resp := call(t, http.MethodPost, ts.URL+"/api/dev/events", admin, body); resp.Status != http.StatusAccepted {
		t.Fatalf("admin publish: status %d", resp.Status)
	}

	row, _ := s.data.Get("orders", "42")
	if row["status"] != "completed" {
		t.Errorf("expected order 42 completed, got %v", row["status"])
	}
}

func wsURL(base, token string) string {
	return "ws" + strings.TrimPrefix(base, "http") + "/ws?token=" + token
}

func TestWebsocket_RejectsBadToken(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "bad"), nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 handshake response, got %v", resp)
	}
}

func TestWebsocket_ReceivesBroadcast(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	token := login(t, ts.URL, "crew.lead", "validPass123!")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := s.Publish(models.Event{Name: models.EventKDSTasksCreated, Data: json.RawMessage(`{"taskId":"t-9"}`)}); n != 1 {
		t.Fatalf("expected delivery to 1 client, got %d", n)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev models.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Name != models.EventKDSTasksCreated || string(ev.Data) != `{"taskId":"t-9"}` {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestWebsocket_LogoutDisconnects(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	token := login(t, ts.URL, "crew.lead", "validPass123!")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	call(t, http.MethodPost, ts.URL+"/api/auth/logout", token, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to close after logout")
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	seed := "users:\n  - username: fry.cook\n    password: Fry!cook1\n    role: staff\n    fullName: fry cook\n"
	if err := os.WriteFile(path, []byte(seed), 0600); err != nil {
		t.Fatal(err)
	}

	users, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if len(users) != 1 || users[0].Username != "fry.cook" || users[0].Role != "staff" {
		t.Fatalf("unexpected seed %+v", users)
	}

	dir, err := NewUsers(users, 0)
	if err != nil {
		t.Fatalf("NewUsers: %v", err)
	}
	if _, ok := dir.Authenticate("fry.cook", "Fry!cook1"); !ok {
		t.Error("expected seeded password to authenticate")
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	os.WriteFile(empty, []byte("users: []\n"), 0600)
	if _, err := LoadSeed(empty); err == nil {
		t.Error("expected error for empty seed")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Now()
	rl.now = func() time.Time { return now }

	if ok, _ := rl.Allow("k"); !ok {
		t.Fatal("first attempt should pass")
	}
	ok, retry := rl.Allow("k")
	if ok || retry != time.Minute {
		t.Fatalf("second attempt: ok=%v retry=%s", ok, retry)
	}

	now = now.Add(time.Minute)
	if ok, _ := rl.Allow("k"); !ok {
		t.Error("new window should pass")
	}
}
