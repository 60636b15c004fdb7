// ABOUTME: End-to-end scenarios from sign-in through live dashboard updates to sign-out
// ABOUTME: Exercises the session manager, realtime channel and reconciler against a real socket

package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/authclient"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/reconciler"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/session"
)

// TestStaffDashboardFollowsKitchenEvents signs in as staff and checks that a
// kitchen task pushed by the backend shows up in the dashboard snapshot
func TestStaffDashboardFollowsKitchenEvents(t *testing.T) {
	backend, apiURL := startBackend(t)
	c := newClient(t, apiURL)
	ctx := context.Background()

	sess, err := c.sessions.Establish(ctx, authclient.LoginRequest{Identifier: "crew.lead", Password: "validPass123!"}, models.PersistenceEphemeral)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if sess.User.Role != models.RoleStaff || sess.User.DisplayName != "Crew Lead" {
		t.Fatalf("unexpected identity %+v", sess.User)
	}
	if route := session.RouteForRole(sess.User.Role); route != "/staff" {
		t.Errorf("expected /staff route, got %s", route)
	}

	rec := reconciler.New(sess.User.Role, reconciler.NewHTTPSource(c.api, c.sessions), c.channel)
	defer rec.Close()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("initial refresh failed: %v", err)
	}
	if got := len(rec.Snapshot().Collections["tasks"]); got != 2 {
		t.Fatalf("expected 2 tasks after initial load, got %d", got)
	}

	eventually(t, "channel to connect", func() bool {
		return c.channel.State().State == models.ChannelConnected && backend.Clients() == 1
	})

	if err := backend.Upsert("tasks", "t-9", map[string]any{"status": "queued", "item": "Milkshake", "orderId": "42"}); err != nil {
		t.Fatal(err)
	}
	backend.Publish(models.Event{Name: models.EventKDSTasksCreated, Data: json.RawMessage(`{"taskId":"t-9"}`)})

	eventually(t, "new task to be refreshed", func() bool {
		snap := rec.Snapshot()
		r, ok := findRecord(snap, "tasks", "t-9")
		return ok && r.Status == "queued" && !snap.Stale[models.EntityKey("tasks", "t-9")]
	})

	if err := backend.Upsert("orders", "42", map[string]any{"paymentStatus": "refunded"}); err != nil {
		t.Fatal(err)
	}
	backend.Publish(models.Event{Name: models.EventOrdersPaymentUpdated, Data: json.RawMessage(`{"orderId":42}`)})

	eventually(t, "payment update to land", func() bool {
		r, ok := findRecord(rec.Snapshot(), "orders", "42")
		return ok && r.Fields["paymentStatus"] == "refunded"
	})
}

// TestCustomerIgnoresOtherCustomersOrders checks the subject filter: an event for
// another customer's order never touches the snapshot
func TestCustomerIgnoresOtherCustomersOrders(t *testing.T) {
	backend, apiURL := startBackend(t)
	c := newClient(t, apiURL)
	ctx := context.Background()

	sess, err := c.sessions.Establish(ctx, authclient.LoginRequest{Identifier: "ana", Password: "Customer123!"}, models.PersistenceEphemeral)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	rec := reconciler.New(sess.User.Role, reconciler.NewHTTPSource(c.api, c.sessions), c.channel,
		reconciler.WithSelection(sess.User.ID))
	defer rec.Close()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("initial refresh failed: %v", err)
	}
	eventually(t, "channel to connect", func() bool { return backend.Clients() == 1 })

	before := rec.Snapshot().Version
	backend.Publish(models.Event{Name: models.EventOrderStatusUpdated, Data: json.RawMessage(`{"orderId":"43","customerId":"9","status":"ready"}`)})

	if err := backend.Upsert("orders", "41", map[string]any{"status": "ready"}); err != nil {
		t.Fatal(err)
	}
	backend.Publish(models.Event{Name: models.EventOrderStatusUpdated, Data: json.RawMessage(`{"orderId":"41","customerId":"3","status":"ready"}`)})

	eventually(t, "own order to update", func() bool {
		r, ok := findRecord(rec.Snapshot(), "orders", "41")
		return ok && r.Status == "ready"
	})

	snap := rec.Snapshot()
	if _, ok := findRecord(snap, "orders", "43"); ok {
		t.Error("order of another customer leaked into the snapshot")
	}
	if snap.Stale[models.EntityKey("orders", "43")] {
		t.Error("order of another customer was marked stale")
	}
	if snap.Version <= before {
		t.Errorf("expected version to advance past %d, got %d", before, snap.Version)
	}
}

// TestRevokedTokenEndsSession revokes the token from outside the client; the
// socket drops, the reconnect is refused and the session is invalidated
func TestRevokedTokenEndsSession(t *testing.T) {
	backend, apiURL := startBackend(t)
	c := newClient(t, apiURL)
	ctx := context.Background()

	sess, err := c.sessions.Establish(ctx, authclient.LoginRequest{Identifier: "manager", Password: "Manager123!"}, models.PersistenceDurable)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	var invalidated atomic.Int32
	c.sessions.OnInvalidate(func() { invalidated.Add(1) })

	eventually(t, "channel to connect", func() bool { return backend.Clients() == 1 })

	req, err := http.NewRequest(http.MethodPost, apiURL+"/api/auth/logout", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("logout request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected logout 200, got %d", resp.StatusCode)
	}

	eventually(t, "session invalidation", func() bool { return invalidated.Load() >= 1 })

	if _, err := c.sessions.Require(); models.KindOf(err) != models.ErrUnauthorized {
		t.Errorf("expected unauthorized after revocation, got %v", err)
	}
	if _, ok := c.store.Read(); ok {
		t.Error("credential should be cleared after revocation")
	}
	if state := c.channel.State().State; state != models.ChannelDisconnected {
		t.Errorf("expected channel disconnected, got %s", state)
	}
}

// TestLogoutRevokesServerSide checks that a logged-out token cannot be replayed
func TestLogoutRevokesServerSide(t *testing.T) {
	_, apiURL := startBackend(t)
	c := newClient(t, apiURL)
	ctx := context.Background()

	sess, err := c.sessions.Establish(ctx, authclient.LoginRequest{Identifier: "crew.lead", Password: "validPass123!"}, models.PersistenceEphemeral)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := c.sessions.Logout(ctx); err != nil {
		t.Fatalf("logout returned %v", err)
	}

	req, err := http.NewRequest(http.MethodGet, apiURL+"/api/staff/dashboard", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for revoked token, got %d", resp.StatusCode)
	}
}
