// ABOUTME: Shared setup for end-to-end tests against the in-memory dev backend
// ABOUTME: Wires the full client stack the same way the CLI does

package e2e

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/authclient"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/config"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/credstore"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/internal/devserver"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/realtime"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/session"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/transport"
)

// client is one signed-in process: store, transport, channel and session manager
type client struct {
	store    *credstore.Store
	api      *transport.Client
	channel  *realtime.Channel
	sessions *session.Manager
}

func startBackend(t *testing.T) (*devserver.Server, string) {
	t.Helper()
	s, err := devserver.New(devserver.Options{JWTSecret: "e2e-secret"})
	if err != nil {
		t.Fatalf("failed to create dev backend: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts.URL
}

func newClient(t *testing.T, apiURL string) *client {
	t.Helper()
	store, err := credstore.Open(t.TempDir(), t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to open credential store: %v", err)
	}

	c := &client{store: store}
	c.api = transport.New(apiURL, transport.WithTimeout(5*time.Second))
	auth := authclient.New(c.api)
	c.channel = realtime.New(realtime.TokenFunc(store.Token),
		realtime.WithDialer(&realtime.WebsocketDialer{URL: config.RealtimeURLFor(apiURL)}),
		realtime.WithMaxAttempts(3),
		realtime.WithBackoff(10*time.Millisecond, 50*time.Millisecond),
		realtime.WithOnUnauthorized(func(err error) { c.sessions.HandleUnauthorized(err) }),
	)
	c.sessions = session.New(auth, store, session.WithChannel(c.channel))
	c.api.SetOnUnauthorized(c.sessions.HandleUnauthorized)

	t.Cleanup(func() {
		c.channel.Close()
		c.store.Close()
	})
	return c
}

// eventually polls cond until it holds or the deadline passes
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func findRecord(s models.Snapshot, collection, id string) (models.Record, bool) {
	for _, r := range s.Collections[collection] {
		if r.ID == id {
			return r, true
		}
	}
	return models.Record{}, false
}
