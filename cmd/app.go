// ABOUTME: Builds the client stack shared by every command from configuration
// ABOUTME: Credential store, REST transport, auth client, realtime channel and session manager

package cmd

import (
	"fmt"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/authclient"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/config"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/credstore"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/realtime"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/session"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/transport"
)

type app struct {
	cfg      *config.Config
	store    *credstore.Store
	api      *transport.Client
	auth     *authclient.Client
	channel  *realtime.Channel // nil unless the command needs realtime updates
	sessions *session.Manager
}

// newApp wires the stack. withRealtime attaches a channel that the session manager
// opens on sign-in and closes on invalidation.
func newApp(cfg *config.Config, withRealtime bool) (*app, error) {
	var dial transport.DialContextFunc
	if cfg.AllProxy != "" {
		d, err := transport.NewSOCKS5DialContext(cfg.AllProxy)
		if err != nil {
			return nil, fmt.Errorf("failed to configure proxy: %w", err)
		}
		dial = d
	}

	store, err := credstore.Open(cfg.ConfigDir, cfg.RuntimeDir, cfg.CredentialKey)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: store}
	a.api = transport.New(cfg.APIURL,
		transport.WithTimeout(cfg.HTTPTimeout),
		transport.WithDialContext(dial),
	)
	a.auth = authclient.New(a.api, authclient.WithDefaultDisplayName(cfg.DefaultDisplayName))

	var opts []session.Option
	if withRealtime {
		a.channel = realtime.New(realtime.TokenFunc(store.Token),
			realtime.WithDialer(&realtime.WebsocketDialer{URL: cfg.RealtimeURL, NetDialContext: dial}),
			realtime.WithMaxAttempts(cfg.ReconnectAttempts),
			realtime.WithBackoff(cfg.ReconnectDelay, cfg.ReconnectMaxDelay),
			realtime.WithOnUnauthorized(func(err error) { a.sessions.HandleUnauthorized(err) }),
		)
		opts = append(opts, session.WithChannel(a.channel))
	}
	a.sessions = session.New(a.auth, store, opts...)
	a.api.SetOnUnauthorized(a.sessions.HandleUnauthorized)

	return a, nil
}

// Close stops the realtime channel and releases the credential store
func (a *app) Close() {
	if a.channel != nil {
		a.channel.Close()
	}
	a.store.Close()
}
