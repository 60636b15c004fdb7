// ABOUTME: REST-backed source for dashboard and entity fetches
// ABOUTME: Requests are scoped by role and authenticated with the current session

package reconciler

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/transport"
)

// Source fetches dashboard data
type Source interface {
	Dashboard(ctx context.Context, role models.Role) (models.Dashboard, error)
	Entity(ctx context.Context, role models.Role, collection, id string) (models.Record, error)
}

// SessionProvider yields the session used to authenticate fetches
type SessionProvider interface {
	Require() (*models.Session, error)
}

// HTTPSource reads dashboards from the backend REST API
type HTTPSource struct {
	api      *transport.Client
	sessions SessionProvider
}

// NewHTTPSource creates a source over api
func NewHTTPSource(api *transport.Client, sessions SessionProvider) *HTTPSource {
	return &HTTPSource{api: api, sessions: sessions}
}

func (s *HTTPSource) scope(role models.Role) (string, *models.Session, error) {
	scope := Scope(role)
	if scope == "" {
		return "", nil, models.NewError(models.ErrUnauthorized, fmt.Sprintf("role %q has no dashboard", role))
	}
	sess, err := s.sessions.Require()
	if err != nil {
		return "", nil, err
	}
	return scope, sess, nil
}

func (s *HTTPSource) Dashboard(ctx context.Context, role models.Role) (models.Dashboard, error) {
	scope, sess, err := s.scope(role)
	if err != nil {
		return models.Dashboard{}, err
	}
	var d models.Dashboard
	err = s.api.Do(ctx, transport.Request{
		Path:    "/api/" + scope + "/dashboard",
		Session: sess,
	}, &d)
	if err != nil {
		return models.Dashboard{}, fmt.Errorf("fetch %s dashboard: %w", scope, err)
	}
	return d, nil
}

func (s *HTTPSource) Entity(ctx context.Context, role models.Role, collection, id string) (models.Record, error) {
	scope, sess, err := s.scope(role)
	if err != nil {
		return models.Record{}, err
	}
	var r models.Record
	err = s.api.Do(ctx, transport.Request{
		Path:    "/api/" + scope + "/" + url.PathEscape(collection) + "/" + url.PathEscape(id),
		Session: sess,
	}, &r)
	if err != nil {
		return models.Record{}, fmt.Errorf("fetch %s/%s: %w", collection, id, err)
	}
	if r.ID == "" {
		r.ID = id
	}
	return r, nil
}
