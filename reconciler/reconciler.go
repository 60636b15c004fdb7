// ABOUTME: Merges realtime events into a per-role dashboard snapshot
// ABOUTME: Entity refreshes are coalesced per key and ordered by issue sequence

package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/realtime"
	"golang.org/x/sync/singleflight"
)

// Subscriber is the part of the realtime channel the reconciler listens on
type Subscriber interface {
	Subscribe(name string, handler realtime.Handler) *realtime.Subscription
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithSelection sets the subject (usually the identity id) events are filtered against
func WithSelection(subject string) Option {
	return func(r *Reconciler) { r.selection = subject }
}

// WithBindings replaces the role's default event table
func WithBindings(b []Binding) Option {
	return func(r *Reconciler) { r.bindings = b }
}

const dashboardKey = "dashboard"

// Reconciler owns one role's snapshot for the life of a dashboard view
type Reconciler struct {
	role     models.Role
	source   Source
	channel  Subscriber
	bindings []Binding

	ctx      context.Context
	cancel   context.CancelFunc
	group    singleflight.Group
	inflight sync.WaitGroup

	mu         sync.Mutex
	snap       models.Snapshot
	applied    map[string]uint64 // entity key -> issue sequence of the data shown
	staleSeq   map[string]uint64 // entity key -> sequence of the latest event marking it stale
	metricsSeq uint64
	seq        uint64
	generation uint64
	closed     bool
	selection  string
	subs       []*realtime.Subscription
	listeners  []func(models.Snapshot)
}

// New creates a reconciler for role. Call Start to subscribe and load.
func New(role models.Role, source Source, channel Subscriber, opts ...Option) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Reconciler{
		role:     role,
		source:   source,
		channel:  channel,
		bindings: BindingsFor(role),
		ctx:      ctx,
		cancel:   cancel,
		snap:     models.NewSnapshot(role),
		applied:  make(map[string]uint64),
		staleSeq: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start subscribes to the role's events and performs the initial full refresh.
// A failed refresh leaves the subscriptions in place.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is closed")
	}
	r.mu.Unlock()

	var subs []*realtime.Subscription
	if r.channel != nil {
		for _, b := range r.bindings {
			b := b
			subs = append(subs, r.channel.Subscribe(b.Event, func(ev models.Event) {
				r.handle(b, ev)
			}))
		}
	}

	r.mu.Lock()
	r.subs = append(r.subs, subs...)
	r.mu.Unlock()

	slog.Debug("Reconciler started", "role", r.role, "bindings", len(subs))
	return r.Refresh(ctx)
}

// Snapshot returns an independent copy of the current state
func (r *Reconciler) Snapshot() models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.Clone()
}

// OnChange registers fn to receive every published snapshot
func (r *Reconciler) OnChange(fn func(models.Snapshot)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// SetSelection changes the subject events are filtered against
func (r *Reconciler) SetSelection(subject string) {
	r.mu.Lock()
	r.selection = subject
	r.mu.Unlock()
}

// Selection returns the active subject filter
func (r *Reconciler) Selection() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selection
}

// HandleEvent routes an event through the role's bindings. Start wires this to the channel.
func (r *Reconciler) HandleEvent(ev models.Event) {
	for _, b := range r.bindings {
		if b.Event == ev.Name {
			r.handle(b, ev)
		}
	}
}

// Close unsubscribes every handler and drops any response still in flight
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.generation++
	subs := r.subs
	r.subs = nil
	r.listeners = nil
	r.mu.Unlock()

	r.cancel()
	for _, s := range subs {
		s.Unsubscribe()
	}
	slog.Debug("Reconciler closed", "role", r.role)
}

// issue hands out the next sequence number together with the current generation
func (r *Reconciler) issue() (seq, gen uint64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, 0, false
	}
	r.seq++
	return r.seq, r.generation, true
}

func (r *Reconciler) handle(b Binding, ev models.Event) {
	fields, err := ev.Fields()
	if err != nil {
		slog.Warn("Ignoring event", "event", ev.Name, "error", err)
		return
	}

	id, ok := models.StringField(fields, b.KeyField)
	if !ok {
		id, ok = models.StringField(fields, "id")
	}
	if !ok {
		slog.Debug("Ignoring event without entity key", "event", ev.Name)
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if b.SubjectField != "" && r.selection != "" {
		if subject, ok := models.StringField(fields, b.SubjectField); ok && subject != r.selection {
			r.mu.Unlock()
			slog.Debug("Ignoring event for another subject", "event", ev.Name, "id", id, "subject", subject)
			return
		}
	}

	key := models.EntityKey(b.Collection, id)
	r.seq++
	eventSeq := r.seq
	r.staleSeq[key] = eventSeq

	next := r.snap.Clone()
	next.Stale[key] = true
	if _, found := next.Find(b.Collection, id); !found && b.introduces() {
		// placeholder until the refresh lands
		next.Collections[b.Collection] = append(next.Collections[b.Collection], models.Record{ID: id, Fields: fields})
	}
	snap := r.publishLocked(next)
	listeners := r.listeners
	r.inflight.Add(1) // counted under mu: after Close, Wait covers every started refresh
	r.mu.Unlock()
	notify(listeners, snap)

	slog.Debug("Entity marked stale", "event", ev.Name, "effect", b.Effect, "collection", b.Collection, "id", id)
	go func() {
		defer r.inflight.Done()
		r.refreshEntity(b.Collection, id, eventSeq)
	}()
}

// Wait blocks until entity refreshes already started have finished
func (r *Reconciler) Wait() {
	r.inflight.Wait()
}

// refreshEntity fetches one entity until data issued after eventSeq has been applied.
// Concurrent calls for the same key share a single fetch; a caller that joined a fetch
// issued before its event goes round once more.
func (r *Reconciler) refreshEntity(collection, id string, eventSeq uint64) {
	key := models.EntityKey(collection, id)
	for {
		v, err, _ := r.group.Do(key, func() (any, error) {
			r.mu.Lock()
			if r.closed {
				r.mu.Unlock()
				return nil, nil
			}
			if r.applied[key] > r.staleSeq[key] {
				// data newer than the latest event is already shown
				seq := r.applied[key]
				r.mu.Unlock()
				return seq, nil
			}
			r.seq++
			seq, gen := r.seq, r.generation
			r.mu.Unlock()

			rec, err := r.source.Entity(r.ctx, r.role, collection, id)
			if err != nil {
				r.fail(gen, key, err)
				return nil, err
			}
			r.applyEntity(gen, seq, collection, rec)
			return seq, nil
		})
		if err != nil || v == nil {
			return
		}
		if v.(uint64) > eventSeq {
			return
		}
	}
}

// Refresh reloads the whole dashboard. Full refreshes are never coalesced: a caller
// asking after an event must get data fetched after that event.
func (r *Reconciler) Refresh(ctx context.Context) error {
	seq, gen, ok := r.issue()
	if !ok {
		return nil
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.ctx, cancel)
	defer stop()

	d, err := r.source.Dashboard(fetchCtx, r.role)
	if err != nil {
		r.fail(gen, dashboardKey, err)
		return err
	}
	r.applyDashboard(gen, seq, d)
	return nil
}

func (r *Reconciler) applyEntity(gen, seq uint64, collection string, rec models.Record) {
	key := models.EntityKey(collection, rec.ID)

	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return
	}
	if seq <= r.applied[key] {
		// a refresh issued later already landed
		r.mu.Unlock()
		slog.Debug("Dropping superseded entity refresh", "key", key, "seq", seq)
		return
	}

	next := r.snap.Clone()
	rows := next.Collections[collection]
	replaced := false
	for i := range rows {
		if rows[i].ID == rec.ID {
			rows[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		rows = append(rows, rec)
	}
	next.Collections[collection] = rows
	if seq > r.staleSeq[key] {
		delete(next.Stale, key)
	}
	next.Status = ""
	r.applied[key] = seq

	snap := r.publishLocked(next)
	listeners := r.listeners
	r.mu.Unlock()
	notify(listeners, snap)
}

func (r *Reconciler) applyDashboard(gen, seq uint64, d models.Dashboard) {
	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return
	}

	prev := r.snap.Clone()
	next := models.NewSnapshot(r.role)
	next.Stale = prev.Stale
	next.Metrics = prev.Metrics
	if seq > r.metricsSeq {
		next.Metrics = make(map[string]float64, len(d.Metrics))
		for k, v := range d.Metrics {
			next.Metrics[k] = v
		}
		r.metricsSeq = seq
	}

	for name, rows := range d.Collections {
		merged := make([]models.Record, 0, len(rows))
		seen := make(map[string]bool, len(rows))
		for _, rec := range rows {
			key := models.EntityKey(name, rec.ID)
			seen[rec.ID] = true
			if r.applied[key] > seq {
				if cur, ok := r.snap.Find(name, rec.ID); ok {
					merged = append(merged, cur)
					continue
				}
			}
			merged = append(merged, rec)
			r.applied[key] = seq
			if seq > r.staleSeq[key] {
				// fetched after the latest event for this entity
				delete(next.Stale, key)
			}
		}
		// keep entities refreshed after this fetch was issued
		for _, cur := range r.snap.Collections[name] {
			if !seen[cur.ID] && r.applied[models.EntityKey(name, cur.ID)] > seq {
				merged = append(merged, cur)
			}
		}
		next.Collections[name] = merged
	}
	for name, rows := range r.snap.Collections {
		if _, ok := d.Collections[name]; ok {
			continue
		}
		for _, cur := range rows {
			if r.applied[models.EntityKey(name, cur.ID)] > seq {
				next.Collections[name] = append(next.Collections[name], cur)
			}
		}
	}

	next.RefreshedAt = time.Now()
	next.Status = ""
	snap := r.publishLocked(next)
	listeners := r.listeners
	r.mu.Unlock()
	notify(listeners, snap)
}

// fail keeps the prior value and stale marker and surfaces a transient status
func (r *Reconciler) fail(gen uint64, key string, err error) {
	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return
	}
	slog.Warn("Dashboard refresh failed", "role", r.role, "key", key, "error", err)

	next := r.snap.Clone()
	next.Status = fmt.Sprintf("Could not refresh %s: %v", key, err)
	snap := r.publishLocked(next)
	listeners := r.listeners
	r.mu.Unlock()
	notify(listeners, snap)
}

// publishLocked swaps in next; r.mu must be held
func (r *Reconciler) publishLocked(next models.Snapshot) models.Snapshot {
	next.Role = r.role
	next.Version = r.snap.Version + 1
	r.snap = next
	return next
}

func notify(listeners []func(models.Snapshot), snap models.Snapshot) {
	for _, fn := range listeners {
		fn(snap.Clone())
	}
}
