// ABOUTME: In-memory restaurant data served by the dev backend dashboards
// ABOUTME: Orders, kitchen tasks and inventory items keyed by collection and id

package devserver

import (
	"fmt"
	"maps"
	"sort"
	"strconv"
	"sync"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
)

// Row is one entity as served to clients
type Row map[string]any

func (r Row) id() string {
	id, _ := models.StringField(r, "id")
	return id
}

// Data holds every collection
type Data struct {
	mu          sync.RWMutex
	collections map[string]map[string]Row
}

// scopeCollections lists which collections each dashboard scope may read
var scopeCollections = map[string][]string{
	"admin":    {"orders", "tasks", "inventory"},
	"staff":    {"orders", "tasks"},
	"customer": {"orders"},
}

// NewData returns the default demo data set
func NewData() *Data {
	d := &Data{collections: map[string]map[string]Row{
		"orders":    {},
		"tasks":     {},
		"inventory": {},
	}}
	seed := []struct {
		collection string
		row        Row
	}{
		{"orders", Row{"id": "41", "status": "preparing", "customerId": "3", "customerName": "Ana Souza", "total": 12.5, "paymentStatus": "paid"}},
		{"orders", Row{"id": "42", "status": "delivering", "customerId": "3", "customerName": "Ana Souza", "assigneeId": "1", "total": 8.9, "paymentStatus": "paid"}},
		{"orders", Row{"id": "43", "status": "pending", "customerId": "9", "customerName": "Walk-in", "total": 4.0, "paymentStatus": "unpaid"}},
		{"tasks", Row{"id": "t-1", "orderId": "41", "status": "preparing", "item": "Double burger"}},
		{"tasks", Row{"id": "t-2", "orderId": "41", "status": "queued", "item": "Large fries"}},
		{"inventory", Row{"id": "buns", "name": "Burger buns", "status": "ok", "quantity": 180.0}},
		{"inventory", Row{"id": "fries", "name": "Frozen fries", "status": "low", "quantity": 12.0}},
	}
	for _, s := range seed {
		d.collections[s.collection][s.row.id()] = s.row
	}
	return d
}

// Get returns a copy of one row
func (d *Data) Get(collection, id string) (Row, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	row, ok := d.collections[collection][id]
	if !ok {
		return nil, false
	}
	return maps.Clone(row), true
}

// Upsert merges fields into the row, creating it when absent
func (d *Data) Upsert(collection, id string, fields map[string]any) (Row, error) {
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	rows, ok := d.collections[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	row, ok := rows[id]
	if !ok {
		row = Row{"id": id}
	}
	for k, v := range fields {
		if k != "id" {
			row[k] = v
		}
	}
	rows[id] = row
	return maps.Clone(row), nil
}

// list returns rows in collection accepted by keep, sorted by id
func (d *Data) list(collection string, keep func(Row) bool) []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []Row{}
	for _, row := range d.collections[collection] {
		if keep == nil || keep(row) {
			out = append(out, maps.Clone(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].id(), out[j].id()) })
	return out
}

// Dashboard builds the payload for scope as seen by user
func (d *Data) Dashboard(scope string, user *User) map[string]any {
	collections := map[string][]Row{}
	var keep func(Row) bool
	if scope == "customer" {
		keep = ownedBy(user.ID)
	}
	for _, name := range scopeCollections[scope] {
		collections[name] = d.list(name, keep)
	}

	metrics := map[string]float64{}
	orders := collections["orders"]
	switch scope {
	case "admin":
		var revenue float64
		for _, o := range orders {
			if o["paymentStatus"] == "paid" {
				revenue += number(o["total"])
			}
		}
		metrics["totalOrders"] = float64(len(orders))
		metrics["revenue"] = revenue
		metrics["lowStockItems"] = float64(countStatus(collections["inventory"], "low", "out"))
	case "staff":
		metrics["openOrders"] = float64(len(orders) - countStatus(orders, "completed", "cancelled"))
		metrics["openTasks"] = float64(len(collections["tasks"]) - countStatus(collections["tasks"], "done"))
	case "customer":
		metrics["activeOrders"] = float64(len(orders) - countStatus(orders, "completed", "cancelled"))
	}

	return map[string]any{"metrics": metrics, "collections": collections}
}

// Visible reports whether scope may read the row
func Visible(scope, collection string, row Row, user *User) bool {
	allowed := false
	for _, c := range scopeCollections[scope] {
		if c == collection {
			allowed = true
		}
	}
	if !allowed {
		return false
	}
	if scope == "customer" {
		return ownedBy(user.ID)(row)
	}
	return true
}

func ownedBy(userID string) func(Row) bool {
	return func(r Row) bool {
		owner, _ := models.StringField(r, "customerId")
		return owner == userID
	}
}

func countStatus(rows []Row, statuses ...string) int {
	n := 0
	for _, r := range rows {
		status, _ := models.StringField(r, "status")
		for _, s := range statuses {
			if status == s {
				n++
				break
			}
		}
	}
	return n
}

func number(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}

// lessID orders numeric ids numerically and everything else lexically
func lessID(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
