// ABOUTME: Per-role tables mapping realtime events onto dashboard collections
// ABOUTME: Each binding names the entity key field and the optional subject filter field

package reconciler

import "github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"

// Effect is what an event implies for its entity
type Effect string

const (
	EffectAssignment Effect = "assignment"
	EffectCreated    Effect = "created"
	EffectStatus     Effect = "status"
)

// Binding routes one event name to one collection
type Binding struct {
	Event        string
	Collection   string
	KeyField     string // payload field holding the entity id; "id" is tried as fallback
	SubjectField string // payload field compared with the selection; empty disables filtering
	Effect       Effect
}

// introduces reports whether the event can announce an entity the snapshot has never seen
func (b Binding) introduces() bool {
	return b.Effect == EffectAssignment || b.Effect == EffectCreated
}

var staffBindings = []Binding{
	{Event: models.EventOrderAssigned, Collection: "orders", KeyField: "orderId", SubjectField: "assigneeId", Effect: EffectAssignment},
	{Event: models.EventKDSTasksCreated, Collection: "tasks", KeyField: "taskId", Effect: EffectCreated},
	{Event: models.EventOrdersPaymentUpdated, Collection: "orders", KeyField: "orderId", Effect: EffectStatus},
}

var adminBindings = []Binding{
	{Event: models.EventOrdersPaymentUpdated, Collection: "orders", KeyField: "orderId", Effect: EffectStatus},
	{Event: models.EventOrderStatusUpdated, Collection: "orders", KeyField: "orderId", Effect: EffectStatus},
	{Event: models.EventKDSTasksCreated, Collection: "tasks", KeyField: "taskId", Effect: EffectCreated},
	{Event: models.EventInventoryUpdated, Collection: "inventory", KeyField: "itemId", Effect: EffectStatus},
}

var customerBindings = []Binding{
	{Event: models.EventOrderStatusUpdated, Collection: "orders", KeyField: "orderId", SubjectField: "customerId", Effect: EffectStatus},
	{Event: models.EventOrdersPaymentUpdated, Collection: "orders", KeyField: "orderId", SubjectField: "customerId", Effect: EffectStatus},
}

// BindingsFor returns the event table for role; guests get none
func BindingsFor(role models.Role) []Binding {
	var src []Binding
	switch role {
	case models.RoleStaff, models.RoleShipper:
		src = staffBindings
	case models.RoleAdmin:
		src = adminBindings
	case models.RoleCustomer:
		src = customerBindings
	}
	return append([]Binding(nil), src...)
}

// Scope is the REST path segment serving role's dashboard
func Scope(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return "admin"
	case models.RoleStaff, models.RoleShipper:
		return "staff"
	case models.RoleCustomer:
		return "customer"
	default:
		return ""
	}
}
