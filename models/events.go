// ABOUTME: Realtime event and channel connection models
// ABOUTME: Events are named JSON payloads pushed by the server over the realtime channel

package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Event names pushed by the backend
const (
	EventOrderAssigned        = "order:assigned"
	EventKDSTasksCreated      = "kds:tasks:created"
	EventOrdersPaymentUpdated = "orders:payment-updated"
	EventOrderStatusUpdated   = "order:status-updated"
	EventInventoryUpdated     = "inventory:updated"
)

// Event is a single named message received from the realtime channel
type Event struct {
	Name       string          `json:"event"`
	Data       json.RawMessage `json:"data"`
	ReceivedAt time.Time       `json:"-"`
}

// Fields decodes the payload as a JSON object
func (e Event) Fields() (map[string]any, error) {
	if len(e.Data) == 0 {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(e.Data, &fields); err != nil {
		return nil, fmt.Errorf("event %s: payload is not an object: %w", e.Name, err)
	}
	return fields, nil
}

// StringField returns fields[key] as a string. Numbers are formatted without exponent
// so that {"orderId": 42} and {"orderId": "42"} produce the same key.
func StringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// ChannelState is the lifecycle state of the realtime channel
type ChannelState string

const (
	ChannelDisconnected ChannelState = "disconnected"
	ChannelConnecting   ChannelState = "connecting"
	ChannelConnected    ChannelState = "connected"
	ChannelError        ChannelState = "error"
)

// ChannelConnection is a read-only view of the channel's state
type ChannelConnection struct {
	State       ChannelState
	LastError   error
	RetryCount  int
	ConnectedAt time.Time
}
