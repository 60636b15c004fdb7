// ABOUTME: Tests for shared session, error and snapshot models
// ABOUTME: Covers display-name normalization, role parsing and error matching

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNormalizeDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		fallback string
		want     string
	}{
		{"simple", "jane doe", "Guest", "Jane Doe"},
		{"extra whitespace", "  jANE   \t dOE \n", "Guest", "Jane Doe"},
		{"single word", "CHEF", "Guest", "Chef"},
		{"empty uses fallback", "", "Guest", "Guest"},
		{"blank uses fallback", "   \t ", "crew.lead", "crew.lead"},
		{"unicode", "élodie martin", "Guest", "Élodie Martin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDisplayName(tt.input, tt.fallback)
			if got != tt.want {
				t.Errorf("NormalizeDisplayName(%q, %q) = %q, want %q", tt.input, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
	}{
		{"customer", RoleCustomer},
		{"STAFF", RoleStaff},
		{" admin ", RoleAdmin},
		{"shipper", RoleShipper},
		{"guest", RoleGuest},
		{"superuser", RoleGuest},
		{"", RoleGuest},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseRole(tt.input); got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()

	if (&Session{}).Expired(now) {
		t.Error("session without expiry should not be expired")
	}
	if !(&Session{ExpiresAt: now.Add(-time.Second)}).Expired(now) {
		t.Error("session past expiry should be expired")
	}
	if (&Session{ExpiresAt: now.Add(time.Hour)}).Expired(now) {
		t.Error("session before expiry should not be expired")
	}
	var nilSession *Session
	if !nilSession.Expired(now) {
		t.Error("nil session should report expired")
	}
}

func TestSession_AuthorizationHeader(t *testing.T) {
	s := &Session{Token: "abc"}
	if got := s.AuthorizationHeader(); got != "Bearer abc" {
		t.Errorf("AuthorizationHeader() = %q, want %q", got, "Bearer abc")
	}
	s.TokenType = "Token"
	if got := s.AuthorizationHeader(); got != "Token abc" {
		t.Errorf("AuthorizationHeader() = %q, want %q", got, "Token abc")
	}
}

func TestError_IsKind(t *testing.T) {
	err := fmt.Errorf("login: %w", &Error{Kind: ErrRateLimited, RetryAfterSeconds: 30})

	if !errors.Is(err, ErrRateLimited) {
		t.Error("expected errors.Is to match ErrRateLimited")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("did not expect errors.Is to match ErrInvalidCredentials")
	}

	e, ok := AsError(err)
	if !ok {
		t.Fatal("AsError should find *Error in chain")
	}
	if e.RetryAfterSeconds != 30 {
		t.Errorf("RetryAfterSeconds = %d, want 30", e.RetryAfterSeconds)
	}
	if !e.Retryable() {
		t.Error("rate limited errors should be retryable")
	}
	if KindOf(err) != ErrRateLimited {
		t.Errorf("KindOf = %q, want %q", KindOf(err), ErrRateLimited)
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{
		Kind:    ErrValidationFailed,
		Message: "signup rejected",
		Fields:  map[string]string{"password": "too short", "email": "required"},
	}
	got := err.Error()
	if !strings.HasPrefix(got, "signup rejected") {
		t.Errorf("message should start with text, got %q", got)
	}
	if strings.Index(got, "email") > strings.Index(got, "password") {
		t.Errorf("fields should be sorted, got %q", got)
	}

	bare := &Error{Kind: ErrUnauthorized}
	if bare.Error() != "unauthorized" {
		t.Errorf("bare error = %q, want kind name", bare.Error())
	}
}

func TestKindOf_BareKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ErrNoCredential)
	if KindOf(err) != ErrNoCredential {
		t.Errorf("KindOf = %q, want %q", KindOf(err), ErrNoCredential)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain errors should have no kind")
	}
}

func TestStringField(t *testing.T) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(`{"a":"42","b":42,"c":null,"d":"","e":1.5}`), &fields); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"a", "42", true},
		{"b", "42", true},
		{"c", "", false},
		{"d", "", false},
		{"e", "1.5", true},
		{"missing", "", false},
	}
	for _, tt := range tests {
		got, ok := StringField(fields, tt.key)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("StringField(%q) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRecord_UnmarshalJSON(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"id":42,"status":"preparing","table":"T4"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.ID != "42" || r.Status != "preparing" {
		t.Errorf("got id=%q status=%q", r.ID, r.Status)
	}
	if r.Fields["table"] != "T4" {
		t.Errorf("expected table field kept, got %v", r.Fields)
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var again Record
	if err := json.Unmarshal(data, &again); err != nil {
		t.Fatal(err)
	}
	if again.ID != r.ID || again.Fields["table"] != "T4" {
		t.Errorf("re-decoded record = %+v", again)
	}
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	s := NewSnapshot(RoleStaff)
	s.Collections["orders"] = []Record{{ID: "1", Status: "new"}}
	s.Metrics["open"] = 1

	c := s.Clone()
	c.Collections["orders"][0] = Record{ID: "1", Status: "done"}
	c.Metrics["open"] = 0
	c.Stale[EntityKey("orders", "1")] = true

	if s.Collections["orders"][0].Status != "new" {
		t.Error("clone mutation leaked into original collection")
	}
	if s.Metrics["open"] != 1 {
		t.Error("clone mutation leaked into original metrics")
	}
	if s.IsStale("orders", "1") {
		t.Error("clone mutation leaked into original stale set")
	}
	if r, ok := c.Find("orders", "1"); !ok || r.Status != "done" {
		t.Errorf("Find on clone = %+v, %v", r, ok)
	}
}
