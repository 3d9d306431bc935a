package booking

import (
	"testing"
	"time"
)

func TestParseCreateRequest_Valid(t *testing.T) {
	v, err := ParseCreateRequest(CreateRequest{
		ProviderID: testProvider,
		Date:       "2026-03-10T14:25:00+02:00",
	})
	if err != nil {
		t.Fatalf("ParseCreateRequest failed: %v", err)
	}
	if v.ProviderID != testProvider {
		t.Fatalf("unexpected provider id %q", v.ProviderID)
	}
	want := time.Date(2026, 3, 10, 12, 25, 0, 0, time.UTC)
	if !v.Date.Equal(want) {
		t.Fatalf("expected %s, got %s", want, v.Date)
	}
}

func TestParseCreateRequest_MissingFields(t *testing.T) {
	_, err := ParseCreateRequest(CreateRequest{})
	e := rejection(t, err)
	if e.Code != CodeInvalidRequest {
		t.Fatalf("expected invalid_request, got %s", e.Code)
	}
	if len(e.Fields) != 2 {
		t.Fatalf("expected provider_id and date reported, got %v", e.Fields)
	}
	seen := map[string]bool{}
	for _, f := range e.Fields {
		seen[f] = true
	}
	if !seen["provider_id"] || !seen["date"] {
		t.Fatalf("expected json field names, got %v", e.Fields)
	}
}

func TestParseCreateRequest_BadUUID(t *testing.T) {
	_, err := ParseCreateRequest(CreateRequest{
		ProviderID: "42",
		Date:       "2026-03-10T14:00:00Z",
	})
	e := rejection(t, err)
	if e.Code != CodeInvalidRequest {
		t.Fatalf("expected invalid_request, got %s", e.Code)
	}
	if len(e.Fields) != 1 || e.Fields[0] != "provider_id" {
		t.Fatalf("expected only provider_id reported, got %v", e.Fields)
	}
}

func TestParseCreateRequest_BadDate(t *testing.T) {
	_, err := ParseCreateRequest(CreateRequest{
		ProviderID: testProvider,
		Date:       "10/03/2026 14:00",
	})
	e := rejection(t, err)
	if e.Code != CodeInvalidRequest {
		t.Fatalf("expected invalid_request, got %s", e.Code)
	}
	if len(e.Fields) != 1 || e.Fields[0] != "date" {
		t.Fatalf("expected only date reported, got %v", e.Fields)
	}
}
