package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestNullableUnmarshal(t *testing.T) {
	type payload struct {
		ID   Nullable[uuid.UUID] `json:"id"`
		Name Nullable[string]    `json:"name"`
	}

	var got payload
	if err := json.Unmarshal([]byte(`{"id": "00000000-0000-0000-0000-000000000001"}`), &got); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if !got.ID.Set || got.ID.Value == nil {
		t.Fatalf("expected set uuid, got %v", got.ID)
	}
	if got.ID.Value.String() != "00000000-0000-0000-0000-000000000001" {
		t.Fatalf("unexpected uuid %s", got.ID.Value)
	}
	if got.Name.Set {
		t.Fatalf("absent field should not be set")
	}

	got = payload{}
	if err := json.Unmarshal([]byte(`{"id": null, "name": "x"}`), &got); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !got.ID.Set || got.ID.Value != nil {
		t.Fatalf("expected null to be set but nil, got %v", got.ID)
	}
	if got.Name.Value == nil || *got.Name.Value != "x" {
		t.Fatalf("unexpected name %v", got.Name)
	}

	if err := json.Unmarshal([]byte(`{"id": 5}`), &got); err == nil {
		t.Fatalf("expected type error")
	}
}

func TestNullableMarshal(t *testing.T) {
	out, err := json.Marshal(struct {
		A Nullable[int] `json:"a"`
		B Nullable[int] `json:"b"`
	}{A: Of(3), B: Null[int]()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":3,"b":null}` {
		t.Fatalf("unexpected json %s", out)
	}
}
