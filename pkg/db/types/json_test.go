package dbtypes

import "testing"

func TestJSONScanAcceptsTextAndBytes(t *testing.T) {
	var fromText JSON
	if err := fromText.Scan(`{"a":1}`); err != nil {
		t.Fatalf("scan text: %v", err)
	}
	var fromBytes JSON
	if err := fromBytes.Scan([]byte(`{"a":1}`)); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if string(fromText) != string(fromBytes) {
		t.Fatalf("scans differ: %s vs %s", fromText, fromBytes)
	}
	if err := fromText.Scan(42); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestJSONDecode(t *testing.T) {
	doc := MustJSON(map[string]string{"supplier_name": "Acme"})
	var out struct {
		SupplierName string `json:"supplier_name"`
	}
	if err := doc.Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SupplierName != "Acme" {
		t.Fatalf("unexpected supplier %q", out.SupplierName)
	}

	var empty JSON
	if err := empty.Decode(&out); err != nil {
		t.Fatalf("empty decode should be a no-op: %v", err)
	}
	if v, _ := empty.Value(); v != nil {
		t.Fatalf("empty value should be NULL, got %v", v)
	}
}
