package enums

import "testing"

func TestParseItemCategory(t *testing.T) {
	for _, value := range []string{"raw_material", "in_house_product", "purchased_item", "assembled_kit", "donated"} {
		got, err := ParseItemCategory(value)
		if err != nil {
			t.Fatalf("ParseItemCategory(%q) unexpected error: %v", value, err)
		}
		if got.String() != value {
			t.Fatalf("round trip mismatch: %q vs %q", got, value)
		}
	}
	if _, err := ParseItemCategory("kit"); err == nil {
		t.Fatalf("expected unknown category to fail")
	}
	if !ItemCategoryAssembledKit.IsKit() || ItemCategoryRawMaterial.IsKit() {
		t.Fatalf("IsKit misclassified categories")
	}
}

func TestParseDistributionType(t *testing.T) {
	if _, err := ParseDistributionType("crisis_aid"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseDistributionType("daily"); err == nil {
		t.Fatalf("expected unknown distribution type to fail")
	}
}

func TestParseUserRole(t *testing.T) {
	role, err := ParseUserRole("outreach_coordinator")
	if err != nil || role != UserRoleOutreachCoordinator {
		t.Fatalf("unexpected parse result %q, %v", role, err)
	}
	if UserRole("owner").IsValid() {
		t.Fatalf("owner is not a valid role")
	}
}

func TestStockEventKinds(t *testing.T) {
	kinds := StockEventKinds()
	if len(kinds) != 5 {
		t.Fatalf("expected 5 kinds, got %d", len(kinds))
	}
	kinds[0] = "mutated"
	if StockEventKinds()[0] != StockEventProduction {
		t.Fatalf("StockEventKinds must return a copy")
	}
	if _, err := ParseStockEventKind("assembly"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
