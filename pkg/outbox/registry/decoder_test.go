package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/openaid/aid-inventory/pkg/enums"
	"github.com/openaid/aid-inventory/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventKitTemplateChanged, 1, func(payload json.RawMessage) (any, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"action":"created"}`)
	output, err := reg.Decode(enums.EventKitTemplateChanged, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["action"] != "created" {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventKitTemplateChanged, 2, input); err == nil {
		t.Fatalf("expected missing version to fail")
	}
}

func TestDefaultDecoderRegistryStockEvent(t *testing.T) {
	reg := NewDefaultDecoderRegistry()
	itemID := uuid.New()
	raw := json.RawMessage(`{"stock_event_id":"` + uuid.NewString() + `","kind":"distribution","occurred_at":"2026-01-05T10:00:00Z","lines":[{"item_id":"` + itemID.String() + `","direction":"out","role":"item","quantity":"4","balance_after":"6"}]}`)

	output, err := reg.Decode(enums.EventStockRecorded, 1, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	evt, ok := output.(*payloads.StockEventRecorded)
	if !ok {
		t.Fatalf("unexpected type %T", output)
	}
	if evt.Kind != enums.StockEventDistribution || len(evt.Lines) != 1 {
		t.Fatalf("unexpected payload %+v", evt)
	}
	if got := evt.Lines[0].BalanceAfter.String(); got != "6" {
		t.Fatalf("expected balance 6, got %s", got)
	}
	if ids := evt.ItemIDs(); len(ids) != 1 || ids[0] != itemID {
		t.Fatalf("unexpected item ids %v", ids)
	}
}
