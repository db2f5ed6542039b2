package enums

import "fmt"

// StockEventKind discriminates the immutable stock events.
type StockEventKind string

const (
	StockEventProduction   StockEventKind = "production"
	StockEventPurchase     StockEventKind = "purchase"
	StockEventDistribution StockEventKind = "distribution"
	StockEventAssembly     StockEventKind = "assembly"
	StockEventAdjustment   StockEventKind = "adjustment"
)

var validStockEventKinds = []StockEventKind{
	StockEventProduction,
	StockEventPurchase,
	StockEventDistribution,
	StockEventAssembly,
	StockEventAdjustment,
}

// StockEventKinds returns every kind in display order.
func StockEventKinds() []StockEventKind {
	out := make([]StockEventKind, len(validStockEventKinds))
	copy(out, validStockEventKinds)
	return out
}

func (k StockEventKind) String() string {
	return string(k)
}

func (k StockEventKind) IsValid() bool {
	for _, candidate := range validStockEventKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseStockEventKind converts raw input into a StockEventKind.
func ParseStockEventKind(value string) (StockEventKind, error) {
	for _, candidate := range validStockEventKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock event kind %q", value)
}

// MovementDirection is the sign of a stock event line.
type MovementDirection string

const (
	MovementIn  MovementDirection = "in"
	MovementOut MovementDirection = "out"
)

func (d MovementDirection) IsValid() bool {
	return d == MovementIn || d == MovementOut
}

// LineRole tells apart the lines of a single event, e.g. the consumed
// components and the produced kit of an assembly.
type LineRole string

const (
	LineRoleItem      LineRole = "item"
	LineRoleComponent LineRole = "component"
	LineRoleKit       LineRole = "kit"
)
