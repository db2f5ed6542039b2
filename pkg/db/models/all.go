package models

// All lists every persisted model, in dependency order. Tests use it to
// AutoMigrate SQLite; Postgres is migrated by goose.
func All() []any {
	return []any{
		&User{},
		&Item{},
		&Recipient{},
		&KitTemplate{},
		&KitTemplateComponent{},
		&StockEvent{},
		&StockEventLine{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
