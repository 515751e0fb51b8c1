package models

// All lists every persisted model in dependency order. It backs SQLite
// auto-migration in development and the in-memory databases used by tests.
func All() []any {
	return []any{
		&Category{},
		&Product{},
		&Variation{},
		&GalleryImage{},
		&CartLine{},
		&Payment{},
		&Order{},
		&OrderLine{},
		&Review{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
