package models

// All lists every table model in dependency order. Used for SQLite dev schemas
// and tests; Postgres schemas come from goose migrations.
func All() []any {
	return []any{
		&User{},
		&Shop{},
		&Item{},
		&Order{},
		&ShopOrder{},
		&ShopOrderItem{},
		&ShopOrderRejection{},
		&DeliveryAssignment{},
		&OutboxEvent{},
	}
}
