package models

import "github.com/google/uuid"

// ensureID assigns a random id when the caller left it zero.
// Postgres also defaults ids, sqlite does not.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// TradeModels lists the tables owned by the trade core, in dependency order.
// Goose migrations own the postgres schema; sqlite runs derive theirs from these.
func TradeModels() []any {
	return []any{
		&InventoryItem{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&SellRequest{},
		&Quote{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
