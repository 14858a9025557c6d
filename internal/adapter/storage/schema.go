package storage

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS inventory (
		item_id VARCHAR(128) PRIMARY KEY,
		quantity INT NOT NULL,
		version INT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS decrement_log (
		id VARCHAR(36) PRIMARY KEY,
		item_id VARCHAR(128) NOT NULL,
		amount INT NOT NULL,
		remaining INT NOT NULL,
		strategy VARCHAR(32) NOT NULL,
		created_at DATETIME NOT NULL,
		INDEX idx_decrement_log_item (item_id)
	)`,
}

// EnsureSchema creates the inventory and journal tables when absent.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SeedItem resets the item to the given quantity at version zero.
func (m *MySQLAdapter) SeedItem(ctx context.Context, itemID string, quantity int) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO inventory (item_id, quantity, version)
		VALUES (?, ?, 0)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), version = 0`,
		itemID, quantity,
	)
	if err != nil {
		return fmt.Errorf("seed item %s: %w", itemID, err)
	}
	return nil
}
