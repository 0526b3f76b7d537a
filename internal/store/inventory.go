package store

import (
	"context"
	"time"
)

// InventoryItem is a stocked product tracked against a restock threshold.
type InventoryItem struct {
	ID                int64     `db:"id"`
	Name              string    `db:"name"`
	Quantity          int       `db:"quantity"`
	LowStockThreshold int       `db:"low_stock_threshold"`
	UpdatedAt         time.Time `db:"updated_at"`
}

const sqlListItemsBelowThreshold = `
SELECT id, name, quantity, low_stock_threshold, updated_at
FROM inventory_items
WHERE quantity <= low_stock_threshold
ORDER BY quantity ASC`

// ListItemsBelowThreshold returns every item at or under its restock
// threshold.
func (s *Store) ListItemsBelowThreshold(ctx context.Context) ([]InventoryItem, error) {
	var items []InventoryItem
	err := s.db.SelectContext(ctx, &items, sqlListItemsBelowThreshold)
	if err != nil {
		return nil, err
	}
	return items, nil
}
