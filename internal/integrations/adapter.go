package integrations

import "fleetnav/internal/model"

// OrderSource is the minimal interface for external order feeds.
type OrderSource interface {
	Name() string
	// FetchOrders returns the next batch after cursor. An empty returned
	// cursor means the feed is drained.
	FetchOrders(cursor string) (OrderBatch, error)
}

type OrderBatch struct {
	Orders []model.OrderIn
	Cursor string
}
