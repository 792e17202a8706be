// Package notify hands the final in-stock record set to an outbound
// webhook. Delivery problems are logged and swallowed; a flaky webhook
// must never fail a scan.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jondjones-poc/cex-scan-app-sub000/internal/models"
)

// Poster is the outbound side of the HTTP client.
type Poster interface {
	Post(ctx context.Context, url string, body []byte, contentType string) ([]byte, int, error)
}

// Dispatcher posts in-stock alerts to a single webhook URL fixed at
// construction time. An empty URL disables dispatch entirely.
type Dispatcher struct {
	webhookURL string
	poster     Poster
	log        *zap.Logger
}

func NewDispatcher(webhookURL string, poster Poster, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{webhookURL: webhookURL, poster: poster, log: log}
}

type payload struct {
	GeneratedAt time.Time           `json:"generatedAt"`
	Count       int                 `json:"count"`
	Items       []models.ItemRecord `json:"items"`
}

// DispatchInStock sends the in-stock subset of records. Nothing is sent
// when no record is in stock or no webhook is configured.
func (d *Dispatcher) DispatchInStock(ctx context.Context, records []models.ItemRecord) {
	if d.webhookURL == "" {
		return
	}

	inStock := make([]models.ItemRecord, 0, len(records))
	for _, rec := range records {
		if rec.InStock {
			inStock = append(inStock, rec)
		}
	}
	if len(inStock) == 0 {
		return
	}

	body, err := json.Marshal(payload{
		GeneratedAt: time.Now().UTC(),
		Count:       len(inStock),
		Items:       inStock,
	})
	if err != nil {
		d.log.Error("webhook payload marshal failed", zap.Error(err))
		return
	}

	if _, status, err := d.poster.Post(ctx, d.webhookURL, body, "application/json"); err != nil {
		d.log.Warn("webhook dispatch failed",
			zap.Int("status", status), zap.Error(err))
		return
	}
	d.log.Info("webhook dispatched", zap.Int("items", len(inStock)))
}
