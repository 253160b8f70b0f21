package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/store"
)

// Classify maps a product's stock level against its thresholds to an alert
// type. Empty string means the level is healthy. Out-of-stock wins over
// low-stock; overstock only applies when a max level is configured.
func Classify(currentStock int, minLevel int, maxLevel int) string {
	switch {
	case currentStock == 0:
		return domain.AlertOutOfStock
	case currentStock < minLevel:
		return domain.AlertLowStock
	case maxLevel > 0 && currentStock > maxLevel:
		return domain.AlertOverstock
	default:
		return ""
	}
}

// Generator turns stock threshold crossings into alert rows. It is invoked
// after every stock mutation; insert failures never fail the surrounding
// operation, they are only logged.
type Generator struct {
	repo   store.Repository
	log    *logrus.Logger
	dedupe bool
}

func NewGenerator(repo store.Repository, log *logrus.Logger, dedupe bool) *Generator {
	return &Generator{repo: repo, log: log, dedupe: dedupe}
}

// Regenerate classifies the product and, when a threshold is crossed, inserts
// an alert row. Repeated crossings accumulate repeated rows unless the
// generator was built with dedupe, in which case an unresolved alert of the
// same type for the same product suppresses the insert.
func (g *Generator) Regenerate(ctx context.Context, product domain.Product, settings *domain.Settings) {
	alertType := Classify(product.CurrentStock, product.MinStockLevel, product.MaxStockLevel)
	if alertType == "" {
		return
	}
	if alertType == domain.AlertOverstock && settings != nil && !settings.EnableOverstockAlerts {
		return
	}

	if g.dedupe {
		exists, err := g.repo.HasUnresolvedAlert(ctx, product.BusinessID, product.ID, alertType)
		if err != nil {
			g.log.WithFields(logrus.Fields{
				"business_id": product.BusinessID,
				"product_id":  product.ID,
			}).WithError(err).Warn("alert dedupe check failed")
		} else if exists {
			return
		}
	}

	alert := domain.Alert{
		ID:         uuid.NewString(),
		BusinessID: product.BusinessID,
		ProductID:  product.ID,
		AlertType:  alertType,
		Message:    message(product, alertType),
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := g.repo.CreateAlert(ctx, alert); err != nil {
		g.log.WithFields(logrus.Fields{
			"business_id": product.BusinessID,
			"product_id":  product.ID,
			"alert_type":  alertType,
		}).WithError(err).Warn("alert insert failed")
	}
}

func message(product domain.Product, alertType string) string {
	switch alertType {
	case domain.AlertOutOfStock:
		return fmt.Sprintf("%s is out of stock", product.Name)
	case domain.AlertLowStock:
		return fmt.Sprintf("%s is low on stock (%d left, minimum %d)", product.Name, product.CurrentStock, product.MinStockLevel)
	case domain.AlertOverstock:
		return fmt.Sprintf("%s is overstocked (%d on hand, maximum %d)", product.Name, product.CurrentStock, product.MaxStockLevel)
	default:
		return product.Name
	}
}
