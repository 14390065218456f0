package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreach/events"
	"outreach/utils"
)

// publish emits a domain event. Broker failures never fail the caller.
func publish(ctx context.Context, p events.Publisher, log *logrus.Entry, routingKey string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, routingKey, payload); err != nil {
		log.WithError(err).WithField("routing_key", routingKey).Warn("Failed to publish event")
	}
}

// ensureExists returns NotFound when no live row of model has the id
func ensureExists(ctx context.Context, db *gorm.DB, model any, id uint, resource string) error {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return utils.NewNotFoundError("%s not found", resource)
	}
	return nil
}

// countWhere counts rows of model matching the condition
func countWhere(ctx context.Context, db *gorm.DB, model any, query string, args ...any) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error
	return count, err
}

// requiredName trims a name field and rejects values left empty, which the
// struct tags cannot see
func requiredName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", utils.NewValidationError("name is required")
	}
	return name, nil
}

func orNop(p events.Publisher) events.Publisher {
	if p == nil {
		return events.NopPublisher{}
	}
	return p
}
