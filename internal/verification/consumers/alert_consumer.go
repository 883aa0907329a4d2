package consumers

import (
	"context"
	"strings"

	"github.com/mediscan/mediscan-backend/internal/verification/repository"
	"github.com/mediscan/mediscan-backend/pkg/errors"
	"github.com/mediscan/mediscan-backend/pkg/logger"
	"github.com/mediscan/mediscan-backend/pkg/messaging"
)

// AlertStore is where received regulator alerts are cached
type AlertStore interface {
	Upsert(ctx context.Context, alert *repository.RegulatoryAlert) error
	Withdraw(ctx context.Context, id string) error
}

// RegulatoryAlertConsumer keeps the local alert cache in step with the
// regulator feed
type RegulatoryAlertConsumer struct {
	consumer *messaging.Consumer
	store    AlertStore
	logger   *logger.Logger
}

// NewRegulatoryAlertConsumer binds a queue to the regulatory exchange
func NewRegulatoryAlertConsumer(rmq *messaging.RabbitMQ, store AlertStore, log *logger.Logger) (*RegulatoryAlertConsumer, error) {
	if err := rmq.DeclareDeadLetterQueue("verification-service"); err != nil {
		return nil, err
	}

	consumer, err := messaging.NewConsumer(rmq, "verification-service.regulatory-alerts", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeRegulatoryEvents, "regulatory.alert.#"); err != nil {
		return nil, err
	}

	c := &RegulatoryAlertConsumer{
		consumer: consumer,
		store:    store,
		logger:   log,
	}

	consumer.RegisterHandler(messaging.EventRegulatoryAlertPublished, c.handleAlertPublished)
	consumer.RegisterHandler(messaging.EventRegulatoryAlertWithdrawn, c.handleAlertWithdrawn)

	return c, nil
}

// Start starts consuming messages
func (c *RegulatoryAlertConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *RegulatoryAlertConsumer) handleAlertPublished(ctx context.Context, event *messaging.Event) error {
	var data messaging.RegulatoryAlertEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	if data.AlertID == "" || data.AlertType == "" {
		c.logger.Warn().Str("event_id", event.ID).Msg("regulatory alert without id or type, ignoring")
		return nil
	}

	c.logger.Info().
		Str("alert_id", data.AlertID).
		Str("gtin", data.GTIN).
		Str("alert_type", data.AlertType).
		Msg("received regulatory alert")

	description := data.Description
	if description == "" {
		description = data.AlertType
	}

	return c.store.Upsert(ctx, &repository.RegulatoryAlert{
		ID:           data.AlertID,
		GTIN:         optional(data.GTIN),
		ProductName:  optional(data.ProductName),
		Manufacturer: optional(data.Manufacturer),
		BatchNumber:  optional(data.BatchNumber),
		AlertType:    strings.ToUpper(data.AlertType),
		Description:  description,
		Severity:     strings.ToUpper(data.Severity),
		Source:       event.Source,
	})
}

func (c *RegulatoryAlertConsumer) handleAlertWithdrawn(ctx context.Context, event *messaging.Event) error {
	var data messaging.RegulatoryAlertWithdrawnEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().Str("alert_id", data.AlertID).Msg("received regulatory alert withdrawal")

	// withdrawing an unknown or already withdrawn alert is a no-op
	if err := c.store.Withdraw(ctx, data.AlertID); err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
