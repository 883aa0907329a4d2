package events

import (
	"context"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/pkg/logger"
	"github.com/mediscan/mediscan-backend/pkg/messaging"
)

// EventPublisher is the part of messaging.Publisher the service needs
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// VerificationEventPublisher publishes verification outcomes. A nil
// publisher is valid and does nothing, so the service runs without a broker.
type VerificationEventPublisher struct {
	publisher EventPublisher
	logger    *logger.Logger
}

// NewVerificationEventPublisher declares the verification exchange and
// returns a publisher on it
func NewVerificationEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*VerificationEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeVerificationEvents, "verification-service", log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(publisher, log), nil
}

// NewWithPublisher wraps an existing publisher
func NewWithPublisher(publisher EventPublisher, log *logger.Logger) *VerificationEventPublisher {
	return &VerificationEventPublisher{publisher: publisher, logger: log}
}

// PublishVerification announces a verdict. Counterfeit and expired verdicts
// additionally raise their own events for alerting consumers.
func (p *VerificationEventPublisher) PublishVerification(ctx context.Context, v *domain.Verification) {
	if p == nil {
		return
	}

	factorTypes := make([]string, 0, len(v.RiskFactors))
	for _, f := range v.RiskFactors {
		factorTypes = append(factorTypes, string(f.Type))
	}
	expiry := ""
	if v.ExpiryDate != nil {
		expiry = v.ExpiryDate.String()
	}

	p.publish(ctx, v.ID, messaging.EventVerificationCompleted, messaging.VerificationCompletedEvent{
		VerificationID: v.ID,
		Status:         string(v.Status),
		RiskLevel:      string(v.RiskLevel),
		GTIN:           v.GTIN,
		GTINVerified:   v.GTINVerified,
		BatchNumber:    v.BatchNumber,
		ExpiryDate:     expiry,
		FactorTypes:    factorTypes,
	})

	switch v.Status {
	case domain.StatusCounterfeit:
		reasons := make([]string, 0, len(v.RiskFactors))
		for _, f := range v.RiskFactors {
			if f.Severity == domain.SeverityHigh || f.Severity == domain.SeverityCritical {
				reasons = append(reasons, f.Message)
			}
		}
		p.publish(ctx, v.ID, messaging.EventCounterfeitDetected, messaging.CounterfeitDetectedEvent{
			VerificationID: v.ID,
			GTIN:           v.GTIN,
			BatchNumber:    v.BatchNumber,
			ProductName:    v.ProductName,
			Manufacturer:   v.Manufacturer,
			Reasons:        reasons,
		})

	case domain.StatusExpired:
		p.publish(ctx, v.ID, messaging.EventExpiredDetected, messaging.ExpiredDetectedEvent{
			VerificationID: v.ID,
			GTIN:           v.GTIN,
			BatchNumber:    v.BatchNumber,
			ExpiryDate:     expiry,
		})
	}
}

func (p *VerificationEventPublisher) publish(ctx context.Context, verificationID, eventType string, data interface{}) {
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).
			Str("verification_id", verificationID).
			Str("event_type", eventType).
			Msg("failed to publish event")
	}
}
