package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/internal/verification/events"
	"github.com/mediscan/mediscan-backend/pkg/logger"
	"github.com/mediscan/mediscan-backend/pkg/messaging"
	"github.com/mediscan/mediscan-backend/pkg/testutil"
)

func TestPublishVerification(t *testing.T) {
	fixtures := testutil.NewFixtureFactory()

	tests := []struct {
		name   string
		status domain.Status
		want   []string
	}{
		{"authentic", domain.StatusAuthentic, []string{messaging.EventVerificationCompleted}},
		{"suspicious", domain.StatusSuspicious, []string{messaging.EventVerificationCompleted}},
		{"counterfeit", domain.StatusCounterfeit, []string{messaging.EventVerificationCompleted, messaging.EventCounterfeitDetected}},
		{"expired", domain.StatusExpired, []string{messaging.EventVerificationCompleted, messaging.EventExpiredDetected}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockPublisher()
			p := events.NewWithPublisher(mock, logger.Nop())

			v := fixtures.Verification(func(v *domain.Verification) { v.Status = tt.status })
			p.PublishVerification(context.Background(), v)

			assert.Equal(t, tt.want, mock.EventTypes())
		})
	}
}

func TestPublishVerification_CounterfeitReasons(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := events.NewWithPublisher(mock, logger.Nop())

	v := testutil.NewFixtureFactory().Verification(func(v *domain.Verification) {
		v.Status = domain.StatusCounterfeit
		v.RiskFactors = []domain.RiskFactor{
			{Type: domain.FactorRegulatoryWarning, Severity: domain.SeverityCritical, Message: "Regulatory alert: COUNTERFEIT"},
			{Type: domain.FactorNearExpiry, Severity: domain.SeverityMedium, Message: "Expires in 12 days"},
		}
	})
	p.PublishVerification(context.Background(), v)

	published := mock.Events()
	require.Len(t, published, 2)

	completed, ok := published[0].Payload.(messaging.VerificationCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"REGULATORY_WARNING", "NEAR_EXPIRY"}, completed.FactorTypes)
	assert.Equal(t, "2026-06-30", completed.ExpiryDate)

	counterfeit, ok := published[1].Payload.(messaging.CounterfeitDetectedEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"Regulatory alert: COUNTERFEIT"}, counterfeit.Reasons)
	assert.Equal(t, v.ID, counterfeit.VerificationID)
}

func TestPublishVerification_NilAndFailingPublisher(t *testing.T) {
	v := testutil.NewFixtureFactory().Verification()

	var nilPublisher *events.VerificationEventPublisher
	assert.NotPanics(t, func() { nilPublisher.PublishVerification(context.Background(), v) })

	mock := testutil.NewMockPublisher()
	mock.Err = errors.New("channel closed")
	p := events.NewWithPublisher(mock, logger.Nop())
	assert.NotPanics(t, func() { p.PublishVerification(context.Background(), v) })
	assert.Len(t, mock.Events(), 1)
}
