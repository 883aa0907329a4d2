package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Verification events
	EventVerificationCompleted = "verification.completed"
	EventCounterfeitDetected   = "verification.counterfeit.detected"
	EventExpiredDetected       = "verification.expired.detected"

	// Regulatory events, published by the regulator feed
	EventRegulatoryAlertPublished = "regulatory.alert.published"
	EventRegulatoryAlertWithdrawn = "regulatory.alert.withdrawn"
)

// Exchange names
const (
	ExchangeVerificationEvents = "verification.events"
	ExchangeRegulatoryEvents   = "regulatory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Verification Events

// VerificationCompletedEvent is published for every verdict
type VerificationCompletedEvent struct {
	VerificationID string   `json:"verification_id"`
	Status         string   `json:"status"`
	RiskLevel      string   `json:"risk_level"`
	GTIN           string   `json:"gtin,omitempty"`
	GTINVerified   bool     `json:"gtin_verified"`
	BatchNumber    string   `json:"batch_number,omitempty"`
	ExpiryDate     string   `json:"expiry_date,omitempty"`
	FactorTypes    []string `json:"factor_types,omitempty"`
}

// CounterfeitDetectedEvent is published when a package is judged counterfeit
type CounterfeitDetectedEvent struct {
	VerificationID string   `json:"verification_id"`
	GTIN           string   `json:"gtin,omitempty"`
	BatchNumber    string   `json:"batch_number,omitempty"`
	ProductName    string   `json:"product_name,omitempty"`
	Manufacturer   string   `json:"manufacturer,omitempty"`
	Reasons        []string `json:"reasons"`
}

// ExpiredDetectedEvent is published when a scanned package is past expiry
type ExpiredDetectedEvent struct {
	VerificationID string `json:"verification_id"`
	GTIN           string `json:"gtin,omitempty"`
	BatchNumber    string `json:"batch_number,omitempty"`
	ExpiryDate     string `json:"expiry_date"`
}

// Regulatory Events

// RegulatoryAlertEvent announces a counterfeit, spurious or recall notice
type RegulatoryAlertEvent struct {
	AlertID      string `json:"alert_id"`
	GTIN         string `json:"gtin,omitempty"`
	ProductName  string `json:"product_name,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	BatchNumber  string `json:"batch_number,omitempty"`
	AlertType    string `json:"alert_type"`
	Description  string `json:"description,omitempty"`
	Severity     string `json:"severity,omitempty"`
}

// RegulatoryAlertWithdrawnEvent retracts an earlier alert
type RegulatoryAlertWithdrawnEvent struct {
	AlertID string `json:"alert_id"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
