package model

import "time"

// DateLayout is the ISO calendar date format used for appointment dates.
const DateLayout = "2006-01-02"

// Identity is the resolved caller. The zero value means anonymous.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

func (i Identity) IsZero() bool { return i.UserID == "" }

type TimeSlot struct {
	Time     string
	IsBooked bool
}

type AvailabilityView struct {
	Date  string
	Slots []TimeSlot
}

type Appointment struct {
	ID            string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	Phone         string
	Date          string
	Time          string
	Note          string
	CreatedAt     time.Time
}

type IntentState string

const (
	IntentCreated   IntentState = "created"
	IntentSucceeded IntentState = "succeeded"
	IntentFailed    IntentState = "failed"
)

// Terminal states never transition again.
func (s IntentState) Terminal() bool {
	return s == IntentSucceeded || s == IntentFailed
}

type IntentMetadata struct {
	OrderName  string
	CustomerID string
}

type PaymentIntent struct {
	ID               string
	AmountMinorUnits int64
	Currency         string
	Metadata         IntentMetadata
	State            IntentState
	// ClientSecret is handed to the paying client once and never persisted.
	ClientSecret string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type EventType string

const (
	EventIntentCreated   EventType = "payment_intent.created"
	EventIntentSucceeded EventType = "payment_intent.succeeded"
	EventIntentFailed    EventType = "payment_intent.payment_failed"
)

type WebhookEvent struct {
	ID       string
	Type     EventType
	IntentID string
}

type Order struct {
	ID               string
	IntentID         string
	OrderName        string
	CustomerID       string
	AmountMinorUnits int64
	Currency         string
	PaymentOption    string
	CreatedAt        time.Time
}
