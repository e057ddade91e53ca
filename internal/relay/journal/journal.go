// Package journal records delivery attempts and dead-lettered
// deliveries for operator inspection.
package journal

import (
	"context"
	"time"
)

// Attempt is the record of one delivery call to one subscriber.
type Attempt struct {
	ID             string    `bson:"_id" json:"id"`
	ReportID       int64     `bson:"report_id" json:"reportId"`
	SubscriptionID int64     `bson:"subscription_id" json:"subscriptionId"`
	Transport      string    `bson:"transport" json:"transport"`
	Attempt        int       `bson:"attempt" json:"attempt"`
	StatusCode     int       `bson:"status_code" json:"statusCode"`
	ExpectedCode   int       `bson:"expected_code" json:"expectedCode"`
	Success        bool      `bson:"success" json:"success"`
	Error          string    `bson:"error,omitempty" json:"error,omitempty"`
	At             time.Time `bson:"at" json:"at"`
}

// DeadLetter is recorded when a delivery exhausts its retry budget.
type DeadLetter struct {
	ID             string    `bson:"_id" json:"id"`
	ReportID       int64     `bson:"report_id" json:"reportId"`
	SubscriptionID int64     `bson:"subscription_id" json:"subscriptionId"`
	Attempts       int       `bson:"attempts" json:"attempts"`
	LastStatus     int       `bson:"last_status" json:"lastStatus"`
	At             time.Time `bson:"at" json:"at"`
}

// Journal persists delivery history. Implementations must be safe for
// concurrent use; recording failures must never fail a delivery.
type Journal interface {
	RecordAttempt(ctx context.Context, attempt *Attempt) error
	RecordDeadLetter(ctx context.Context, letter *DeadLetter) error
}
