package types

import (
	"errors"
	"fmt"
	"time"
)

// FallbackTagID is the tag used to resolve the audience for reports that
// carry no tags ("uncategorized").
const FallbackTagID = 20

// FatalError represents a message-level error that must not be retried.
// The consumption loop terminates the message instead of requeueing it.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal checks if an error is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// User is a platform user referenced by a report.
type User struct {
	ID         int64     `json:"id"`
	InsertDate time.Time `json:"insertDate,omitempty"`
}

// Tag classifies a report. A tag belongs to exactly one category; the
// category in turn lists its tags, so the graph is cyclic and must cross
// serialization boundaries through the cycle-safe codec.
type Tag struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Category   *Category `json:"category,omitempty"`
	InsertDate time.Time `json:"insertDate,omitempty"`
	UpdateDate time.Time `json:"updateDate,omitempty"`
}

// Category groups tags.
type Category struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Tags       []*Tag    `json:"tags,omitempty"`
	InsertDate time.Time `json:"insertDate,omitempty"`
	UpdateDate time.Time `json:"updateDate,omitempty"`
}

// Report is one moderation report. It is immutable once received by the
// relay; fan-out never mutates it.
type Report struct {
	ID                int64     `json:"id"`
	Reporter          *User     `json:"reporter,omitempty"`
	Tags              []*Tag    `json:"tags"`
	Reason            string    `json:"reason,omitempty"`
	GuildID           string    `json:"guildId,omitempty"`
	Links             []string  `json:"links"`
	ReportedUsers     []*User   `json:"reportedUsers"`
	ConfirmationUsers []*User   `json:"confirmationUsers"`
	InsertDate        time.Time `json:"insertDate"`
	UpdateDate        time.Time `json:"updateDate"`
}

// Consumer owns subscriptions. The relay passes it through untouched.
// Consumer and Subscription reference each other; the cycle-safe codec
// breaks the loop on encode.
type Consumer struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Permissions   int64           `json:"permissions"`
	Subscriptions []*Subscription `json:"subscriptions,omitempty"`
	InsertDate    time.Time       `json:"insertDate,omitempty"`
}

// Subscription is one delivery target registered with the directory
// service. DiscordWebhook targets always expect 204 and never receive
// delete events.
type Subscription struct {
	ID                   int64     `json:"id"`
	Consumer             *Consumer `json:"consumer,omitempty"`
	Tags                 []*Tag    `json:"tags"`
	URL                  string    `json:"url"`
	ExpectedResponseCode int       `json:"expectedResponseCode"`
	DiscordWebhook       bool      `json:"discordWebhook"`
}

// ExpectedCode returns the status code that marks a delivery to this
// subscription as successful. Webhook targets are pinned to 204
// regardless of the stored value.
func (s *Subscription) ExpectedCode() int {
	if s.DiscordWebhook {
		return 204
	}
	return s.ExpectedResponseCode
}

// EmbedFooter is the optional footer of a formatted report.
type EmbedFooter struct {
	Text *string `json:"text"`
}

// Embed is the transport-agnostic rendering of a report.
type Embed struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Footer      EmbedFooter `json:"footer"`
	Timestamp   time.Time   `json:"timestamp"`
}
