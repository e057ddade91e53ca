// Package transport sends formatted reports to subscriber endpoints.
// Two variants exist: the fixed-format webhook push and the generic
// HTTP callback. Both make exactly one outbound call per delivery
// attempt; retry is the caller's responsibility.
package transport

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"reportrelay/internal/relay/codec"
	"reportrelay/internal/relay/embed"
	"reportrelay/internal/relay/types"
)

const (
	webhookUsername = "Watcher"
	webhookAvatar   = "https://cdn.discordapp.com/avatars/305140278480863233/51daf8a9e8c786dc59f3587999fe5948.webp?size=256"

	// Transport labels for metrics and the delivery journal.
	KindWebhook = "webhook"
	KindGeneric = "generic"
)

// Result is the normalized outcome of one delivery call. A zero
// StatusCode means no response was received at all.
type Result struct {
	StatusCode int
}

// Transport delivers one report to one subscriber.
type Transport interface {
	Deliver(ctx context.Context, sub *types.Subscription, report, oldReport *types.Report, action types.Action) (Result, error)
}

// Options configures the HTTP transport.
type Options struct {
	Timeout       time.Duration
	SigningSecret string
}

// HTTPTransport implements Transport over net/http.
type HTTPTransport struct {
	client        *http.Client
	signingSecret string
	now           func() time.Time
}

// New creates an HTTPTransport.
func New(opts Options) *HTTPTransport {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTransport{
		client:        &http.Client{Timeout: timeout},
		signingSecret: opts.SigningSecret,
		now:           time.Now,
	}
}

// webhookBody is the payload accepted by webhook-style endpoints.
type webhookBody struct {
	Username  string        `json:"username"`
	AvatarURL string        `json:"avatar_url"`
	Embeds    []types.Embed `json:"embeds"`
}

// genericBody is the payload POSTed to generic callback endpoints. All
// object fields are cycle-safe-encoded strings.
type genericBody struct {
	Embed     string       `json:"embed"`
	Report    string       `json:"report"`
	OldReport string       `json:"oldReport,omitempty"`
	Action    types.Action `json:"action"`
}

// Deliver implements Transport.
func (t *HTTPTransport) Deliver(ctx context.Context, sub *types.Subscription, report, oldReport *types.Report, action types.Action) (Result, error) {
	if sub.DiscordWebhook {
		return t.deliverWebhook(ctx, sub, report)
	}
	return t.deliverGeneric(ctx, sub, report, oldReport, action)
}

func (t *HTTPTransport) deliverWebhook(ctx context.Context, sub *types.Subscription, report *types.Report) (Result, error) {
	body, err := json.Marshal(webhookBody{
		Username:  webhookUsername,
		AvatarURL: webhookAvatar,
		Embeds:    []types.Embed{embed.Build(report, true)},
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	return t.post(ctx, sub.URL, body, false)
}

func (t *HTTPTransport) deliverGeneric(ctx context.Context, sub *types.Subscription, report, oldReport *types.Report, action types.Action) (Result, error) {
	embedJSON, err := codec.Marshal(embed.Build(report, true))
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode embed: %w", err)
	}
	reportJSON, err := codec.Marshal(report)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode report: %w", err)
	}

	payload := genericBody{
		Embed:  string(embedJSON),
		Report: string(reportJSON),
		Action: action,
	}
	if oldReport != nil {
		oldJSON, err := codec.Marshal(oldReport)
		if err != nil {
			return Result{}, fmt.Errorf("failed to encode old report: %w", err)
		}
		payload.OldReport = string(oldJSON)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal callback payload: %w", err)
	}
	return t.post(ctx, sub.URL, body, true)
}

func (t *HTTPTransport) post(ctx context.Context, url string, body []byte, sign bool) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Report-Relay/1.0")

	if sign && t.signingSecret != "" {
		req.Header.Set("X-Relay-Signature", t.signPayload(body))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// No response at all; the caller sees a zero status code.
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return Result{StatusCode: resp.StatusCode}, nil
}

// signPayload produces "t={ts},v1={hex(hmac-sha256)}".
func (t *HTTPTransport) signPayload(body []byte) string {
	timestamp := t.now().Unix()
	mac := hmac.New(sha256.New, []byte(t.signingSecret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}
