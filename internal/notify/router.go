package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stockwatch/internal/domain"
	"stockwatch/internal/events"
)

// LiveEmitter is the live channel surface the router depends on
type LiveEmitter interface {
	Emit(ctx context.Context, userID string, payload interface{}) error
}

// PushSender delivers one payload to one push registration
type PushSender interface {
	Send(ctx context.Context, reg domain.PushRegistration, payload []byte) error
}

// RegistrationLister looks up a user's push registrations
type RegistrationLister interface {
	ByUser(userID string) ([]domain.PushRegistration, error)
}

// AlertPayload is the wire shape shared by the live channel and Web Push
type AlertPayload struct {
	Type           string   `json:"type"`
	Symbol         string   `json:"symbol"`
	Source         string   `json:"source"`
	Text           string   `json:"text"`
	Summary        string   `json:"summary"`
	Recommendation string   `json:"recommendation"`
	Reasons        []string `json:"reasons,omitempty"`
	ChartURL       string   `json:"chart_url,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

// Outcome describes which delivery path ran and how it went. The caller uses
// Durable to decide whether the unread flag must be set on the watch target.
type Outcome struct {
	Live         bool // Live channel was attempted
	Delivered    bool // Live write succeeded
	Durable      bool // Durable path taken; alert must surface as unread
	PushAttempts int
	PushFailures int
}

// Router picks exactly one delivery path per notification: the live channel
// when the user is connected, the durable path otherwise. Never both.
type Router struct {
	live   LiveEmitter
	push   PushSender // nil when push is not configured
	regs   RegistrationLister
	events *events.Manager
	log    zerolog.Logger
}

func NewRouter(live LiveEmitter, push PushSender, regs RegistrationLister, ev *events.Manager, log zerolog.Logger) *Router {
	return &Router{
		live:   live,
		push:   push,
		regs:   regs,
		events: ev,
		log:    log.With().Str("component", "delivery_router").Logger(),
	}
}

// Deliver routes one notification. A live connection that drops between the
// connectivity check and the write counts as a failed live delivery; the
// durable path is not retried in that case.
func (r *Router) Deliver(ctx context.Context, n *domain.Notification) (Outcome, error) {
	payload := payloadFrom(n)

	err := r.live.Emit(ctx, n.UserID, payload)
	switch {
	case err == nil:
		r.events.Emit(events.AlertDelivered, "notify", map[string]interface{}{
			"user_id": n.UserID,
			"symbol":  n.Symbol,
			"channel": "live",
		})
		return Outcome{Live: true, Delivered: true}, nil

	case errors.Is(err, domain.ErrNotConnected):
		return r.deliverDurable(ctx, n, payload)

	default:
		// Connection dropped mid-delivery. The sweep carries on.
		r.log.Warn().Err(err).
			Str("user_id", n.UserID).
			Str("symbol", n.Symbol).
			Msg("Live delivery failed")
		r.events.EmitError("notify", err, map[string]interface{}{
			"user_id": n.UserID,
			"symbol":  n.Symbol,
			"channel": "live",
		})
		return Outcome{Live: true}, nil
	}
}

func (r *Router) deliverDurable(ctx context.Context, n *domain.Notification, payload AlertPayload) (Outcome, error) {
	out := Outcome{Durable: true}

	if r.push == nil {
		return out, nil
	}

	regs, err := r.regs.ByUser(n.UserID)
	if err != nil {
		return out, fmt.Errorf("listing push registrations for %s: %w", n.UserID, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("encoding push payload: %w", err)
	}

	for _, reg := range regs {
		out.PushAttempts++
		if err := r.push.Send(ctx, reg, body); err != nil {
			out.PushFailures++
			r.log.Warn().Err(err).
				Str("user_id", n.UserID).
				Str("registration_id", reg.ID).
				Str("symbol", n.Symbol).
				Msg("Push delivery failed")
			r.events.Emit(events.PushFailed, "notify", map[string]interface{}{
				"user_id":         n.UserID,
				"registration_id": reg.ID,
				"symbol":          n.Symbol,
			})
		}
	}

	r.events.Emit(events.AlertDelivered, "notify", map[string]interface{}{
		"user_id":  n.UserID,
		"symbol":   n.Symbol,
		"channel":  "push",
		"attempts": out.PushAttempts,
		"failures": out.PushFailures,
	})
	return out, nil
}

func payloadFrom(n *domain.Notification) AlertPayload {
	p := AlertPayload{
		Type:           "alert",
		Symbol:         n.Symbol,
		Source:         string(n.Source),
		Text:           n.Text,
		Summary:        n.Summary,
		Recommendation: string(n.Recommendation),
		Reasons:        n.Reasons,
		CreatedAt:      n.CreatedAt.Format(time.RFC3339),
	}
	if n.Chart != nil {
		p.ChartURL = n.Chart.URL
	}
	return p
}
