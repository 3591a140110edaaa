package notify

import (
	"context"
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"stockwatch/internal/domain"
)

const pushTTLSeconds = 3600

// WebPushSender delivers durable notifications over the Web Push protocol
// using VAPID authentication.
type WebPushSender struct {
	subscriber string
	publicKey  string
	privateKey string
	log        zerolog.Logger
}

func NewWebPushSender(subscriber, publicKey, privateKey string, log zerolog.Logger) *WebPushSender {
	return &WebPushSender{
		subscriber: subscriber,
		publicKey:  publicKey,
		privateKey: privateKey,
		log:        log.With().Str("component", "webpush").Logger(),
	}
}

// Send pushes the payload to a single registration. Expired endpoints
// (404/410 from the push service) are reported as errors like any other
// failure; registrations are never removed here.
func (s *WebPushSender) Send(ctx context.Context, reg domain.PushRegistration, payload []byte) error {
	sub := &webpush.Subscription{
		Endpoint: reg.Endpoint,
		Keys: webpush.Keys{
			P256dh: reg.P256DH,
			Auth:   reg.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             pushTTLSeconds,
	})
	if err != nil {
		return fmt.Errorf("%w: push to %s: %v", domain.ErrDeliveryFailed, reg.ID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == 404 || resp.StatusCode == 410:
		s.log.Warn().
			Str("registration_id", reg.ID).
			Int("status", resp.StatusCode).
			Msg("Push endpoint expired")
		return fmt.Errorf("%w: push endpoint expired (status %d)", domain.ErrDeliveryFailed, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: push service returned status %d", domain.ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}
