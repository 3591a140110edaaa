// Package domain contains the core types of the alert engine.
// The domain layer is pure: no database, transport or oracle dependencies.
package domain

import "time"

// LotStatus is the lifecycle state of a position lot
type LotStatus string

const (
	LotOpen   LotStatus = "open"
	LotClosed LotStatus = "closed"
)

// SentimentType is the categorical crowd-sentiment reading for a symbol
type SentimentType string

const (
	SentimentAccumulation SentimentType = "accumulation"
	SentimentDistribution SentimentType = "distribution"
	SentimentHype         SentimentType = "hype"
	SentimentNeutral      SentimentType = "neutral"
)

// ParseSentimentType maps a raw oracle string onto a known category.
// Unknown or empty values collapse to neutral.
func ParseSentimentType(s string) SentimentType {
	switch SentimentType(s) {
	case SentimentAccumulation, SentimentDistribution, SentimentHype:
		return SentimentType(s)
	default:
		return SentimentNeutral
	}
}

// AlertTag is a categorical signal attached to a market snapshot by the oracle
type AlertTag string

const (
	TagProfit        AlertTag = "profit"
	TagLoss          AlertTag = "loss"
	TagBuySignal     AlertTag = "buy_signal"
	TagTrapWarning   AlertTag = "trap_warning"
	TagInvalidSymbol AlertTag = "invalid_symbol"
	TagError         AlertTag = "error"
)

// Recommendation is the action suggested to the user for a symbol
type Recommendation string

const (
	RecommendHold    Recommendation = "Hold"
	RecommendSell    Recommendation = "Sell"
	RecommendBuyMore Recommendation = "Consider Buying More"
)

// User represents a registered user of the alert service
type User struct {
	ID         string
	Handle     string // Contact handle (phone number or client identifier)
	Subscribed bool
	CreatedAt  time.Time
}

// PositionLot is one discrete purchase record. Lots are never deleted, only
// closed; ExitPrice is set exactly once, when the status flips open -> closed.
// The two alert flags are one-way: once true they are never reset.
type PositionLot struct {
	ID                string
	UserID            string
	Symbol            string
	EntryPrice        float64
	Quantity          float64
	ExitPrice         *float64
	Status            LotStatus
	StoplossAlertSent bool
	ProfitAlertSent   bool
	CreatedAt         time.Time
	ClosedAt          *time.Time
}

// AggregatedPosition is the derived view of all open lots for one user+symbol.
// It is recomputed every evaluation cycle and never persisted.
type AggregatedPosition struct {
	TotalQuantity float64
	AvgEntryPrice float64
}

// HasOpenPosition reports whether the aggregate represents an actual holding
func (p AggregatedPosition) HasOpenPosition() bool {
	return p.TotalQuantity > 0 && p.AvgEntryPrice > 0
}

// EntryBand is the oracle's suggested entry price range
type EntryBand struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// MarketSnapshot is one point-in-time market/sentiment read for a symbol,
// validated at the oracle boundary before it enters the pipeline.
type MarketSnapshot struct {
	Symbol         string
	Price          float64
	Low            float64
	High           float64
	Volume         float64
	AvgVolume      float64
	ChangePercent  float64
	Sentiment      float64 // Numeric sentiment score
	SentimentType  SentimentType
	Alerts         []AlertTag
	SuggestedEntry *EntryBand
	Closes         []float64     // Optional recent close series for local indicators
	Chart          *ChartArtifact
	FetchedAt      time.Time
}

// HasAlert reports whether the snapshot carries the given alert tag
func (s *MarketSnapshot) HasAlert(tag AlertTag) bool {
	for _, a := range s.Alerts {
		if a == tag {
			return true
		}
	}
	return false
}

// ChartArtifact is a rendered price chart attached to a snapshot or cached on
// a watch target for pull-based retrieval.
type ChartArtifact struct {
	Filename    string `msgpack:"filename"`
	ContentType string `msgpack:"content_type"`
	Data        []byte `msgpack:"data,omitempty"` // PNG bytes, omitted once mirrored
	URL         string `msgpack:"url,omitempty"`  // Set when mirrored to object storage
}

// WatchTarget is a user+symbol the user wants informed about. It carries the
// durable last-known state used for change detection and doubles as the unread
// inbox when live delivery is unavailable.
type WatchTarget struct {
	UserID                 string
	Symbol                 string
	LastKnownPrice         *float64
	LastKnownChangePercent *float64
	LastKnownSentiment     *SentimentType
	LastUpdateSummary      string
	LastUpdateAt           *time.Time
	HasUnreadUpdate        bool
	Chart                  *ChartArtifact
	CreatedAt              time.Time
}

// LastState is the subset of a WatchTarget the change detector compares against.
// A nil LastState means the symbol has never been evaluated for this user.
type LastState struct {
	ChangePercent *float64
	Sentiment     *SentimentType
}

// State extracts the comparable last-known state, or nil when none was recorded
func (w *WatchTarget) State() *LastState {
	if w == nil || w.LastUpdateAt == nil {
		return nil
	}
	return &LastState{
		ChangePercent: w.LastKnownChangePercent,
		Sentiment:     w.LastKnownSentiment,
	}
}

// PushRegistration is a durable Web Push subscription. Registrations are
// created by explicit opt-in and never expired by the alert engine itself;
// expired endpoints surface as delivery failures.
type PushRegistration struct {
	ID        string
	UserID    string
	Endpoint  string
	P256DH    string
	Auth      string
	CreatedAt time.Time
}

// NotificationSource distinguishes portfolio alerts from watchlist alerts
type NotificationSource string

const (
	SourcePortfolio NotificationSource = "portfolio"
	SourceWatchlist NotificationSource = "watchlist"
)

// Notification is a rendered, ready-to-deliver alert for one user+symbol
type Notification struct {
	UserID         string
	Symbol         string
	Source         NotificationSource
	Text           string
	Summary        string // Short change summary persisted on the watch target
	Recommendation Recommendation
	Snapshot       *MarketSnapshot
	Reasons        []string
	Chart          *ChartArtifact
	CreatedAt      time.Time
}
