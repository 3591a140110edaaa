// Package oracle provides the client for the out-of-process market/sentiment
// analysis service. The service's loosely-typed JSON output is validated here,
// at the boundary, before anything enters the alert pipeline.
package oracle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"stockwatch/internal/domain"
)

// Client talks to the market oracle over HTTP
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new oracle client. The timeout bounds every fetch; a
// slow oracle converts into a per-symbol skip, never a stuck sweep.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "oracle").Logger(),
	}
}

// payload mirrors the oracle's JSON output. All fields are optional at the
// wire level; Validate decides what is required.
type payload struct {
	Symbol         string            `json:"symbol"`
	Price          *float64          `json:"price"`
	Low            *float64          `json:"low"`
	High           *float64          `json:"high"`
	Volume         *float64          `json:"volume"`
	AvgVolume      *float64          `json:"avg_volume"`
	ChangePercent  *float64          `json:"change_percent"`
	Sentiment      *float64          `json:"sentiment"`
	SentimentType  string            `json:"sentiment_type"`
	Alerts         []string          `json:"alerts"`
	SuggestedEntry *domain.EntryBand `json:"suggested_entry"`
	Closes         []float64         `json:"closes"`
	Chart          string            `json:"chart"` // base64 PNG
	Error          string            `json:"error"`
}

// Fetch retrieves a market snapshot for a symbol. refEntry, when set, is the
// position's average entry price the oracle uses for its profit/loss tags.
func (c *Client) Fetch(ctx context.Context, symbol string, refEntry *float64) (*domain.MarketSnapshot, error) {
	u, err := url.Parse(c.baseURL + "/analyze")
	if err != nil {
		return nil, fmt.Errorf("%w: bad oracle URL: %v", domain.ErrOracleUnavailable, err)
	}
	q := u.Query()
	q.Set("symbol", symbol)
	if refEntry != nil {
		q.Set("entry", strconv.FormatFloat(*refEntry, 'f', -1, 64))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Timeouts and network errors are the same class of failure for
		// the orchestrator: skip the symbol this cycle.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: timeout fetching %s: %v", domain.ErrOracleUnavailable, symbol, err)
		}
		return nil, fmt.Errorf("%w: fetching %s: %v", domain.ErrOracleUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: oracle returned status %d for %s",
			domain.ErrOracleUnavailable, resp.StatusCode, symbol)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading oracle response for %s: %v",
			domain.ErrOracleUnavailable, symbol, err)
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty oracle output for %s", domain.ErrMalformedSnapshot, symbol)
	}

	var raw payload
	if err := json.Unmarshal(body, &raw); err != nil {
		c.log.Warn().Str("symbol", symbol).Str("output", truncate(string(body), 200)).
			Msg("Oracle produced non-JSON output")
		return nil, fmt.Errorf("%w: non-JSON oracle output for %s: %v",
			domain.ErrMalformedSnapshot, symbol, err)
	}

	return validate(symbol, &raw)
}

// validate turns the loose payload into a fully-typed snapshot or rejects it
func validate(symbol string, raw *payload) (*domain.MarketSnapshot, error) {
	if raw.Error != "" {
		return nil, fmt.Errorf("%w: oracle error for %s: %s",
			domain.ErrMalformedSnapshot, symbol, raw.Error)
	}
	if raw.Symbol == "" {
		return nil, fmt.Errorf("%w: missing symbol in oracle output", domain.ErrMalformedSnapshot)
	}
	if raw.Price == nil {
		// Includes the invalid_symbol case: without a price there is
		// nothing to evaluate.
		return nil, fmt.Errorf("%w: missing price for %s", domain.ErrMalformedSnapshot, symbol)
	}

	snap := &domain.MarketSnapshot{
		Symbol:        raw.Symbol,
		Price:         *raw.Price,
		SentimentType: domain.ParseSentimentType(raw.SentimentType),
		Closes:        raw.Closes,
		FetchedAt:     time.Now().UTC(),
	}
	if raw.Low != nil {
		snap.Low = *raw.Low
	}
	if raw.High != nil {
		snap.High = *raw.High
	}
	if raw.Volume != nil {
		snap.Volume = *raw.Volume
	}
	if raw.AvgVolume != nil {
		snap.AvgVolume = *raw.AvgVolume
	}
	if raw.ChangePercent != nil {
		snap.ChangePercent = *raw.ChangePercent
	}
	if raw.Sentiment != nil {
		snap.Sentiment = *raw.Sentiment
	}
	if raw.SuggestedEntry != nil {
		band := *raw.SuggestedEntry
		snap.SuggestedEntry = &band
	}

	for _, a := range raw.Alerts {
		switch tag := domain.AlertTag(a); tag {
		case domain.TagProfit, domain.TagLoss, domain.TagBuySignal,
			domain.TagTrapWarning, domain.TagInvalidSymbol, domain.TagError:
			snap.Alerts = append(snap.Alerts, tag)
		default:
			// Unknown tags from newer oracle versions are ignored
		}
	}

	if raw.Chart != "" {
		data, err := base64.StdEncoding.DecodeString(raw.Chart)
		if err == nil && len(data) > 0 {
			snap.Chart = &domain.ChartArtifact{
				Filename:    symbol + ".png",
				ContentType: "image/png",
				Data:        data,
			}
		}
		// A broken chart never fails the snapshot; the alert still goes out
	}

	return snap, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
