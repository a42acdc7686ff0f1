// Package models defines the entities moved through the ingestion pipeline.
package models

import (
	"fmt"
	"time"

	"github.com/paramtully/stocker/internal/calendar"
)

// Candle is one day's OHLCV record for a ticker.
// Natural key: (Ticker, Date). Mutated in place only by split adjustment.
type Candle struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Key returns the natural key of the candle.
func (c Candle) Key() string {
	return c.Ticker + "|" + c.Date.Format(calendar.DayFormat)
}

// RecordDate returns the date used for year partitioning.
func (c Candle) RecordDate() time.Time {
	return c.Date
}

// Validate checks the candle invariants: non-negative prices and volume,
// date not in the future, ticker present.
func (c Candle) Validate(now time.Time) error {
	if c.Ticker == "" {
		return fmt.Errorf("candle missing ticker")
	}
	if c.Date.IsZero() {
		return fmt.Errorf("candle %s missing date", c.Ticker)
	}
	if calendar.Normalize(c.Date).After(calendar.Normalize(now)) {
		return fmt.Errorf("candle %s dated in the future: %s", c.Ticker, c.Date.Format(calendar.DayFormat))
	}
	if c.Open < 0 || c.High < 0 || c.Low < 0 || c.Close < 0 {
		return fmt.Errorf("candle %s %s has negative price", c.Ticker, c.Date.Format(calendar.DayFormat))
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle %s %s has negative volume", c.Ticker, c.Date.Format(calendar.DayFormat))
	}
	return nil
}

// StockSplit is one entry in a ticker's append-only split ledger.
// Ratio is new shares per old share (a 4:1 split has Ratio 4).
type StockSplit struct {
	Ticker      string    `json:"ticker"`
	Date        time.Time `json:"date"`
	Ratio       float64   `json:"ratio"`
	DetectedAt  time.Time `json:"detected_at"`
	AppliedToDB bool      `json:"applied_to_db"`
}

// Adjust returns a copy of the candle with the split applied: prices divided
// by the ratio, volume multiplied. Callers must only pass candles dated
// strictly before the split date.
func (s StockSplit) Adjust(c Candle) Candle {
	c.Open /= s.Ratio
	c.High /= s.Ratio
	c.Low /= s.Ratio
	c.Close /= s.Ratio
	c.Volume = int64(float64(c.Volume) * s.Ratio)
	return c
}

// Listing is one tradeable symbol on an exchange.
type Listing struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Type     string `json:"type,omitempty"`
}

// ListingSnapshot is the persisted set of known listings, diffed against the
// provider's current symbol list to detect new listings.
type ListingSnapshot struct {
	Exchange  string    `json:"exchange"`
	UpdatedAt time.Time `json:"updated_at"`
	Listings  []Listing `json:"listings"`
}
