package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// MarketEvent is one decoded unit of the live feed.
// Fields are unexported so nothing can mutate an event after decode.
type MarketEvent struct {
	symbol string
	price  string // exact upstream text, never converted through float64
	ts     int64  // epoch ms as supplied upstream, 0 when unknown
	fields map[string]any
}

// NewMarketEvent builds an event. The fields map is deep-copied.
func NewMarketEvent(symbol, price string, ts int64, fields map[string]any) *MarketEvent {
	return &MarketEvent{symbol: symbol, price: price, ts: ts, fields: cloneMap(fields)}
}

func (e *MarketEvent) Symbol() string { return e.symbol }

// Price returns the price exactly as received.
func (e *MarketEvent) Price() string { return e.price }

// Timestamp returns the upstream event time in epoch milliseconds.
func (e *MarketEvent) Timestamp() int64 { return e.ts }

// Decimal parses the price. The decoder only builds events whose price parses.
func (e *MarketEvent) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(e.price)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Field returns a copy of one pass-through field.
func (e *MarketEvent) Field(key string) (any, bool) {
	v, ok := e.fields[key]
	return cloneValue(v), ok
}

// Fields returns a deep copy of the pass-through fields.
func (e *MarketEvent) Fields() map[string]any {
	return cloneMap(e.fields)
}

func cloneMap(m map[string]any) map[string]any {
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = cloneValue(v)
	}
	return cp
}

// cloneValue copies the container types encoding/json produces; scalars are values already.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		cp := make([]any, len(t))
		for i, x := range t {
			cp[i] = cloneValue(x)
		}
		return cp
	default:
		return v
	}
}

type marketEventJSON struct {
	Symbol string         `json:"symbol"`
	Price  string         `json:"price"`
	TS     int64          `json:"ts"`
	Fields map[string]any `json:"fields,omitempty"`
}

// MarshalJSON is the downstream wire format.
func (e *MarketEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(marketEventJSON{Symbol: e.symbol, Price: e.price, TS: e.ts, Fields: e.fields})
}

// UnmarshalJSON reads the downstream wire format back, used by consumers and tests.
func (e *MarketEvent) UnmarshalJSON(b []byte) error {
	var m marketEventJSON
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*e = *NewMarketEvent(m.Symbol, m.Price, m.TS, m.Fields)
	return nil
}
