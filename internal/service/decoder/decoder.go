// Package decoder turns raw upstream frames into MarketEvents.
package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"MarketRelay/internal/domain/errs"
	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"

	"github.com/shopspring/decimal"
)

// Option configures JSONDecoder.
type Option func(*JSONDecoder)

// WithKeys sets the payload keys holding symbol, price and event time.
func WithKeys(symbol, price, eventTime string) Option {
	return func(d *JSONDecoder) {
		if symbol != "" {
			d.symbolKey = symbol
		}
		if price != "" {
			d.priceKey = price
		}
		if eventTime != "" {
			d.timeKey = eventTime
		}
	}
}

// WithFallbackTimeKey sets the key read when the event time key is absent.
func WithFallbackTimeKey(key string) Option {
	return func(d *JSONDecoder) { d.fallbackTimeKey = key }
}

// WithMaxFrameBytes bounds the accepted frame size.
func WithMaxFrameBytes(n int) Option {
	return func(d *JSONDecoder) {
		if n > 0 {
			d.maxFrameBytes = n
		}
	}
}

// JSONDecoder decodes Binance-style JSON trade frames. It holds only
// immutable settings and is safe for concurrent use.
type JSONDecoder struct {
	symbolKey       string
	priceKey        string
	timeKey         string
	fallbackTimeKey string
	maxFrameBytes   int
}

// New creates a decoder with Binance trade stream defaults.
func New(opts ...Option) *JSONDecoder {
	d := &JSONDecoder{
		symbolKey:       "s",
		priceKey:        "p",
		timeKey:         "E",
		fallbackTimeKey: "T",
		maxFrameBytes:   64 << 10,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ drepo.Decoder = (*JSONDecoder)(nil)

// Decode parses one frame. Every failure is a *errs.DecodeError.
func (d *JSONDecoder) Decode(raw []byte) (*models.MarketEvent, error) {
	if len(raw) > d.maxFrameBytes {
		return nil, &errs.DecodeError{Err: errs.ErrFrameTooLarge}
	}
	obj, err := parseObject(raw)
	if err != nil {
		return nil, err
	}
	obj = unwrapEnvelope(obj)

	rawSym, hasSym := obj[d.symbolKey]
	rawPrice, hasPrice := obj[d.priceKey]
	if !hasSym && !hasPrice {
		// subscribe acks, heartbeats and the like
		return nil, &errs.DecodeError{Err: errs.ErrNotEvent}
	}

	symbol, ok := rawSym.(string)
	if !ok || symbol == "" {
		return nil, &errs.DecodeError{Field: d.symbolKey, Err: errs.ErrMissingField}
	}

	price, err := priceText(rawPrice, hasPrice)
	if err != nil {
		return nil, &errs.DecodeError{Field: d.priceKey, Err: err}
	}

	tsKey := d.timeKey
	rawTS, hasTS := obj[tsKey]
	if !hasTS && d.fallbackTimeKey != "" {
		tsKey = d.fallbackTimeKey
		rawTS, hasTS = obj[tsKey]
	}
	var ts int64
	if hasTS {
		if ts, err = epochMillis(rawTS); err != nil {
			return nil, &errs.DecodeError{Field: tsKey, Err: err}
		}
	}

	extra := make(map[string]any, len(obj))
	for k, v := range obj {
		if k == d.symbolKey || k == d.priceKey || (hasTS && k == tsKey) {
			continue
		}
		extra[k] = v
	}
	return models.NewMarketEvent(symbol, price, ts, extra), nil
}

func parseObject(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &errs.DecodeError{Err: errs.ErrMalformed}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, &errs.DecodeError{Err: errors.Join(errs.ErrMalformed, err)}
	}
	if obj == nil {
		return nil, &errs.DecodeError{Err: errs.ErrNotEvent}
	}
	// one frame, one value
	if _, err := dec.Token(); err != io.EOF {
		return nil, &errs.DecodeError{Err: errs.ErrMalformed}
	}
	return obj, nil
}

// unwrapEnvelope handles combined streams: {"stream":"btcusdt@trade","data":{...}}.
// The stream name is kept as a pass-through field unless the payload has its own.
func unwrapEnvelope(obj map[string]any) map[string]any {
	name, ok := obj["stream"].(string)
	if !ok {
		return obj
	}
	inner, ok := obj["data"].(map[string]any)
	if !ok {
		return obj
	}
	if _, taken := inner["stream"]; !taken {
		inner["stream"] = name
	}
	return inner
}

func priceText(v any, present bool) (string, error) {
	if !present {
		return "", errs.ErrMissingField
	}
	var s string
	switch p := v.(type) {
	case string:
		s = strings.TrimSpace(p)
	case json.Number:
		s = p.String()
	default:
		return "", errs.ErrInvalidPrice
	}
	if s == "" {
		return "", errs.ErrMissingField
	}
	// plain decimal text only; exponents make big.Rat conversions unbounded
	if strings.ContainsAny(s, "eE") {
		return "", errs.ErrInvalidPrice
	}
	if _, err := decimal.NewFromString(s); err != nil {
		return "", errs.ErrInvalidPrice
	}
	return s, nil
}

func epochMillis(v any) (int64, error) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, errs.ErrMalformed
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts < 0 {
		return 0, errs.ErrMalformed
	}
	return ts, nil
}
