package decoder

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"MarketRelay/internal/domain/errs"

	"github.com/shopspring/decimal"
)

func TestDecodeBinanceTrade(t *testing.T) {
	d := New()
	ev, err := d.Decode([]byte(`{"p":"65000.50","s":"BTCUSDT","E":1700000000000}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Symbol() != "BTCUSDT" || ev.Price() != "65000.50" || ev.Timestamp() != 1700000000000 {
		t.Fatalf("unexpected event %s %s %d", ev.Symbol(), ev.Price(), ev.Timestamp())
	}
	if len(ev.Fields()) != 0 {
		t.Fatalf("expected no extra fields, got %v", ev.Fields())
	}
}

func TestDecodeKeepsUnknownFields(t *testing.T) {
	d := New()
	frame := `{"e":"trade","E":1700000000001,"s":"ETHUSDT","t":12345,"p":"3200.10","q":"0.500","T":1700000000000,"m":true,"x":{"nested":1}}`
	ev, err := d.Decode([]byte(frame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Timestamp() != 1700000000001 {
		t.Fatalf("expected E to win over T, got %d", ev.Timestamp())
	}
	if v, _ := ev.Field("e"); v != "trade" {
		t.Fatalf("e = %v", v)
	}
	if v, _ := ev.Field("q"); v != "0.500" {
		t.Fatalf("q = %v", v)
	}
	if v, _ := ev.Field("t"); v != json.Number("12345") {
		t.Fatalf("t = %#v", v)
	}
	if v, _ := ev.Field("T"); v != json.Number("1700000000000") {
		t.Fatalf("T should pass through when E was used, got %#v", v)
	}
	if v, _ := ev.Field("m"); v != true {
		t.Fatalf("m = %v", v)
	}
	for _, k := range []string{"s", "p", "E"} {
		if _, ok := ev.Field(k); ok {
			t.Fatalf("consumed key %q leaked into fields", k)
		}
	}
}

func TestDecodeNumericPriceKeepsText(t *testing.T) {
	ev, err := New().Decode([]byte(`{"s":"AAPL","p":189.10,"T":1700000000000}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Price() != "189.10" {
		t.Fatalf("price text changed: %q", ev.Price())
	}
	if ev.Timestamp() != 1700000000000 {
		t.Fatalf("fallback time not used: %d", ev.Timestamp())
	}
	if !ev.Decimal().Equal(decimal.RequireFromString("189.1")) {
		t.Fatalf("decimal = %s", ev.Decimal())
	}
}

func TestDecodeMissingTimestampIsZero(t *testing.T) {
	ev, err := New().Decode([]byte(`{"s":"BTCUSDT","p":"1"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Timestamp() != 0 {
		t.Fatalf("ts = %d", ev.Timestamp())
	}
}

func TestDecodeCombinedStream(t *testing.T) {
	ev, err := New().Decode([]byte(`{"stream":"btcusdt@trade","data":{"s":"BTCUSDT","p":"1.5","E":42}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Symbol() != "BTCUSDT" || ev.Price() != "1.5" || ev.Timestamp() != 42 {
		t.Fatalf("unexpected event %s %s %d", ev.Symbol(), ev.Price(), ev.Timestamp())
	}
	if v, _ := ev.Field("stream"); v != "btcusdt@trade" {
		t.Fatalf("stream name not kept: %v", v)
	}
	if _, ok := ev.Field("data"); ok {
		t.Fatalf("envelope data leaked into fields")
	}
}

func TestDecodeCustomKeys(t *testing.T) {
	d := New(WithKeys("symbol", "price", "ts"), WithFallbackTimeKey(""))
	ev, err := d.Decode([]byte(`{"symbol":"EURUSD","price":"1.08765","ts":"1700000000000"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Symbol() != "EURUSD" || ev.Price() != "1.08765" || ev.Timestamp() != 1700000000000 {
		t.Fatalf("unexpected event %s %s %d", ev.Symbol(), ev.Price(), ev.Timestamp())
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		cause error
	}{
		{"truncated", `{"p":"65000.50","s":"BTC`, errs.ErrMalformed},
		{"not json", `hello`, errs.ErrMalformed},
		{"empty", ``, errs.ErrMalformed},
		{"whitespace", "  \n", errs.ErrMalformed},
		{"array", `[1,2,3]`, errs.ErrMalformed},
		{"null", `null`, errs.ErrNotEvent},
		{"two values", `{"s":"A","p":"1"}{"s":"B","p":"2"}`, errs.ErrMalformed},
		{"subscribe ack", `{"result":null,"id":1}`, errs.ErrNotEvent},
		{"missing symbol", `{"p":"1"}`, errs.ErrMissingField},
		{"numeric symbol", `{"s":7,"p":"1"}`, errs.ErrMissingField},
		{"missing price", `{"s":"BTCUSDT"}`, errs.ErrMissingField},
		{"empty price", `{"s":"BTCUSDT","p":""}`, errs.ErrMissingField},
		{"bad price", `{"s":"BTCUSDT","p":"abc"}`, errs.ErrInvalidPrice},
		{"bool price", `{"s":"BTCUSDT","p":true}`, errs.ErrInvalidPrice},
		{"exponent price", `{"s":"BTCUSDT","p":"1e99999999","E":1}`, errs.ErrInvalidPrice},
		{"negative exponent price", `{"s":"BTCUSDT","p":"1E-5000000","E":1}`, errs.ErrInvalidPrice},
		{"numeric exponent price", `{"s":"BTCUSDT","p":1e20000000,"E":1}`, errs.ErrInvalidPrice},
		{"float ts", `{"s":"BTCUSDT","p":"1","E":1.5}`, errs.ErrMalformed},
		{"negative ts", `{"s":"BTCUSDT","p":"1","E":-1}`, errs.ErrMalformed},
	}
	d := New()
	for _, tc := range cases {
		ev, err := d.Decode([]byte(tc.frame))
		if err == nil {
			t.Fatalf("%s: expected error, got event %+v", tc.name, ev)
		}
		if ev != nil {
			t.Fatalf("%s: expected nil event on error", tc.name)
		}
		if !errs.IsDecode(err) {
			t.Fatalf("%s: expected DecodeError, got %T %v", tc.name, err, err)
		}
		if !errors.Is(err, tc.cause) {
			t.Fatalf("%s: expected cause %v, got %v", tc.name, tc.cause, err)
		}
	}
}

func TestDecodeFrameTooLarge(t *testing.T) {
	d := New(WithMaxFrameBytes(32))
	frame := `{"s":"BTCUSDT","p":"1","pad":"` + strings.Repeat("x", 64) + `"}`
	if _, err := d.Decode([]byte(frame)); !errors.Is(err, errs.ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestDecodeDoesNotAliasInput(t *testing.T) {
	frame := []byte(`{"s":"BTCUSDT","p":"1.00","E":1,"x":"keep"}`)
	ev, err := New().Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range frame {
		frame[i] = ' '
	}
	if ev.Symbol() != "BTCUSDT" || ev.Price() != "1.00" {
		t.Fatalf("event changed with input buffer: %s %s", ev.Symbol(), ev.Price())
	}
	if v, _ := ev.Field("x"); v != "keep" {
		t.Fatalf("field changed with input buffer: %v", v)
	}
}

func FuzzDecode(f *testing.F) {
	for _, seed := range []string{
		`{"p":"65000.50","s":"BTCUSDT","E":1700000000000}`,
		`{"stream":"btcusdt@trade","data":{"s":"BTCUSDT","p":"1","E":1}}`,
		`{"result":null,"id":1}`,
		`{"s":"X","p":1e400}`,
		`{"s":"BTCUSDT","p":"1e99999999","E":1}`,
		`{"s":"X","p":"1","E":"99999999999999999999"}`,
		`[[[[[[[[[[[[[[[[[[[[`,
		`{"p":"65000.50","s":"BTC`,
		``,
	} {
		f.Add([]byte(seed))
	}
	d := New()
	f.Fuzz(func(t *testing.T, raw []byte) {
		ev, err := d.Decode(raw)
		if err != nil {
			if ev != nil {
				t.Fatalf("event returned alongside error")
			}
			if !errs.IsDecode(err) {
				t.Fatalf("non-decode error %T: %v", err, err)
			}
			return
		}
		if ev.Symbol() == "" {
			t.Fatalf("empty symbol accepted")
		}
		if _, perr := decimal.NewFromString(ev.Price()); perr != nil {
			t.Fatalf("price %q does not parse: %v", ev.Price(), perr)
		}
		if strings.ContainsAny(ev.Price(), "eE") {
			t.Fatalf("exponent price %q accepted", ev.Price())
		}
		again, err := d.Decode(raw)
		if err != nil {
			t.Fatalf("second decode failed: %v", err)
		}
		if again.Symbol() != ev.Symbol() || again.Price() != ev.Price() || again.Timestamp() != ev.Timestamp() ||
			!reflect.DeepEqual(again.Fields(), ev.Fields()) {
			t.Fatalf("decode is not deterministic")
		}
	})
}
