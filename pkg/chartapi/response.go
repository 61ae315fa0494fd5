package chartapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-charts/pkg/errors"
	"github.com/shopspring/decimal"
)

// CodeMarketIsClosed is returned by ticks_history when the symbol's market is closed.
const CodeMarketIsClosed = "MarketIsClosed"

// APIError is the error envelope carried by a failed response.
type APIError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsMarketClosed reports whether err carries a MarketIsClosed envelope anywhere in its chain.
func IsMarketClosed(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == CodeMarketIsClosed
	}

	return false
}

// SubscriptionInfo identifies a live stream.
type SubscriptionInfo struct {
	ID string `json:"id"`
}

// History is the ticks-style snapshot payload.
type History struct {
	Prices []decimal.Decimal `json:"prices"`
	Times  []int64           `json:"times"`
}

// Candle is one element of a candles-style snapshot.
type Candle struct {
	Epoch int64           `json:"epoch"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// Tick is a single ticks-style push frame payload.
type Tick struct {
	ID      string          `json:"id,omitempty"`
	Symbol  string          `json:"symbol"`
	Epoch   int64           `json:"epoch"`
	Quote   decimal.Decimal `json:"quote"`
	Ask     decimal.Decimal `json:"ask"`
	Bid     decimal.Decimal `json:"bid"`
	PipSize int             `json:"pip_size"`
}

// OHLC is a single candles-style push frame payload.
type OHLC struct {
	ID          string          `json:"id,omitempty"`
	Symbol      string          `json:"symbol"`
	Epoch       int64           `json:"epoch"`
	OpenTime    int64           `json:"open_time"`
	Granularity int             `json:"granularity"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	PipSize     int             `json:"pip_size"`
}

// ActiveSymbol describes one tradable symbol.
type ActiveSymbol struct {
	Symbol             string          `json:"symbol"`
	DisplayName        string          `json:"display_name"`
	Market             string          `json:"market"`
	MarketDisplayName  string          `json:"market_display_name"`
	Submarket          string          `json:"submarket"`
	ExchangeIsOpen     int             `json:"exchange_is_open"`
	IsTradingSuspended int             `json:"is_trading_suspended"`
	Pip                decimal.Decimal `json:"pip"`
}

// TradingTimes groups symbol trading hours by market.
type TradingTimes struct {
	Markets []TradingMarket `json:"markets"`
}

// TradingMarket is a market in a trading_times response.
type TradingMarket struct {
	Name       string             `json:"name"`
	Submarkets []TradingSubmarket `json:"submarkets"`
}

// TradingSubmarket is a submarket in a trading_times response.
type TradingSubmarket struct {
	Name    string          `json:"name"`
	Symbols []TradingSymbol `json:"symbols"`
}

// TradingSymbol carries the opening and closing times of a symbol.
type TradingSymbol struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Times  struct {
		Open       []string `json:"open"`
		Close      []string `json:"close"`
		Settlement string   `json:"settlement"`
	} `json:"times"`
}

// Response is a decoded server frame. Only the payload matching MsgType is set.
type Response struct {
	MsgType       string            `json:"msg_type"`
	ReqID         int64             `json:"req_id,omitempty"`
	EchoReq       json.RawMessage   `json:"echo_req,omitempty"`
	Error         *APIError         `json:"error,omitempty"`
	Subscription  *SubscriptionInfo `json:"subscription,omitempty"`
	History       *History          `json:"history,omitempty"`
	Candles       []Candle          `json:"candles,omitempty"`
	Tick          *Tick             `json:"tick,omitempty"`
	OHLC          *OHLC             `json:"ohlc,omitempty"`
	Time          int64             `json:"time,omitempty"`
	ActiveSymbols []ActiveSymbol    `json:"active_symbols,omitempty"`
	TradingTimes  *TradingTimes     `json:"trading_times,omitempty"`
	Forget        int               `json:"forget,omitempty"`
	ForgetAll     []string          `json:"forget_all,omitempty"`
	Ping          string            `json:"ping,omitempty"`

	// Raw holds the frame as received.
	Raw json.RawMessage `json:"-"`
}

// Decode parses a raw frame.
func Decode(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeFailed, "failed to decode frame", err)
	}

	resp.Raw = append(json.RawMessage(nil), data...)

	return &resp, nil
}

// Err returns the error envelope as an error, or nil for a successful response.
func (r *Response) Err() error {
	if r == nil || r.Error == nil {
		return nil
	}

	return r.Error
}

// SubscriptionID returns the stream id the frame belongs to, if any.
// Push frames carry it in subscription.id and, on older servers, only in the payload id.
func (r *Response) SubscriptionID() optional.Option[string] {
	if r == nil {
		return optional.None[string]()
	}

	if r.Subscription != nil && r.Subscription.ID != "" {
		return optional.Some(r.Subscription.ID)
	}

	if r.Tick != nil && r.Tick.ID != "" {
		return optional.Some(r.Tick.ID)
	}

	if r.OHLC != nil && r.OHLC.ID != "" {
		return optional.Some(r.OHLC.ID)
	}

	return optional.None[string]()
}

// Point is a normalized price observation. For ticks Open, High, Low and Close are all the quote.
type Point struct {
	Time  time.Time
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
}

// Points flattens any history, candles, tick or ohlc payload into time-ordered points.
func (r *Response) Points() []Point {
	if r == nil {
		return nil
	}

	var points []Point

	if r.History != nil {
		n := min(len(r.History.Prices), len(r.History.Times))
		for i := 0; i < n; i++ {
			points = append(points, tickPoint(r.History.Times[i], r.History.Prices[i]))
		}
	}

	for _, c := range r.Candles {
		points = append(points, Point{
			Time:  time.Unix(c.Epoch, 0).UTC(),
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: c.Close,
		})
	}

	if r.Tick != nil {
		points = append(points, tickPoint(r.Tick.Epoch, r.Tick.Quote))
	}

	if r.OHLC != nil {
		points = append(points, Point{
			Time:  time.Unix(r.OHLC.OpenTime, 0).UTC(),
			Open:  r.OHLC.Open,
			High:  r.OHLC.High,
			Low:   r.OHLC.Low,
			Close: r.OHLC.Close,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})

	return points
}

func tickPoint(epoch int64, quote decimal.Decimal) Point {
	return Point{
		Time:  time.Unix(epoch, 0).UTC(),
		Open:  quote,
		High:  quote,
		Low:   quote,
		Close: quote,
	}
}
