// Package chartapi defines the request and response shapes of the tick-data API
// used by the chart: tick history with optional live subscription, and the one-shot
// lookups (active symbols, server time, trading times).
package chartapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-charts/pkg/errors"
)

// Style selects between raw ticks and OHLC candles.
type Style string

const (
	StyleTicks   Style = "ticks"
	StyleCandles Style = "candles"
)

// Stream categories accepted by forget_all.
const (
	CategoryTicks   = "ticks"
	CategoryCandles = "candles"
)

// EndLatest asks the server for history up to now.
const EndLatest = "latest"

// Request is any message that can be sent over the transport.
// The transport assigns req_id; requests must not set it themselves.
type Request interface {
	// MsgType is the msg_type the server uses for the first response.
	MsgType() string
}

// TicksHistoryRequest asks for a symbol's tick or candle history and, with
// Subscribe set to 1, keeps the stream live.
type TicksHistoryRequest struct {
	TicksHistory    string `json:"ticks_history" validate:"required"`
	AdjustStartTime int    `json:"adjust_start_time,omitempty" validate:"oneof=0 1"`
	Count           int    `json:"count,omitempty" validate:"min=0,max=5000"`
	End             string `json:"end" validate:"required"`
	Granularity     int    `json:"granularity,omitempty" validate:"oneof=0 60 120 180 300 600 900 1800 3600 7200 14400 28800 86400"`
	Start           int64  `json:"start,omitempty" validate:"min=0"`
	Style           Style  `json:"style,omitempty" validate:"omitempty,oneof=ticks candles"`
	Subscribe       int    `json:"subscribe,omitempty" validate:"oneof=0 1"`
}

// NewTicksHistoryRequest builds a request for the latest count points of symbol.
// A granularity of zero requests ticks, anything else requests candles.
func NewTicksHistoryRequest(symbol string, granularity int, count int, subscribe bool) TicksHistoryRequest {
	style := StyleTicks
	if granularity > 0 {
		style = StyleCandles
	}

	req := TicksHistoryRequest{
		TicksHistory:    symbol,
		AdjustStartTime: 1,
		Count:           count,
		End:             EndLatest,
		Granularity:     granularity,
		Start:           0,
		Style:           style,
		Subscribe:       0,
	}
	if subscribe {
		req.Subscribe = 1
	}

	return req
}

// MsgType implements Request.
func (r TicksHistoryRequest) MsgType() string {
	if r.Style == StyleCandles {
		return "candles"
	}

	return "history"
}

// IsSubscribe reports whether the request asks for a live stream.
func (r TicksHistoryRequest) IsSubscribe() bool {
	return r.Subscribe == 1
}

// StreamCategory is the forget_all category the resulting stream belongs to.
func (r TicksHistoryRequest) StreamCategory() string {
	if r.Style == StyleCandles {
		return CategoryCandles
	}

	return CategoryTicks
}

// Validate checks the request fields.
func (r TicksHistoryRequest) Validate() error {
	if err := validateStruct(r, "ticks history"); err != nil {
		return err
	}

	if r.Style == StyleCandles && r.Granularity == 0 {
		return errors.New(errors.ErrCodeInvalidParameter, "candles require a non-zero granularity")
	}

	return nil
}

// ActiveSymbolsRequest lists tradable symbols.
type ActiveSymbolsRequest struct {
	ActiveSymbols string `json:"active_symbols" validate:"oneof=brief full"`
	ProductType   string `json:"product_type,omitempty"`
}

// MsgType implements Request.
func (ActiveSymbolsRequest) MsgType() string { return "active_symbols" }

// Validate checks the request fields.
func (r ActiveSymbolsRequest) Validate() error {
	return validateStruct(r, "active symbols")
}

// ServerTimeRequest asks for the server epoch.
type ServerTimeRequest struct {
	Time int `json:"time"`
}

// MsgType implements Request.
func (ServerTimeRequest) MsgType() string { return "time" }

// TradingTimesRequest asks for market open/close times on a date (YYYY-MM-DD or "today").
type TradingTimesRequest struct {
	TradingTimes string `json:"trading_times" validate:"required"`
}

// MsgType implements Request.
func (TradingTimesRequest) MsgType() string { return "trading_times" }

// Validate checks the request fields.
func (r TradingTimesRequest) Validate() error {
	return validateStruct(r, "trading times")
}

// ForgetRequest cancels a single stream by subscription id.
type ForgetRequest struct {
	Forget string `json:"forget"`
}

// MsgType implements Request.
func (ForgetRequest) MsgType() string { return "forget" }

// ForgetAllRequest cancels every stream of the given categories.
type ForgetAllRequest struct {
	ForgetAll []string `json:"forget_all"`
}

// MsgType implements Request.
func (ForgetAllRequest) MsgType() string { return "forget_all" }

// PingRequest keeps the connection alive.
type PingRequest struct {
	Ping int `json:"ping"`
}

// MsgType implements Request.
func (PingRequest) MsgType() string { return "ping" }

func validateStruct(r any, what string) error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid %s request", what)
	}

	return nil
}
