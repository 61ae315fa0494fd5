package chartapi

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rxtech-lab/argo-charts/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ChartAPITestSuite struct {
	suite.Suite
}

func TestChartAPISuite(t *testing.T) {
	suite.Run(t, new(ChartAPITestSuite))
}

func (suite *ChartAPITestSuite) TestNewTicksHistoryRequest() {
	tests := []struct {
		name        string
		granularity int
		subscribe   bool
		wantStyle   Style
		wantMsgType string
		wantSub     int
	}{
		{name: "ticks stream", granularity: 0, subscribe: true, wantStyle: StyleTicks, wantMsgType: "history", wantSub: 1},
		{name: "ticks snapshot", granularity: 0, subscribe: false, wantStyle: StyleTicks, wantMsgType: "history", wantSub: 0},
		{name: "one minute candles", granularity: 60, subscribe: true, wantStyle: StyleCandles, wantMsgType: "candles", wantSub: 1},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			req := NewTicksHistoryRequest("R_100", tc.granularity, 1000, tc.subscribe)
			suite.Equal("R_100", req.TicksHistory)
			suite.Equal(tc.wantStyle, req.Style)
			suite.Equal(tc.wantMsgType, req.MsgType())
			suite.Equal(tc.wantSub, req.Subscribe)
			suite.Equal(tc.subscribe, req.IsSubscribe())
			suite.Equal(EndLatest, req.End)
			suite.Equal(1, req.AdjustStartTime)
			suite.NoError(req.Validate())
		})
	}
}

func (suite *ChartAPITestSuite) TestStreamCategory() {
	suite.Equal(CategoryTicks, NewTicksHistoryRequest("R_50", 0, 10, true).StreamCategory())
	suite.Equal(CategoryCandles, NewTicksHistoryRequest("R_50", 300, 10, true).StreamCategory())
}

func (suite *ChartAPITestSuite) TestValidate() {
	tests := []struct {
		name   string
		mutate func(r *TicksHistoryRequest)
	}{
		{name: "missing symbol", mutate: func(r *TicksHistoryRequest) { r.TicksHistory = "" }},
		{name: "subscribe out of range", mutate: func(r *TicksHistoryRequest) { r.Subscribe = 2 }},
		{name: "unknown style", mutate: func(r *TicksHistoryRequest) { r.Style = "bars" }},
		{name: "unsupported granularity", mutate: func(r *TicksHistoryRequest) { r.Granularity = 61 }},
		{name: "candles without granularity", mutate: func(r *TicksHistoryRequest) { r.Style = StyleCandles; r.Granularity = 0 }},
		{name: "count too large", mutate: func(r *TicksHistoryRequest) { r.Count = 5001 }},
		{name: "missing end", mutate: func(r *TicksHistoryRequest) { r.End = "" }},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			req := NewTicksHistoryRequest("R_100", 0, 100, true)
			tc.mutate(&req)
			err := req.Validate()
			suite.Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
		})
	}
}

func (suite *ChartAPITestSuite) TestRequestJSONShape() {
	req := NewTicksHistoryRequest("R_100", 0, 1000, true)
	data, err := json.Marshal(req)
	suite.Require().NoError(err)

	var fields map[string]any
	suite.Require().NoError(json.Unmarshal(data, &fields))
	suite.Equal("R_100", fields["ticks_history"])
	suite.Equal("latest", fields["end"])
	suite.Equal("ticks", fields["style"])
	suite.EqualValues(1, fields["subscribe"])
	suite.EqualValues(1000, fields["count"])
	suite.NotContains(fields, "granularity")
	suite.NotContains(fields, "req_id")
}

func (suite *ChartAPITestSuite) TestAuxiliaryMsgTypes() {
	suite.Equal("active_symbols", ActiveSymbolsRequest{ActiveSymbols: "brief"}.MsgType())
	suite.Equal("time", ServerTimeRequest{Time: 1}.MsgType())
	suite.Equal("trading_times", TradingTimesRequest{TradingTimes: "today"}.MsgType())
	suite.Equal("forget", ForgetRequest{Forget: "abc"}.MsgType())
	suite.Equal("forget_all", ForgetAllRequest{ForgetAll: []string{"ticks"}}.MsgType())
	suite.Equal("ping", PingRequest{Ping: 1}.MsgType())
}

func (suite *ChartAPITestSuite) TestDecodeHistoryWithSubscription() {
	raw := []byte(`{
		"msg_type": "history",
		"req_id": 7,
		"echo_req": {"ticks_history": "R_100"},
		"history": {"prices": [101.25, 101.5], "times": [1700000002, 1700000001]},
		"subscription": {"id": "sub-1"}
	}`)

	resp, err := Decode(raw)
	suite.Require().NoError(err)
	suite.Equal("history", resp.MsgType)
	suite.EqualValues(7, resp.ReqID)
	suite.NoError(resp.Err())
	suite.True(resp.SubscriptionID().IsSome())
	suite.Equal("sub-1", resp.SubscriptionID().Unwrap())
	suite.JSONEq(string(raw), string(resp.Raw))

	points := resp.Points()
	suite.Require().Len(points, 2)
	suite.EqualValues(1700000001, points[0].Time.Unix())
	suite.True(points[0].Close.Equal(decimal.RequireFromString("101.5")))
	suite.True(points[1].Open.Equal(decimal.RequireFromString("101.25")))
}

func (suite *ChartAPITestSuite) TestDecodeCandlesAndOHLC() {
	resp, err := Decode([]byte(`{
		"msg_type": "candles",
		"candles": [{"epoch": 60, "open": "1.0", "high": "2.0", "low": "0.5", "close": "1.5"}]
	}`))
	suite.Require().NoError(err)
	suite.True(resp.SubscriptionID().IsNone())
	points := resp.Points()
	suite.Require().Len(points, 1)
	suite.True(points[0].High.Equal(decimal.NewFromInt(2)))

	push, err := Decode([]byte(`{
		"msg_type": "ohlc",
		"ohlc": {"id": "sub-9", "symbol": "R_50", "open_time": 120, "open": "3", "high": "4", "low": "2", "close": "3.5"}
	}`))
	suite.Require().NoError(err)
	suite.Equal("sub-9", push.SubscriptionID().Unwrap())
	suite.Require().Len(push.Points(), 1)
	suite.EqualValues(120, push.Points()[0].Time.Unix())
}

func (suite *ChartAPITestSuite) TestDecodeTickPrefersSubscriptionBlock() {
	resp, err := Decode([]byte(`{
		"msg_type": "tick",
		"tick": {"id": "tick-id", "symbol": "R_100", "epoch": 5, "quote": 10.1},
		"subscription": {"id": "sub-id"}
	}`))
	suite.Require().NoError(err)
	suite.Equal("sub-id", resp.SubscriptionID().Unwrap())
}

func (suite *ChartAPITestSuite) TestDecodeInvalidJSON() {
	_, err := Decode([]byte(`{"msg_type":`))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDecodeFailed))
}

func (suite *ChartAPITestSuite) TestErrorEnvelope() {
	resp, err := Decode([]byte(`{
		"msg_type": "history",
		"error": {"code": "MarketIsClosed", "message": "This market is presently closed."}
	}`))
	suite.Require().NoError(err)

	apiErr := resp.Err()
	suite.Require().Error(apiErr)
	suite.Equal("MarketIsClosed: This market is presently closed.", apiErr.Error())
	suite.True(IsMarketClosed(apiErr))
	suite.True(IsMarketClosed(fmt.Errorf("subscribe: %w", apiErr)))
	suite.True(IsMarketClosed(errors.Wrap(errors.ErrCodeAPIError, "request failed", apiErr)))
}

func (suite *ChartAPITestSuite) TestIsMarketClosedRejectsOtherErrors() {
	suite.False(IsMarketClosed(nil))
	suite.False(IsMarketClosed(&APIError{Code: "InvalidSymbol", Message: "Symbol R_0 invalid"}))
	suite.False(IsMarketClosed(errors.New(errors.ErrCodeRequestTimeout, "timeout")))
}

func (suite *ChartAPITestSuite) TestNilResponseHelpers() {
	var resp *Response
	suite.NoError(resp.Err())
	suite.True(resp.SubscriptionID().IsNone())
	suite.Nil(resp.Points())
}
