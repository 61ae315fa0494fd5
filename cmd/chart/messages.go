package main

import "github.com/rxtech-lab/argo-charts/pkg/chart"

// ChartDataMsg carries a snapshot or update delivered by the mediator.
type ChartDataMsg struct {
	Symbol      string
	Granularity int
	Data        chart.Data
}

// SubscribedMsg reports how a Subscribe call ended.
type SubscribedMsg struct {
	Symbol      string
	Granularity int
	Result      chart.Result
}

// StreamErrorMsg indicates an error in the data stream.
type StreamErrorMsg struct {
	Err error
}
