package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/rxtech-lab/argo-charts/internal/version"
	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	streamFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "symbol",
			Aliases: []string{"s"},
			Usage:   "Symbol to stream (e.g. R_100). Defaults to chart.symbol",
		},
		&cli.IntFlag{
			Name:    "granularity",
			Aliases: []string{"g"},
			Usage:   "Candle size in seconds, 0 for ticks. Defaults to chart.granularity",
		},
		&cli.StringFlag{
			Name:  "style",
			Usage: "ticks or candles. Derived from the granularity when omitted",
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "Number of history points. Defaults to chart.count",
		},
		&cli.BoolFlag{
			Name:  "once",
			Usage: "Fetch the history snapshot without subscribing",
		},
	}

	return &cli.Command{
		Name:    "argo-chart",
		Usage:   "Live tick and candle charts for the terminal",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Sources: cli.EnvVars("ARGO_CHART_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "Websocket URL of the tick API",
				Sources: cli.EnvVars("ARGO_CHART_ENDPOINT"),
			},
			&cli.IntFlag{
				Name:    "app-id",
				Usage:   "Application id sent with every connection",
				Sources: cli.EnvVars("ARGO_CHART_APP_ID"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. :9090)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "view",
				Usage:  "Open the interactive chart",
				Action: viewAction,
			},
			{
				Name:   "stream",
				Usage:  "Print the history snapshot and every update until interrupted",
				Flags:  streamFlags,
				Action: streamAction,
			},
			{
				Name:  "symbols",
				Usage: "List active symbols",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "product-type",
						Usage: "Restrict to a product type (e.g. basic)",
					},
				},
				Action: symbolsAction,
			},
			{
				Name:   "time",
				Usage:  "Print the server time",
				Action: timeAction,
			},
			{
				Name:  "trading-times",
				Usage: "Print market opening and closing times",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "Date in `YYYY-MM-DD` format or today",
						Value: "today",
					},
				},
				Action: tradingTimesAction,
			},
			{
				Name:  "config",
				Usage: "Configuration helpers",
				Commands: []*cli.Command{
					{
						Name:   "schema",
						Usage:  "Print the JSON schema of the config file",
						Action: schemaAction,
					},
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(fmt.Errorf("argo-chart: %w", err))
	}
}
