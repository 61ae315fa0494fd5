// Package config loads the argo-chart YAML configuration.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/argo-charts/internal/version"
	"github.com/rxtech-lab/argo-charts/pkg/chartapi"
	"github.com/rxtech-lab/argo-charts/pkg/errors"
	"github.com/rxtech-lab/argo-charts/pkg/transport"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEndpoint       = "wss://ws.derivws.com/websockets/v3"
	DefaultAppID          = 1089
	DefaultTradingViewURL = "https://charts.deriv.com/deriv"
)

// Config is the root of the configuration file.
type Config struct {
	Version   string          `yaml:"version" jsonschema:"title=Version,description=Version of argo-chart the file was written for,example=1.0.0"`
	Endpoint  string          `yaml:"endpoint" jsonschema:"title=Endpoint,description=Websocket URL of the tick API,required" validate:"required,url"`
	AppID     int             `yaml:"app_id" jsonschema:"title=App ID,description=Application id sent as the app_id query parameter,required,minimum=1" validate:"required,min=1"`
	Language  string          `yaml:"language" jsonschema:"title=Language,description=Two letter language code sent as the l query parameter" validate:"omitempty,len=2"`
	Chart     ChartConfig     `yaml:"chart" jsonschema:"title=Chart"`
	Transport TransportConfig `yaml:"transport" jsonschema:"title=Transport"`
	Log       LogConfig       `yaml:"log" jsonschema:"title=Log"`
}

// ChartConfig is the stream the chart opens on start.
type ChartConfig struct {
	Symbol         string         `yaml:"symbol" jsonschema:"title=Symbol,description=Symbol to chart (e.g. R_100),required" validate:"required"`
	Granularity    int            `yaml:"granularity" jsonschema:"title=Granularity,description=Candle size in seconds; 0 streams ticks,enum=0,enum=60,enum=120,enum=180,enum=300,enum=600,enum=900,enum=1800,enum=3600,enum=7200,enum=14400,enum=28800,enum=86400" validate:"oneof=0 60 120 180 300 600 900 1800 3600 7200 14400 28800 86400"`
	Style          chartapi.Style `yaml:"style" jsonschema:"title=Style,enum=ticks,enum=candles" validate:"omitempty,oneof=ticks candles"`
	Count          int            `yaml:"count" jsonschema:"title=Count,description=Number of history points to request,minimum=1,maximum=5000" validate:"min=1,max=5000"`
	TradingViewURL string         `yaml:"trading_view_url" jsonschema:"title=Trading View URL,description=External chart shown by the Trading View toggle" validate:"omitempty,url"`
}

// TransportConfig tunes the websocket client.
type TransportConfig struct {
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout" jsonschema:"title=Handshake Timeout,type=string,example=10s" validate:"min=0"`
	RequestTimeout    time.Duration `yaml:"request_timeout" jsonschema:"title=Request Timeout,type=string,example=30s" validate:"required,min=1ms"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval" jsonschema:"title=Keepalive Interval,description=0 disables pings,type=string,example=30s" validate:"min=0"`
	ReconnectAttempts int           `yaml:"reconnect_attempts" jsonschema:"title=Reconnect Attempts,minimum=0,maximum=100" validate:"min=0,max=100"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" jsonschema:"title=Reconnect Delay,type=string,example=1s" validate:"min=0"`
	FrameBuffer       int           `yaml:"frame_buffer" jsonschema:"title=Frame Buffer,description=Push frames buffered per listener before dropping,minimum=1" validate:"min=1"`
}

// LogConfig selects the zap configuration.
type LogConfig struct {
	Level       string `yaml:"level" jsonschema:"title=Level,enum=debug,enum=info,enum=warn,enum=error" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development" jsonschema:"title=Development,description=Use the console encoder"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	defaults := transport.DefaultOptions(DefaultEndpoint, DefaultAppID)

	return Config{
		Version:  version.GetVersion(),
		Endpoint: DefaultEndpoint,
		AppID:    DefaultAppID,
		Language: defaults.Language,
		Chart: ChartConfig{
			Symbol:         "R_100",
			Granularity:    0,
			Style:          chartapi.StyleTicks,
			Count:          1000,
			TradingViewURL: DefaultTradingViewURL,
		},
		Transport: TransportConfig{
			HandshakeTimeout:  defaults.HandshakeTimeout,
			RequestTimeout:    defaults.RequestTimeout,
			KeepaliveInterval: defaults.KeepaliveInterval,
			ReconnectAttempts: defaults.ReconnectAttempts,
			ReconnectDelay:    defaults.ReconnectDelay,
			FrameBuffer:       defaults.FrameBuffer,
		},
		Log: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Load reads and validates the file at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()

		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and that the file's version is loadable by this binary.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if c.Chart.Style == chartapi.StyleCandles && c.Chart.Granularity == 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "candles style requires a non-zero granularity")
	}

	if c.Chart.Style == chartapi.StyleTicks && c.Chart.Granularity != 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "ticks style requires granularity 0")
	}

	return version.CheckConfigCompatibility(version.GetVersion(), c.Version)
}

// TransportOptions converts the transport section into websocket client options.
func (c *Config) TransportOptions() transport.Options {
	return transport.Options{
		Endpoint:          c.Endpoint,
		AppID:             c.AppID,
		Language:          c.Language,
		HandshakeTimeout:  c.Transport.HandshakeTimeout,
		RequestTimeout:    c.Transport.RequestTimeout,
		KeepaliveInterval: c.Transport.KeepaliveInterval,
		ReconnectAttempts: c.Transport.ReconnectAttempts,
		ReconnectDelay:    c.Transport.ReconnectDelay,
		FrameBuffer:       c.Transport.FrameBuffer,
	}
}

// StreamRequest is the live request for the configured chart.
func (c *Config) StreamRequest() chartapi.TicksHistoryRequest {
	return chartapi.NewTicksHistoryRequest(c.Chart.Symbol, c.Chart.Granularity, c.Chart.Count, true)
}

// Schema returns the JSON schema of the configuration file.
func Schema() (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	r.FieldNameTag = "yaml"
	//nolint:exhaustruct // Empty struct is intentional for schema generation
	schema := r.Reflect(Config{})

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}
