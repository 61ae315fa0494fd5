package transport

import (
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-charts/pkg/errors"
)

// Options configures a WebSocketClient.
type Options struct {
	Endpoint          string        `validate:"required,url"`
	AppID             int           `validate:"required,min=1"`
	Language          string        `validate:"omitempty,len=2"`
	HandshakeTimeout  time.Duration `validate:"min=0"`
	RequestTimeout    time.Duration `validate:"required,min=1ms"`
	KeepaliveInterval time.Duration `validate:"min=0"`
	ReconnectAttempts int           `validate:"min=0,max=100"`
	ReconnectDelay    time.Duration `validate:"min=0"`
	FrameBuffer       int           `validate:"required,min=1"`
}

// DefaultOptions returns options pointing at endpoint with the stock timeouts.
func DefaultOptions(endpoint string, appID int) Options {
	return Options{
		Endpoint:          endpoint,
		AppID:             appID,
		Language:          "en",
		HandshakeTimeout:  10 * time.Second,
		RequestTimeout:    30 * time.Second,
		KeepaliveInterval: 30 * time.Second,
		ReconnectAttempts: 3,
		ReconnectDelay:    time.Second,
		FrameBuffer:       256,
	}
}

// Validate checks the option fields.
func (o Options) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid transport options", err)
	}

	return nil
}

// URL is the endpoint with the app_id and language query parameters applied.
func (o Options) URL() (string, error) {
	u, err := url.Parse(o.Endpoint)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid endpoint", err)
	}

	q := u.Query()
	q.Set("app_id", strconv.Itoa(o.AppID))
	if o.Language != "" {
		q.Set("l", o.Language)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
