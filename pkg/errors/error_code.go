package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 102
	ErrCodeInvalidVersion       ErrorCode = 103

	// Transport errors (200-299)
	ErrCodeNotConnected     ErrorCode = 200
	ErrCodeConnectionFailed ErrorCode = 201
	ErrCodeConnectionClosed ErrorCode = 202
	ErrCodeSendFailed       ErrorCode = 203
	ErrCodeRequestTimeout   ErrorCode = 204

	// Protocol errors (300-399)
	ErrCodeAPIError            ErrorCode = 300
	ErrCodeDecodeFailed        ErrorCode = 301
	ErrCodeMissingSubscription ErrorCode = 302

	// Subscription errors (400-499)
	ErrCodeStaleResponse    ErrorCode = 400
	ErrCodeMediatorDisposed ErrorCode = 401
	ErrCodeForgetFailed     ErrorCode = 402
)
