package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrInvalidAlbum indicates a feed entry or cached row could not form a valid Album
	ErrInvalidAlbum = errors.New("invalid album")

	// ErrAlbumNotFound indicates the requested album is not in the cache
	ErrAlbumNotFound = errors.New("album not found")

	// ErrStoreClosed indicates the album store has been closed
	ErrStoreClosed = errors.New("album store is closed")
)

// ErrorKind enumerates the closed set of album failures.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota + 1
	KindTimeout
	KindAPI
	KindParse
	KindEmptyResponse
	KindCache
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAPI:
		return "api"
	case KindParse:
		return "parse"
	case KindEmptyResponse:
		return "empty_response"
	case KindCache:
		return "cache"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

const defaultNetworkMessage = "Network connection failed"

// User-facing messages, one per kind.
const (
	msgNetwork       = "Please check your internet connection"
	msgTimeout       = "Connection timeout. Please try again"
	msgAPI           = "Service temporarily unavailable"
	msgParse         = "Something went wrong. Please try again"
	msgEmptyResponse = "No albums found"
	msgCache         = "Please try again"
)

// AlbumError is the typed failure carried by Result.
// Only the constructors below produce valid values.
type AlbumError struct {
	Kind    ErrorKind
	Code    int    // HTTP status, KindAPI only
	Message string // Diagnostic detail, not shown to users
	Err     error  // Underlying cause, may be nil
}

// NetworkError reports a generic transport failure
func NetworkError(message string) *AlbumError {
	if message == "" {
		message = defaultNetworkMessage
	}
	return &AlbumError{Kind: KindNetwork, Message: message}
}

// TimeoutError reports a request that exceeded its deadline
func TimeoutError() *AlbumError {
	return &AlbumError{Kind: KindTimeout, Message: "request timeout"}
}

// APIError reports a non-2xx HTTP response
func APIError(code int, message string) *AlbumError {
	return &AlbumError{Kind: KindAPI, Code: code, Message: message}
}

// ParseError reports a response body that could not be decoded
func ParseError(message string) *AlbumError {
	return &AlbumError{Kind: KindParse, Message: message}
}

// EmptyResponseError reports a response with no usable albums
func EmptyResponseError() *AlbumError {
	return &AlbumError{Kind: KindEmptyResponse, Message: "no albums in response"}
}

// CacheError reports a local store failure
func CacheError() *AlbumError {
	return &AlbumError{Kind: KindCache, Message: "album cache unavailable"}
}

// WithCause attaches the underlying error and returns e
func (e *AlbumError) WithCause(err error) *AlbumError {
	e.Err = err
	return e
}

func (e *AlbumError) Error() string {
	switch {
	case e.Kind == KindAPI && e.Code != 0:
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

func (e *AlbumError) Unwrap() error {
	return e.Err
}

// Is matches another *AlbumError of the same kind, so
// errors.Is(err, EmptyResponseError()) works regardless of message.
func (e *AlbumError) Is(target error) bool {
	t, ok := target.(*AlbumError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// UserMessage maps the error to the single message shown for its kind.
// Unknown kinds fall back to the network message.
func (e *AlbumError) UserMessage() string {
	if e == nil {
		return msgNetwork
	}
	switch e.Kind {
	case KindNetwork:
		return msgNetwork
	case KindTimeout:
		return msgTimeout
	case KindAPI:
		return msgAPI
	case KindParse:
		return msgParse
	case KindEmptyResponse:
		return msgEmptyResponse
	case KindCache:
		return msgCache
	default:
		return msgNetwork
	}
}

// AsAlbumError extracts an *AlbumError from err, converting anything
// else into a generic network error. It returns nil for a nil err.
func AsAlbumError(err error) *AlbumError {
	if err == nil {
		return nil
	}
	var ae *AlbumError
	if errors.As(err, &ae) {
		return ae
	}
	return NetworkError(err.Error()).WithCause(err)
}
