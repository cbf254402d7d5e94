package httpengine

import "errors"

// Parser errors.
var (
	ErrInvalidRequestLine = errors.New("httpengine: invalid request line")
	ErrInvalidMethod      = errors.New("httpengine: invalid HTTP method")
	ErrInvalidPath        = errors.New("httpengine: invalid request path")
	ErrInvalidProtocol    = errors.New("httpengine: invalid or unsupported protocol version")
	ErrInvalidHeader      = errors.New("httpengine: invalid HTTP header")
	ErrHeaderTooLarge     = errors.New("httpengine: header name or value too large")
	ErrTooManyHeaders     = errors.New("httpengine: too many headers")
	ErrRequestLineTooLarge = errors.New("httpengine: request line too large")
	ErrHeadersTooLarge    = errors.New("httpengine: headers too large")
	ErrChunkedEncoding    = errors.New("httpengine: chunked encoding error")
	ErrInvalidContentLength = errors.New("httpengine: invalid Content-Length")

	// ErrContentLengthWithTransferEncoding and ErrDuplicateContentLength
	// guard the two classic HTTP request-smuggling vectors (RFC 7230
	// §3.3.3): a request MUST NOT carry both Content-Length and
	// Transfer-Encoding, and MUST NOT carry two different
	// Content-Length values.
	ErrContentLengthWithTransferEncoding = errors.New("httpengine: request carries both Content-Length and Transfer-Encoding")
	ErrDuplicateContentLength            = errors.New("httpengine: duplicate Content-Length headers with different values")

	ErrURITooLong     = errors.New("httpengine: URI too long")
	ErrUnexpectedEOF  = errors.New("httpengine: unexpected EOF")
	ErrBufferTooSmall = errors.New("httpengine: buffer too small")
	ErrPayloadTooLarge = errors.New("httpengine: payload too large")
)

// Connection errors.
var (
	ErrConnectionClosed    = errors.New("httpengine: connection closed")
	ErrTimeout             = errors.New("httpengine: timeout")
	ErrMaxRequestsExceeded = errors.New("httpengine: max requests per connection exceeded")
)

// Response errors.
var (
	ErrHeadersAlreadyWritten = errors.New("httpengine: headers already written")
	ErrInvalidStatusCode     = errors.New("httpengine: invalid status code")
)

// ErrTerminateConnection is returned by a Handler (wrapped with an
// optional status) to signal the connection engine to close after the
// current response, per spec.md §7's "Handler-signaled" error kind.
var ErrTerminateConnection = errors.New("httpengine: handler requested connection termination")
