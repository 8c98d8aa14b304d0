package apperror

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeInvalidFormat      Code = "INVALID_FORMAT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

// Market data
const (
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	CodeStreamDisconnected  Code = "STREAM_DISCONNECTED"
	CodeResyncFailed        Code = "RESYNC_FAILED"
	CodeSnapshotFetchFailed Code = "SNAPSHOT_FETCH_FAILED"
	CodeMalformedMessage    Code = "MALFORMED_MESSAGE"
	CodeBookUnavailable     Code = "BOOK_UNAVAILABLE"
	CodeInvalidOrderbook    Code = "INVALID_ORDERBOOK"
	CodeTickSizeUnavailable Code = "TICK_SIZE_UNAVAILABLE"
	CodeExchangeAPIError    Code = "EXCHANGE_API_ERROR"
	CodeCircuitOpen         Code = "CIRCUIT_OPEN"
)

// Cost simulation. These are per-exchange outcomes reported alongside the
// ranking, not process failures.
const (
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeInvalidTradeSize      Code = "INVALID_TRADE_SIZE"
	CodeConversionUnavailable Code = "CONVERSION_UNAVAILABLE"
	CodeFeeScheduleInvalid    Code = "FEE_SCHEDULE_INVALID"
	CodeFeeScheduleNotFound   Code = "FEE_SCHEDULE_NOT_FOUND"
)

const CodeAuditWriteFailed Code = "AUDIT_WRITE_FAILED"
