package apperror

var messages = map[Code]string{
	CodeInvalidFormat:      "Invalid data format",
	CodeNotFound:           "Resource not found",
	CodeConfigurationError: "Configuration error",
	CodeRateLimitExceeded:  "Rate limit exceeded",
	CodeInternalError:      "Internal error",
	CodeUnknownError:       "An unknown error occurred",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	CodeStreamDisconnected:  "Market data stream disconnected",
	CodeResyncFailed:        "Order book resync failed after retries",
	CodeSnapshotFetchFailed: "Failed to fetch order book snapshot",
	CodeMalformedMessage:    "Malformed market data message",
	CodeBookUnavailable:     "Order book not synchronized",
	CodeInvalidOrderbook:    "Invalid orderbook data",
	CodeTickSizeUnavailable: "Tick size unavailable",
	CodeExchangeAPIError:    "Exchange API error",
	CodeCircuitOpen:         "Circuit breaker is open",

	CodeInsufficientLiquidity: "Insufficient liquidity for trade size",
	CodeInvalidTradeSize:      "Invalid trade size",
	CodeConversionUnavailable: "No price source could convert the asset",
	CodeFeeScheduleInvalid:    "Fee schedule document is invalid",
	CodeFeeScheduleNotFound:   "No fee schedule for exchange",

	CodeAuditWriteFailed: "Failed to write comparison audit record",
}
