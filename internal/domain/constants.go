package domain

// Trade sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order types
const (
	OrderTypeMarket          = "MARKET"
	OrderTypeStopLossLimit   = "STOP_LOSS_LIMIT"
	OrderTypeTakeProfitLimit = "TAKE_PROFIT_LIMIT"
)

// Conditional order kinds
const (
	OrderKindStopLoss   = "STOP_LOSS"
	OrderKindTakeProfit = "TAKE_PROFIT"
)

// Session statuses
const (
	SessionUnconfigured = "UNCONFIGURED"
	SessionReady        = "READY"
	SessionRunning      = "RUNNING"
	SessionFinished     = "FINISHED"
	SessionFailed       = "FAILED"
)

// ReportHistoryLimit ограничивает длину истории отчетов сессии
const ReportHistoryLimit = 5

// Binance constants
const (
	BinanceRecvWindow = "5000"
	TimeInForceGTC    = "GTC"
	DefaultQuoteAsset = "USDT"
)
