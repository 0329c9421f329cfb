package trade

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side 表示下单方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite 返回相反方向。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType 表示订单类型。
type OrderType string

const (
	TypeMarket     OrderType = "MARKET"
	TypeLimit      OrderType = "LIMIT"
	TypeStopMarket OrderType = "STOP_MARKET"
)

// Status 表示订单状态。DRY_RUN 为模拟模式下的合成终态，真实链路中不会出现。
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusFilled    Status = "FILLED"
	StatusCancelled Status = "CANCELLED"
	StatusError     Status = "ERROR"
	StatusDryRun    Status = "DRY_RUN"
)

// TradeIntent 描述一次经过校验的交易意图，构造完成后不再修改。
type TradeIntent struct {
	Symbol   string
	Side     Side
	Quantity decimal.Decimal
}

// OrderRequest 描述一次下单请求。Price 仅对 LIMIT 生效，StopPrice 仅对 STOP_MARKET 生效。
type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	StopPrice   decimal.Decimal
	TimeInForce string
}

// Order 为交易所返回（或模拟生成）的订单记录，状态只能通过显式查询刷新。
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      OrderType
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	StopPrice decimal.Decimal
	Status    Status
	CreatedAt time.Time
}
