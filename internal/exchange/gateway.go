package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"futures-exec/internal/trade"
)

// Gateway 抽象交易所订单接口。真实客户端与模拟器都实现它，
// 策略层只依赖该接口，两者返回同一种订单记录，仅状态字段不同。
type Gateway interface {
	// PlaceOrder 提交订单。
	PlaceOrder(ctx context.Context, req trade.OrderRequest) (trade.Order, error)
	// QueryOrder 查询订单当前状态。
	QueryOrder(ctx context.Context, symbol, orderID string) (trade.Order, error)
	// CancelOrder 撤销订单。
	CancelOrder(ctx context.Context, symbol, orderID string) error
	// MarkPrice 获取最新行情价。
	MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	// Live 报告该网关是否会产生真实网络调用。
	Live() bool
}
