package execution

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-exec/internal/exchange"
	"futures-exec/internal/trade"
)

// PlaceMarket 提交单笔市价单。
func PlaceMarket(ctx context.Context, gateway exchange.Gateway, intent trade.TradeIntent, logger *zap.Logger) (trade.Order, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("提交市价单",
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.String("qty", intent.Quantity.String()),
	)

	return gateway.PlaceOrder(ctx, trade.OrderRequest{
		Symbol:   intent.Symbol,
		Side:     intent.Side,
		Type:     trade.TypeMarket,
		Quantity: intent.Quantity,
	})
}

// PlaceLimit 提交单笔 GTC 限价单。
func PlaceLimit(ctx context.Context, gateway exchange.Gateway, intent trade.TradeIntent, price decimal.Decimal, logger *zap.Logger) (trade.Order, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("提交限价单",
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.String("qty", intent.Quantity.String()),
		zap.String("price", price.String()),
	)

	return gateway.PlaceOrder(ctx, trade.OrderRequest{
		Symbol:      intent.Symbol,
		Side:        intent.Side,
		Type:        trade.TypeLimit,
		Quantity:    intent.Quantity,
		Price:       price,
		TimeInForce: "GTC",
	})
}
