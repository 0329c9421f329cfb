package execution

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-exec/internal/exchange"
	"futures-exec/internal/trade"
)

// defaultGridPrecision 为网格价位保留的小数位默认值。
const defaultGridPrecision int32 = 2

// BuildLevels 计算含两端在内的 Steps+1 个等距价位，各价位按配置精度取整。
func BuildLevels(spec GridSpec) ([]decimal.Decimal, error) {
	if spec.Low.Sign() <= 0 || spec.High.Sign() <= 0 {
		return nil, errors.New("execution: 网格边界价格必须大于0")
	}
	if !spec.Low.LessThan(spec.High) {
		return nil, errors.New("execution: 网格下界必须小于上界")
	}
	if spec.Steps <= 0 {
		return nil, errors.New("execution: 网格步数必须大于0")
	}

	precision := spec.Precision
	if precision <= 0 {
		precision = defaultGridPrecision
	}

	step := spec.High.Sub(spec.Low).Div(decimal.NewFromInt(int64(spec.Steps)))
	levels := make([]decimal.Decimal, 0, spec.Steps+1)
	for i := 0; i <= spec.Steps; i++ {
		price := spec.Low.Add(step.Mul(decimal.NewFromInt(int64(i)))).Round(precision)
		levels = append(levels, price)
	}
	return levels, nil
}

// GridBuilder 在价格区间内静态挂出一组买入限价单。不做动态调仓。
type GridBuilder struct {
	gateway exchange.Gateway
	logger  *zap.Logger
}

// NewGridBuilder 创建网格执行器。
func NewGridBuilder(gateway exchange.Gateway, logger *zap.Logger) *GridBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GridBuilder{
		gateway: gateway,
		logger:  logger,
	}
}

// Run 依次在每个价位挂出买入限价单。单个价位失败只记录该价位，继续挂剩余价位。
// 校验失败在任何下单之前返回。
func (g *GridBuilder) Run(ctx context.Context, spec GridSpec) ([]LevelResult, error) {
	if spec.Quantity.Sign() <= 0 {
		return nil, errors.New("execution: 单格数量必须大于0")
	}

	levels, err := BuildLevels(spec)
	if err != nil {
		return nil, err
	}

	g.logger.Info("开始网格挂单",
		zap.String("symbol", spec.Symbol),
		zap.String("low", spec.Low.String()),
		zap.String("high", spec.High.String()),
		zap.Int("levels", len(levels)),
		zap.String("qty", spec.Quantity.String()),
	)

	results := make([]LevelResult, 0, len(levels))
	for i, price := range levels {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return results, ctxErr
		}

		order, placeErr := g.gateway.PlaceOrder(ctx, trade.OrderRequest{
			Symbol:      spec.Symbol,
			Side:        trade.SideBuy,
			Type:        trade.TypeLimit,
			Quantity:    spec.Quantity,
			Price:       price,
			TimeInForce: "GTC",
		})
		if placeErr != nil {
			g.logger.Error("网格价位挂单失败，继续后续价位",
				zap.Int("level", i),
				zap.String("price", price.String()),
				zap.Error(placeErr),
			)
			results = append(results, LevelResult{Index: i, Price: price, Err: placeErr})
			continue
		}

		results = append(results, LevelResult{Index: i, Price: price, Order: order})
	}

	return results, nil
}
