package execution

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-exec/internal/exchange"
	"futures-exec/internal/trade"
)

// qtyPrecision 为数量保留的小数位，与交易所最小数量步进对齐。
const qtyPrecision = 8

// Slicer 按 TWAP 方式把总量切分为等间隔的市价单序列。
// 单个分片失败只记录该片，调度继续执行剩余分片。
type Slicer struct {
	gateway exchange.Gateway
	logger  *zap.Logger
}

// NewSlicer 创建 TWAP 执行器。
func NewSlicer(gateway exchange.Gateway, logger *zap.Logger) *Slicer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Slicer{
		gateway: gateway,
		logger:  logger,
	}
}

// BuildSchedule 计算切分计划：单片数量向下取整到8位小数，
// 取整产生的余量全部归入最后一个分片，保证总量精确不变。
func BuildSchedule(total decimal.Decimal, chunks int, duration time.Duration) (SliceSchedule, error) {
	if chunks <= 0 {
		return SliceSchedule{}, errors.New("execution: 分片数必须大于0")
	}
	if duration < 0 {
		return SliceSchedule{}, errors.New("execution: 执行时长不能为负")
	}
	if total.Sign() <= 0 {
		return SliceSchedule{}, errors.New("execution: 总量必须大于0")
	}

	n := decimal.NewFromInt(int64(chunks))
	// 整数路径做除法，确保向下取整不受除法精度影响
	chunkQty := total.Shift(qtyPrecision).Div(n).Floor().Shift(-qtyPrecision)
	if chunkQty.Sign() <= 0 {
		return SliceSchedule{}, errors.New("execution: 总量过小，无法按该分片数切分")
	}
	remainder := total.Sub(chunkQty.Mul(n))

	return SliceSchedule{
		Total:     total,
		Chunks:    chunks,
		Duration:  duration,
		ChunkQty:  chunkQty,
		Remainder: remainder,
		Interval:  duration / time.Duration(chunks),
	}, nil
}

// Run 顺序执行全部分片。分片之间按固定间隔等待，最后一片之后不再等待。
// 间隔是简单延时，不做相对起始时间的漂移校正。
func (s *Slicer) Run(ctx context.Context, intent trade.TradeIntent, chunks int, duration time.Duration) ([]ChunkResult, error) {
	sched, err := BuildSchedule(intent.Quantity, chunks, duration)
	if err != nil {
		return nil, err
	}

	s.logger.Info("开始 TWAP 执行",
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.String("total", sched.Total.String()),
		zap.Int("chunks", sched.Chunks),
		zap.Duration("interval", sched.Interval),
	)

	results := make([]ChunkResult, 0, sched.Chunks)
	for i := 1; i <= sched.Chunks; i++ {
		qty := sched.ChunkQty
		if i == sched.Chunks {
			qty = qty.Add(sched.Remainder)
		}

		order, placeErr := s.gateway.PlaceOrder(ctx, trade.OrderRequest{
			Symbol:   intent.Symbol,
			Side:     intent.Side,
			Type:     trade.TypeMarket,
			Quantity: qty,
		})
		if placeErr != nil {
			results = append(results, ChunkResult{Index: i, Quantity: qty, Err: placeErr})
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}
			s.logger.Error("TWAP 分片下单失败，继续后续分片",
				zap.Int("chunk", i),
				zap.Int("chunks", sched.Chunks),
				zap.Error(placeErr),
			)
		} else {
			results = append(results, ChunkResult{Index: i, Quantity: qty, Order: order})
			s.logger.Info("TWAP 分片完成",
				zap.Int("chunk", i),
				zap.Int("chunks", sched.Chunks),
				zap.String("qty", qty.String()),
				zap.String("order_id", order.ID),
			)
		}

		if i < sched.Chunks && sched.Interval > 0 {
			timer := time.NewTimer(sched.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return results, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return results, nil
}
