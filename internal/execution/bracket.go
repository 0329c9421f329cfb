package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-exec/internal/exchange"
	"futures-exec/internal/trade"
)

// BracketOutcome 表示监视循环的终态。
type BracketOutcome string

const (
	// OutcomeTakeProfit 止盈腿成交，止损腿已撤销。
	OutcomeTakeProfit BracketOutcome = "CLOSED_TP"
	// OutcomeStopLoss 止损腿成交，止盈腿已撤销。
	OutcomeStopLoss BracketOutcome = "CLOSED_SL"
	// OutcomeSimulated 模拟模式下组合不会产生真实状态变化，直接收尾。
	OutcomeSimulated BracketOutcome = "SIMULATED"
	// OutcomeAborted 连续轮询失败超限，监视提前终止，挂单留在交易所。
	OutcomeAborted BracketOutcome = "ABORTED"
	// OutcomeCancelled 调用方通过 context 终止了监视。
	OutcomeCancelled BracketOutcome = "CANCELLED"
)

// BracketPair 为一组已挂出的止盈/止损订单。
// 不变式：两腿之中至多一腿处于 FILLED，另一腿由监视循环负责撤销。
type BracketPair struct {
	TakeProfit trade.Order
	StopLoss   trade.Order
}

// Watch 为后台监视任务的句柄，调用方据此等待或查询终态。
type Watch struct {
	pair BracketPair
	done chan struct{}

	mu      sync.Mutex
	outcome BracketOutcome
	err     error
}

// Pair 返回两条腿的下单记录。
func (w *Watch) Pair() BracketPair {
	return w.pair
}

// Done 在监视循环终止后关闭。
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Outcome 返回终态。监视循环尚未结束时返回空终态。
func (w *Watch) Outcome() (BracketOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome, w.err
}

func (w *Watch) finish(outcome BracketOutcome, err error) {
	w.mu.Lock()
	w.outcome = outcome
	w.err = err
	w.mu.Unlock()
	close(w.done)
}

// BracketOptions 控制监视循环行为。
type BracketOptions struct {
	// PollInterval 为相邻两次轮询之间的间隔，默认2秒。
	PollInterval time.Duration
	// MaxPollFailures 为连续轮询失败上限，超限后监视终止而不是无声地永远重试。
	MaxPollFailures int
}

// BracketWatcher 挂出 OCO 组合并在后台监视成交，一腿成交后撤销另一腿。
type BracketWatcher struct {
	gateway      exchange.Gateway
	recorder     Recorder
	logger       *zap.Logger
	pollInterval time.Duration
	maxPollFails int
}

// NewBracketWatcher 创建 OCO 监视器。recorder 可为空。
func NewBracketWatcher(gateway exchange.Gateway, recorder Recorder, opts BracketOptions, logger *zap.Logger) *BracketWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	maxFails := opts.MaxPollFailures
	if maxFails <= 0 {
		maxFails = 30
	}
	return &BracketWatcher{
		gateway:      gateway,
		recorder:     recorder,
		logger:       logger,
		pollInterval: interval,
		maxPollFails: maxFails,
	}
}

// Place 先挂同向止盈限价单，再挂反向止损触发单。第二腿失败时尽力回滚第一腿，
// 不把无人监管的孤儿挂单留在交易所；回滚本身失败会在返回错误中显式暴露。
func (b *BracketWatcher) Place(ctx context.Context, intent trade.TradeIntent, takeProfit, stopLoss decimal.Decimal) (BracketPair, error) {
	tpOrder, err := b.gateway.PlaceOrder(ctx, trade.OrderRequest{
		Symbol:      intent.Symbol,
		Side:        intent.Side,
		Type:        trade.TypeLimit,
		Quantity:    intent.Quantity,
		Price:       takeProfit,
		TimeInForce: "GTC",
	})
	if err != nil {
		return BracketPair{}, fmt.Errorf("execution: 止盈腿下单失败: %w", err)
	}

	slOrder, err := b.gateway.PlaceOrder(ctx, trade.OrderRequest{
		Symbol:    intent.Symbol,
		Side:      intent.Side.Opposite(),
		Type:      trade.TypeStopMarket,
		Quantity:  intent.Quantity,
		StopPrice: stopLoss,
	})
	if err != nil {
		if cancelErr := b.gateway.CancelOrder(ctx, intent.Symbol, tpOrder.ID); cancelErr != nil {
			b.logger.Error("止损腿失败且止盈腿回滚失败，交易所上存在无人监管的挂单",
				zap.String("symbol", intent.Symbol),
				zap.String("order_id", tpOrder.ID),
				zap.Error(cancelErr),
			)
			return BracketPair{}, fmt.Errorf("execution: 止损腿下单失败: %w；止盈腿 %s 回滚失败: %v", err, tpOrder.ID, cancelErr)
		}
		return BracketPair{}, fmt.Errorf("execution: 止损腿下单失败，止盈腿已回滚: %w", err)
	}

	b.logger.Info("OCO 组合已挂出",
		zap.String("symbol", intent.Symbol),
		zap.String("tp_order_id", tpOrder.ID),
		zap.String("sl_order_id", slOrder.ID),
		zap.String("tp_price", takeProfit.String()),
		zap.String("sl_price", stopLoss.String()),
	)
	b.recorder.Record(ctx, "oco", "placed", "OCO 组合已挂出", map[string]interface{}{
		"symbol":      intent.Symbol,
		"tp_order_id": tpOrder.ID,
		"sl_order_id": slOrder.ID,
	})

	return BracketPair{TakeProfit: tpOrder, StopLoss: slOrder}, nil
}

// Start 挂出组合并启动后台监视循环，立即返回句柄。
// 监视在每个轮询边界响应 ctx 取消。
func (b *BracketWatcher) Start(ctx context.Context, intent trade.TradeIntent, takeProfit, stopLoss decimal.Decimal) (*Watch, error) {
	pair, err := b.Place(ctx, intent, takeProfit, stopLoss)
	if err != nil {
		return nil, err
	}

	watch := &Watch{pair: pair, done: make(chan struct{})}

	if pair.TakeProfit.Status == trade.StatusDryRun {
		watch.finish(OutcomeSimulated, nil)
		return watch, nil
	}

	go b.watch(ctx, intent.Symbol, pair, watch)
	return watch, nil
}

func (b *BracketWatcher) watch(ctx context.Context, symbol string, pair BracketPair, watch *Watch) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("OCO 监视被调用方终止",
				zap.String("symbol", symbol),
				zap.String("tp_order_id", pair.TakeProfit.ID),
			)
			watch.finish(OutcomeCancelled, ctx.Err())
			return
		case <-ticker.C:
		}

		outcome, err := b.poll(ctx, symbol, pair)
		if err != nil {
			failures++
			b.logger.Warn("OCO 轮询失败",
				zap.String("symbol", symbol),
				zap.Int("consecutive", failures),
				zap.Int("limit", b.maxPollFails),
				zap.Error(err),
			)
			if failures >= b.maxPollFails {
				b.logger.Error("OCO 轮询连续失败超限，监视终止，挂单仍留在交易所",
					zap.String("symbol", symbol),
					zap.String("tp_order_id", pair.TakeProfit.ID),
					zap.String("sl_order_id", pair.StopLoss.ID),
				)
				b.recorder.Record(ctx, "oco", "aborted", "轮询连续失败超限", map[string]interface{}{
					"symbol":   symbol,
					"failures": failures,
				})
				watch.finish(OutcomeAborted, fmt.Errorf("execution: 连续%d次轮询失败: %w", failures, err))
				return
			}
			continue
		}
		failures = 0

		if outcome != "" {
			watch.finish(outcome, nil)
			return
		}
	}
}

// poll 依次查询两腿状态。一腿成交时撤销另一腿并返回终态，两腿均未成交时返回空。
// 查询与撤销严格串行，同一监视实例不会出现并发在途请求。
func (b *BracketWatcher) poll(ctx context.Context, symbol string, pair BracketPair) (BracketOutcome, error) {
	tp, err := b.gateway.QueryOrder(ctx, symbol, pair.TakeProfit.ID)
	if err != nil {
		return "", fmt.Errorf("查询止盈腿失败: %w", err)
	}

	if tp.Status == trade.StatusFilled {
		if err := b.gateway.CancelOrder(ctx, symbol, pair.StopLoss.ID); err != nil {
			return "", fmt.Errorf("止盈已成交但撤销止损失败: %w", err)
		}
		b.logger.Info("止盈成交，止损已撤销",
			zap.String("symbol", symbol),
			zap.String("tp_order_id", pair.TakeProfit.ID),
			zap.String("sl_order_id", pair.StopLoss.ID),
		)
		b.recorder.Record(ctx, "oco", "closed_tp", "止盈成交，止损已撤销", map[string]interface{}{
			"symbol":      symbol,
			"tp_order_id": pair.TakeProfit.ID,
		})
		return OutcomeTakeProfit, nil
	}

	sl, err := b.gateway.QueryOrder(ctx, symbol, pair.StopLoss.ID)
	if err != nil {
		return "", fmt.Errorf("查询止损腿失败: %w", err)
	}

	if sl.Status == trade.StatusFilled {
		if err := b.gateway.CancelOrder(ctx, symbol, pair.TakeProfit.ID); err != nil {
			return "", fmt.Errorf("止损已成交但撤销止盈失败: %w", err)
		}
		b.logger.Info("止损成交，止盈已撤销",
			zap.String("symbol", symbol),
			zap.String("tp_order_id", pair.TakeProfit.ID),
			zap.String("sl_order_id", pair.StopLoss.ID),
		)
		b.recorder.Record(ctx, "oco", "closed_sl", "止损成交，止盈已撤销", map[string]interface{}{
			"symbol":      symbol,
			"sl_order_id": pair.StopLoss.ID,
		})
		return OutcomeStopLoss, nil
	}

	b.logger.Debug("OCO 轮询：两腿均未成交",
		zap.String("tp_status", string(tp.Status)),
		zap.String("sl_status", string(sl.Status)),
	)
	return "", nil
}
