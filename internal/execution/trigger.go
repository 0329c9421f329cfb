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

// TriggerOutcome 表示触发监视的终态。
type TriggerOutcome string

const (
	// TriggerFired 触发条件成立，限价单已挂出。
	TriggerFired TriggerOutcome = "FIRED"
	// TriggerAborted 连续失败超限，监视提前终止。
	TriggerAborted TriggerOutcome = "ABORTED"
	// TriggerCancelled 调用方通过 context 终止了监视。
	TriggerCancelled TriggerOutcome = "CANCELLED"
)

// TriggerWatch 为触发监视任务的句柄。
type TriggerWatch struct {
	done chan struct{}

	mu      sync.Mutex
	outcome TriggerOutcome
	order   trade.Order
	err     error
}

// Done 在监视终止后关闭。
func (w *TriggerWatch) Done() <-chan struct{} {
	return w.done
}

// Outcome 返回终态及触发后挂出的限价单（仅 FIRED 时有效）。
func (w *TriggerWatch) Outcome() (TriggerOutcome, trade.Order, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome, w.order, w.err
}

func (w *TriggerWatch) finish(outcome TriggerOutcome, order trade.Order, err error) {
	w.mu.Lock()
	w.outcome = outcome
	w.order = order
	w.err = err
	w.mu.Unlock()
	close(w.done)
}

// TriggerOptions 控制触发监视行为，零值字段取默认值。
type TriggerOptions struct {
	PollInterval    time.Duration
	MaxPollFailures int
}

// TriggerWatcher 监视行情价，价格越过触发价后挂出限价单。
// 状态机：ARMED -> FIRED | ABORTED | CANCELLED，没有其他转移。
type TriggerWatcher struct {
	gateway      exchange.Gateway
	recorder     Recorder
	logger       *zap.Logger
	pollInterval time.Duration
	maxPollFails int
}

// NewTriggerWatcher 创建止损限价监视器。recorder 可为空。
func NewTriggerWatcher(gateway exchange.Gateway, recorder Recorder, opts TriggerOptions, logger *zap.Logger) *TriggerWatcher {
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
	return &TriggerWatcher{
		gateway:      gateway,
		recorder:     recorder,
		logger:       logger,
		pollInterval: interval,
		maxPollFails: maxFails,
	}
}

// triggered 判断触发条件：BUY 在价格升至触发价及以上时成立，SELL 在跌至触发价及以下时成立。
func triggered(side trade.Side, price, stop decimal.Decimal) bool {
	if side == trade.SideBuy {
		return price.GreaterThanOrEqual(stop)
	}
	return price.LessThanOrEqual(stop)
}

// Start 启动后台监视并立即返回句柄。首次轮询立即执行，之后按固定间隔轮询。
func (t *TriggerWatcher) Start(ctx context.Context, intent trade.TradeIntent, stopPrice, limitPrice decimal.Decimal) *TriggerWatch {
	watch := &TriggerWatch{done: make(chan struct{})}

	t.logger.Info("止损限价监视已启动",
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.String("stop", stopPrice.String()),
		zap.String("limit", limitPrice.String()),
	)

	go t.watch(ctx, intent, stopPrice, limitPrice, watch)
	return watch
}

func (t *TriggerWatcher) watch(ctx context.Context, intent trade.TradeIntent, stopPrice, limitPrice decimal.Decimal, watch *TriggerWatch) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		if done := t.pollOnce(ctx, intent, stopPrice, limitPrice, watch, &failures); done {
			return
		}

		select {
		case <-ctx.Done():
			t.logger.Info("触发监视被调用方终止", zap.String("symbol", intent.Symbol))
			watch.finish(TriggerCancelled, trade.Order{}, ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

// pollOnce 执行一次行情轮询；触发成立时挂出限价单。返回 true 表示监视已终止。
func (t *TriggerWatcher) pollOnce(ctx context.Context, intent trade.TradeIntent, stopPrice, limitPrice decimal.Decimal, watch *TriggerWatch, failures *int) bool {
	price, err := t.gateway.MarkPrice(ctx, intent.Symbol)
	if err != nil {
		return t.recordFailure(ctx, intent, watch, failures, fmt.Errorf("查询行情失败: %w", err))
	}

	t.logger.Debug("触发监视轮询",
		zap.String("symbol", intent.Symbol),
		zap.String("price", price.String()),
		zap.String("stop", stopPrice.String()),
	)

	if !triggered(intent.Side, price, stopPrice) {
		*failures = 0
		return false
	}

	order, err := t.gateway.PlaceOrder(ctx, trade.OrderRequest{
		Symbol:      intent.Symbol,
		Side:        intent.Side,
		Type:        trade.TypeLimit,
		Quantity:    intent.Quantity,
		Price:       limitPrice,
		TimeInForce: "GTC",
	})
	if err != nil {
		// 条件已成立但下单失败，按暂时性错误处理，下次轮询重试
		return t.recordFailure(ctx, intent, watch, failures, fmt.Errorf("触发后下单失败: %w", err))
	}

	t.logger.Info("触发价命中，限价单已挂出",
		zap.String("symbol", intent.Symbol),
		zap.String("price", price.String()),
		zap.String("order_id", order.ID),
	)
	t.recorder.Record(ctx, "stop_limit", "fired", "触发价命中，限价单已挂出", map[string]interface{}{
		"symbol":   intent.Symbol,
		"order_id": order.ID,
		"price":    price.String(),
	})
	watch.finish(TriggerFired, order, nil)
	return true
}

func (t *TriggerWatcher) recordFailure(ctx context.Context, intent trade.TradeIntent, watch *TriggerWatch, failures *int, err error) bool {
	*failures++
	t.logger.Warn("触发监视轮询失败",
		zap.String("symbol", intent.Symbol),
		zap.Int("consecutive", *failures),
		zap.Int("limit", t.maxPollFails),
		zap.Error(err),
	)
	if *failures >= t.maxPollFails {
		t.logger.Error("触发监视连续失败超限，监视终止", zap.String("symbol", intent.Symbol))
		t.recorder.Record(ctx, "stop_limit", "aborted", "轮询连续失败超限", map[string]interface{}{
			"symbol":   intent.Symbol,
			"failures": *failures,
		})
		watch.finish(TriggerAborted, trade.Order{}, fmt.Errorf("execution: 连续%d次轮询失败: %w", *failures, err))
		return true
	}
	return false
}
