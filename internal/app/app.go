package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-exec/internal/config"
	"futures-exec/internal/exchange"
	"futures-exec/internal/execution"
	"futures-exec/internal/journal"
	"futures-exec/internal/trade"
)

// App 聚合网关、事件流水与日志，为每个策略提供统一入口。
// 网关在装配时确定，之后只读，可被并发运行的策略安全共享。
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	gateway exchange.Gateway
	client  *exchange.Client
	sim     *exchange.Simulator
	journal *journal.Journal
}

// New 根据配置装配执行层。dryRun 为真、或配置中缺少 API 凭证时，
// 自动使用模拟网关：操作降级为模拟而不是直接失败。
func New(cfg *config.Config, logger *zap.Logger, jnl *journal.Journal, dryRun bool) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:     cfg,
		logger:  logger,
		journal: jnl,
	}

	if dryRun || !cfg.Exchange.Credentialed() {
		if !cfg.Exchange.Credentialed() && !dryRun {
			logger.Warn("环境中未找到 API 凭证，自动进入模拟模式")
		}
		sim := exchange.NewSimulator(logger)
		a.sim = sim
		a.gateway = sim
		return a, nil
	}

	client, err := exchange.NewClient(cfg.Exchange, logger)
	if err != nil {
		return nil, err
	}
	a.client = client
	a.gateway = client
	return a, nil
}

// preflight 实盘模式下在首单之前做一次启动自检：加载市场元数据并读取当前行情价。
func (a *App) preflight(ctx context.Context, symbol string) error {
	if a.client == nil {
		return nil
	}
	mark, err := a.client.Preflight(ctx, symbol)
	if err != nil {
		return fmt.Errorf("app: 启动自检失败: %w", err)
	}
	a.logger.Info("启动自检通过",
		zap.String("symbol", symbol),
		zap.String("mark_price", mark.String()),
	)
	return nil
}

// Gateway 返回当前网关。
func (a *App) Gateway() exchange.Gateway {
	return a.gateway
}

// Simulated 报告是否运行在模拟模式。
func (a *App) Simulated() bool {
	return a.sim != nil
}

func (a *App) recorder() execution.Recorder {
	if a.journal == nil {
		return nil
	}
	return a.journal
}

func (a *App) record(ctx context.Context, strategy, event, message string, details map[string]interface{}) {
	if a.journal == nil {
		return
	}
	a.journal.Record(ctx, strategy, event, message, details)
}

// PlaceMarket 提交单笔市价单。
func (a *App) PlaceMarket(ctx context.Context, intent trade.TradeIntent) (trade.Order, error) {
	if err := a.preflight(ctx, intent.Symbol); err != nil {
		return trade.Order{}, err
	}
	order, err := execution.PlaceMarket(ctx, a.gateway, intent, a.logger)
	if err != nil {
		return trade.Order{}, err
	}
	a.record(ctx, "market", "placed", "市价单已提交", map[string]interface{}{
		"symbol":   order.Symbol,
		"order_id": order.ID,
		"status":   string(order.Status),
	})
	return order, nil
}

// PlaceLimit 提交单笔限价单。
func (a *App) PlaceLimit(ctx context.Context, intent trade.TradeIntent, price decimal.Decimal) (trade.Order, error) {
	if err := a.preflight(ctx, intent.Symbol); err != nil {
		return trade.Order{}, err
	}
	order, err := execution.PlaceLimit(ctx, a.gateway, intent, price, a.logger)
	if err != nil {
		return trade.Order{}, err
	}
	a.record(ctx, "limit", "placed", "限价单已提交", map[string]interface{}{
		"symbol":   order.Symbol,
		"order_id": order.ID,
		"price":    order.Price.String(),
		"status":   string(order.Status),
	})
	return order, nil
}

// RunTWAP 同步执行 TWAP 切分，返回按分片顺序排列的结果。
func (a *App) RunTWAP(ctx context.Context, intent trade.TradeIntent, chunks int, duration time.Duration) ([]execution.ChunkResult, error) {
	if err := a.preflight(ctx, intent.Symbol); err != nil {
		return nil, err
	}
	slicer := execution.NewSlicer(a.gateway, a.logger)
	results, err := slicer.Run(ctx, intent, chunks, duration)
	if err != nil {
		return results, err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	a.record(ctx, "twap", "completed", "TWAP 执行完成", map[string]interface{}{
		"symbol": intent.Symbol,
		"chunks": len(results),
		"failed": failed,
	})
	return results, nil
}

// StartBracket 挂出 OCO 组合并启动后台监视，立即返回句柄。
func (a *App) StartBracket(ctx context.Context, intent trade.TradeIntent, takeProfit, stopLoss decimal.Decimal) (*execution.Watch, error) {
	if err := a.preflight(ctx, intent.Symbol); err != nil {
		return nil, err
	}
	watcher := execution.NewBracketWatcher(a.gateway, a.recorder(), execution.BracketOptions{
		PollInterval:    a.cfg.Execution.PollInterval,
		MaxPollFailures: a.cfg.Execution.MaxPollFailures,
	}, a.logger)
	return watcher.Start(ctx, intent, takeProfit, stopLoss)
}

// StartTrigger 启动止损限价监视，立即返回句柄。
// 模拟模式下把合成行情价设为触发价，让触发路径以合成订单走完。
func (a *App) StartTrigger(ctx context.Context, intent trade.TradeIntent, stopPrice, limitPrice decimal.Decimal) (*execution.TriggerWatch, error) {
	if err := a.preflight(ctx, intent.Symbol); err != nil {
		return nil, err
	}
	if a.sim != nil {
		a.sim.SetMarkPrice(stopPrice)
	}

	watcher := execution.NewTriggerWatcher(a.gateway, a.recorder(), execution.TriggerOptions{
		PollInterval:    a.cfg.Execution.PollInterval,
		MaxPollFailures: a.cfg.Execution.MaxPollFailures,
	}, a.logger)
	return watcher.Start(ctx, intent, stopPrice, limitPrice), nil
}

// RunGrid 同步执行网格挂单，返回按价位顺序排列的结果。
func (a *App) RunGrid(ctx context.Context, spec execution.GridSpec) ([]execution.LevelResult, error) {
	if err := a.preflight(ctx, spec.Symbol); err != nil {
		return nil, err
	}
	if spec.Precision <= 0 {
		spec.Precision = int32(a.cfg.Execution.GridPricePrecision)
	}

	builder := execution.NewGridBuilder(a.gateway, a.logger)
	results, err := builder.Run(ctx, spec)
	if err != nil {
		return results, err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	a.record(ctx, "grid", "completed", "网格挂单完成", map[string]interface{}{
		"symbol": spec.Symbol,
		"levels": len(results),
		"failed": failed,
	})
	return results, nil
}
