package main

import (
	"context"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"futures-exec/internal/app"
	"futures-exec/internal/execution"
	"futures-exec/internal/trade"
)

// runFunc 在装配完成后执行子命令，返回非空错误时进程以失败退出。
type runFunc func(ctx context.Context, a *app.App, logger *zap.Logger) error

// command 的 bind 在解析参数之前注册子命令自己的标志，返回真正的执行体。
type command struct {
	summary string
	bind    func(fs *flag.FlagSet) runFunc
}

var commands = map[string]command{
	"market": {
		summary: "提交市价单",
		bind: func(fs *flag.FlagSet) runFunc {
			symbol := fs.String("symbol", "", "交易对，如 BTCUSDT")
			side := fs.String("side", "", "方向，BUY 或 SELL")
			qty := fs.String("quantity", "", "下单数量")
			return func(ctx context.Context, a *app.App, logger *zap.Logger) error {
				intent, err := trade.NewIntent(*symbol, *side, *qty)
				if err != nil {
					return err
				}
				order, err := a.PlaceMarket(ctx, intent)
				if err != nil {
					return err
				}
				logger.Info("市价单执行完成",
					zap.String("order_id", order.ID),
					zap.String("status", string(order.Status)),
				)
				return nil
			}
		},
	},
	"limit": {
		summary: "提交限价单",
		bind: func(fs *flag.FlagSet) runFunc {
			symbol := fs.String("symbol", "", "交易对，如 BTCUSDT")
			side := fs.String("side", "", "方向，BUY 或 SELL")
			qty := fs.String("quantity", "", "下单数量")
			price := fs.String("price", "", "限价")
			return func(ctx context.Context, a *app.App, logger *zap.Logger) error {
				intent, err := trade.NewIntent(*symbol, *side, *qty)
				if err != nil {
					return err
				}
				limitPrice, err := trade.ParsePrice(*price)
				if err != nil {
					return err
				}
				order, err := a.PlaceLimit(ctx, intent, limitPrice)
				if err != nil {
					return err
				}
				logger.Info("限价单执行完成",
					zap.String("order_id", order.ID),
					zap.String("price", order.Price.String()),
					zap.String("status", string(order.Status)),
				)
				return nil
			}
		},
	},
	"twap": {
		summary: "按时间均分执行市价单",
		bind: func(fs *flag.FlagSet) runFunc {
			symbol := fs.String("symbol", "", "交易对，如 BTCUSDT")
			side := fs.String("side", "", "方向，BUY 或 SELL")
			qty := fs.String("quantity", "", "总数量")
			chunks := fs.Int("chunks", 0, "分片数量")
			duration := fs.Duration("duration", 0, "总执行时长，如 10m")
			return func(ctx context.Context, a *app.App, logger *zap.Logger) error {
				intent, err := trade.NewIntent(*symbol, *side, *qty)
				if err != nil {
					return err
				}
				results, err := a.RunTWAP(ctx, intent, *chunks, *duration)
				if err != nil {
					return err
				}
				for _, res := range results {
					if res.Err != nil {
						logger.Warn("分片失败",
							zap.Int("chunk", res.Index),
							zap.String("quantity", res.Quantity.String()),
							zap.Error(res.Err),
						)
						continue
					}
					logger.Info("分片完成",
						zap.Int("chunk", res.Index),
						zap.String("quantity", res.Quantity.String()),
						zap.String("order_id", res.Order.ID),
					)
				}
				return nil
			}
		},
	},
	"oco": {
		summary: "挂出止盈/止损 OCO 组合并监视至一腿成交",
		bind: func(fs *flag.FlagSet) runFunc {
			symbol := fs.String("symbol", "", "交易对，如 BTCUSDT")
			side := fs.String("side", "", "方向，BUY 或 SELL")
			qty := fs.String("quantity", "", "下单数量")
			tp := fs.String("take-profit", "", "止盈价")
			sl := fs.String("stop-loss", "", "止损触发价")
			return func(ctx context.Context, a *app.App, logger *zap.Logger) error {
				intent, err := trade.NewIntent(*symbol, *side, *qty)
				if err != nil {
					return err
				}
				tpPrice, err := trade.ParsePrice(*tp)
				if err != nil {
					return fmt.Errorf("止盈价无效: %w", err)
				}
				slPrice, err := trade.ParsePrice(*sl)
				if err != nil {
					return fmt.Errorf("止损价无效: %w", err)
				}

				watch, err := a.StartBracket(ctx, intent, tpPrice, slPrice)
				if err != nil {
					return err
				}
				<-watch.Done()

				outcome, watchErr := watch.Outcome()
				logger.Info("OCO 监视结束", zap.String("outcome", string(outcome)))
				if watchErrIsCancel(ctx, watchErr) {
					return nil
				}
				return watchErr
			}
		},
	},
	"stoplimit": {
		summary: "价格触发后挂出限价单",
		bind: func(fs *flag.FlagSet) runFunc {
			symbol := fs.String("symbol", "", "交易对，如 BTCUSDT")
			side := fs.String("side", "", "方向，BUY 或 SELL")
			qty := fs.String("quantity", "", "下单数量")
			stop := fs.String("stop", "", "触发价")
			limit := fs.String("limit", "", "触发后挂出的限价")
			return func(ctx context.Context, a *app.App, logger *zap.Logger) error {
				intent, err := trade.NewIntent(*symbol, *side, *qty)
				if err != nil {
					return err
				}
				stopPrice, err := trade.ParsePrice(*stop)
				if err != nil {
					return fmt.Errorf("触发价无效: %w", err)
				}
				limitPrice, err := trade.ParsePrice(*limit)
				if err != nil {
					return fmt.Errorf("限价无效: %w", err)
				}

				watch, err := a.StartTrigger(ctx, intent, stopPrice, limitPrice)
				if err != nil {
					return err
				}
				<-watch.Done()

				outcome, order, watchErr := watch.Outcome()
				if outcome == execution.TriggerFired {
					logger.Info("触发成立，限价单已挂出",
						zap.String("order_id", order.ID),
						zap.String("price", order.Price.String()),
					)
					return nil
				}
				logger.Info("触发监视结束", zap.String("outcome", string(outcome)))
				if watchErrIsCancel(ctx, watchErr) {
					return nil
				}
				return watchErr
			}
		},
	},
	"grid": {
		summary: "在价格区间内等距挂出限价买单",
		bind: func(fs *flag.FlagSet) runFunc {
			symbol := fs.String("symbol", "", "交易对，如 BTCUSDT")
			low := fs.String("low", "", "区间下沿价")
			high := fs.String("high", "", "区间上沿价")
			steps := fs.Int("steps", 0, "网格段数，挂单数为段数加一")
			qty := fs.String("quantity", "", "每格数量")
			precision := fs.Int("precision", 0, "价格小数位，默认取配置值")
			return func(ctx context.Context, a *app.App, logger *zap.Logger) error {
				normalized, err := trade.NormalizeSymbol(*symbol)
				if err != nil {
					return err
				}
				lowPrice, err := trade.ParsePrice(*low)
				if err != nil {
					return fmt.Errorf("下沿价无效: %w", err)
				}
				highPrice, err := trade.ParsePrice(*high)
				if err != nil {
					return fmt.Errorf("上沿价无效: %w", err)
				}
				gridQty, err := trade.ParseQuantity(*qty)
				if err != nil {
					return err
				}

				results, err := a.RunGrid(ctx, execution.GridSpec{
					Symbol:    normalized,
					Low:       lowPrice,
					High:      highPrice,
					Steps:     *steps,
					Quantity:  gridQty,
					Precision: int32(*precision),
				})
				if err != nil {
					return err
				}
				for _, res := range results {
					if res.Err != nil {
						logger.Warn("网格挂单失败",
							zap.Int("level", res.Index),
							zap.String("price", res.Price.String()),
							zap.Error(res.Err),
						)
						continue
					}
					logger.Info("网格挂单成功",
						zap.Int("level", res.Index),
						zap.String("price", res.Price.String()),
						zap.String("order_id", res.Order.ID),
					)
				}
				return nil
			}
		},
	},
}

// watchErrIsCancel 区分调用方主动终止与真实失败：信号触发的取消按正常退出处理。
func watchErrIsCancel(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil && err == ctx.Err()
}
