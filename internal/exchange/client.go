package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"futures-exec/internal/config"
	"futures-exec/internal/trade"
)

// Client 负责与 Binance USDⓈ-M 交互并实现重试机制。
// 它是系统里唯一发起网络调用的组件，凭证在构造时注入，之后只读。
type Client struct {
	cfg      config.ExchangeConfig
	logger   *zap.Logger
	exchange *ccxt.Binanceusdm

	marketsMu     sync.Mutex
	marketsLoaded bool
}

var _ Gateway = (*Client)(nil)

// NewClient 构造永续合约客户端。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		},
	}

	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewBinanceusdm(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return &Client{
		cfg:      cfg,
		logger:   logger,
		exchange: ex,
	}, nil
}

// Live 报告该网关会产生真实网络调用。
func (c *Client) Live() bool {
	return true
}

// PlaceOrder 提交订单并转换为内部订单记录。
func (c *Client) PlaceOrder(ctx context.Context, req trade.OrderRequest) (trade.Order, error) {
	params := map[string]interface{}{}
	orderType := ""

	switch req.Type {
	case trade.TypeMarket:
		orderType = "market"
	case trade.TypeLimit:
		orderType = "limit"
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		params["timeInForce"] = tif
	case trade.TypeStopMarket:
		// ccxt 统一接口中带 stopPrice 的市价单会映射为 STOP_MARKET
		orderType = "market"
		params["stopPrice"] = req.StopPrice.String()
	default:
		return trade.Order{}, fmt.Errorf("exchange: 不支持的订单类型 %s", req.Type)
	}

	var raw ccxt.Order
	err := c.callWithRetry(ctx, "create_order", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		opts := make([]ccxt.CreateOrderOptions, 0, 2)
		if req.Type == trade.TypeLimit {
			opts = append(opts, ccxt.WithCreateOrderPrice(req.Price.InexactFloat64()))
		}
		if len(params) > 0 {
			opts = append(opts, ccxt.WithCreateOrderParams(params))
		}

		result, err := c.exchange.CreateOrder(
			req.Symbol,
			orderType,
			strings.ToLower(string(req.Side)),
			req.Quantity.InexactFloat64(),
			opts...,
		)
		if err != nil {
			return err
		}

		raw = result
		return nil
	})
	if err != nil {
		return trade.Order{}, err
	}

	order := convertPlaced(req, raw)
	c.logger.Info("订单已提交",
		zap.String("symbol", order.Symbol),
		zap.String("order_id", order.ID),
		zap.String("side", string(order.Side)),
		zap.String("type", string(order.Type)),
		zap.String("qty", order.Quantity.String()),
		zap.String("status", string(order.Status)),
	)
	return order, nil
}

// QueryOrder 查询订单当前状态。
func (c *Client) QueryOrder(ctx context.Context, symbol, orderID string) (trade.Order, error) {
	var raw ccxt.Order
	err := c.callWithRetry(ctx, "fetch_order", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		result, err := c.exchange.FetchOrder(orderID, ccxt.WithFetchOrderSymbol(symbol))
		if err != nil {
			return err
		}

		raw = result
		return nil
	})
	if err != nil {
		return trade.Order{}, err
	}

	return convertFetched(symbol, raw), nil
}

// CancelOrder 撤销订单。
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	err := c.callWithRetry(ctx, "cancel_order", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		_, err := c.exchange.CancelOrder(orderID, ccxt.WithCancelOrderSymbol(symbol))
		return err
	})
	if err != nil {
		return err
	}

	c.logger.Info("订单已撤销", zap.String("symbol", symbol), zap.String("order_id", orderID))
	return nil
}

// MarkPrice 获取最新行情价。
func (c *Client) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var raw ccxt.Ticker
	err := c.callWithRetry(ctx, "fetch_ticker", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		ticker, err := c.exchange.FetchTicker(symbol)
		if err != nil {
			return err
		}

		raw = ticker
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	if raw.Last == nil {
		return decimal.Zero, fmt.Errorf("exchange: %s 行情缺少最新价", symbol)
	}
	return decimal.NewFromFloat(*raw.Last), nil
}

// Preflight 并行加载市场元数据与最新标记价，用于启动自检。
func (c *Client) Preflight(ctx context.Context, symbol string) (decimal.Decimal, error) {
	group, groupCtx := errgroup.WithContext(ctx)

	var price decimal.Decimal

	group.Go(func() error {
		return c.ensureMarketsLoaded(groupCtx)
	})

	group.Go(func() error {
		p, err := c.MarkPrice(groupCtx, symbol)
		if err != nil {
			return err
		}
		price = p
		return nil
	})

	if err := group.Wait(); err != nil {
		return decimal.Zero, err
	}

	return price, nil
}

// ensureMarketsLoaded 在首次调用时加载市场元数据。全程持锁：
// Preflight 会从多个 goroutine 并发进入，读写必须在同一把锁下。
func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	loadErr := c.callWithRetry(ctx, "load_markets", func() error {
		_, err := c.exchange.LoadMarkets()
		return err
	})
	if loadErr != nil {
		return loadErr
	}

	c.marketsLoaded = true
	c.logger.Debug("已完成市场元数据加载")
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= c.cfg.Retry.MaxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// convertPlaced 用请求参数补全下单回执里缺失的字段。
func convertPlaced(req trade.OrderRequest, raw ccxt.Order) trade.Order {
	order := trade.Order{
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Quantity:  req.Quantity,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Status:    trade.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if raw.Id != nil {
		order.ID = *raw.Id
	}
	if raw.Status != nil && *raw.Status != "" {
		order.Status = convertStatus(*raw.Status)
	}
	if raw.Timestamp != nil {
		order.CreatedAt = time.UnixMilli(*raw.Timestamp).UTC()
	}
	return order
}

func convertFetched(symbol string, raw ccxt.Order) trade.Order {
	order := trade.Order{
		Symbol: symbol,
		Status: trade.StatusPending,
	}
	if raw.Id != nil {
		order.ID = *raw.Id
	}
	if raw.Side != nil {
		order.Side = trade.Side(strings.ToUpper(*raw.Side))
	}
	if raw.Type != nil {
		order.Type = trade.OrderType(strings.ToUpper(*raw.Type))
	}
	if raw.Amount != nil {
		order.Quantity = decimal.NewFromFloat(*raw.Amount)
	}
	if raw.Price != nil {
		order.Price = decimal.NewFromFloat(*raw.Price)
	}
	if raw.Status != nil && *raw.Status != "" {
		order.Status = convertStatus(*raw.Status)
	}
	if raw.Timestamp != nil {
		order.CreatedAt = time.UnixMilli(*raw.Timestamp).UTC()
	}
	return order
}

// convertStatus 将 ccxt 统一状态映射为内部状态。
func convertStatus(status string) trade.Status {
	switch strings.ToLower(status) {
	case "open":
		return trade.StatusPending
	case "closed":
		return trade.StatusFilled
	case "canceled", "cancelled":
		return trade.StatusCancelled
	default:
		return trade.StatusError
	}
}
