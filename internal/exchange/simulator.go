package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-exec/internal/trade"
)

// Simulator 在模拟模式下替代真实交易所：不发出任何网络请求，
// 每个调用返回回显请求参数的合成记录，状态固定为 DRY_RUN。
// 凭证缺失时网关也会降级到这里，保证操作安全失败而不是直接报错。
type Simulator struct {
	logger *zap.Logger

	mu     sync.Mutex
	seq    int
	orders map[string]trade.Order
	mark   decimal.Decimal
	calls  []string
}

var _ Gateway = (*Simulator)(nil)

// NewSimulator 创建模拟网关。
func NewSimulator(logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		logger: logger,
		orders: make(map[string]trade.Order),
	}
}

// Live 报告该网关不会产生真实网络调用。
func (s *Simulator) Live() bool {
	return false
}

// SetMarkPrice 设置模拟行情价，供触发类策略在模拟模式下走完整路径。
func (s *Simulator) SetMarkPrice(price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mark = price
}

// PlaceOrder 生成一条合成订单记录。
func (s *Simulator) PlaceOrder(_ context.Context, req trade.OrderRequest) (trade.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	order := trade.Order{
		ID:        fmt.Sprintf("sim-%d", s.seq),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Quantity:  req.Quantity,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Status:    trade.StatusDryRun,
		CreatedAt: time.Now().UTC(),
	}
	s.orders[order.ID] = order
	s.calls = append(s.calls, "place")

	s.logger.Info("模拟下单，未触达交易所",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("type", string(req.Type)),
		zap.String("qty", req.Quantity.String()),
	)
	return order, nil
}

// QueryOrder 返回已记录的合成订单。
func (s *Simulator) QueryOrder(_ context.Context, _ string, orderID string) (trade.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, "query")
	order, ok := s.orders[orderID]
	if !ok {
		return trade.Order{}, fmt.Errorf("exchange: 模拟订单 %s 不存在", orderID)
	}
	return order, nil
}

// CancelOrder 记录一次合成撤单。
func (s *Simulator) CancelOrder(_ context.Context, _ string, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, "cancel")
	if order, ok := s.orders[orderID]; ok {
		order.Status = trade.StatusCancelled
		s.orders[orderID] = order
	}
	s.logger.Info("模拟撤单，未触达交易所", zap.String("order_id", orderID))
	return nil
}

// MarkPrice 返回最近一次 SetMarkPrice 设置的价格。
func (s *Simulator) MarkPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, "mark_price")
	return s.mark, nil
}

// MarkFilled 将指定合成订单置为 FILLED，仅供测试驱动监视循环。
func (s *Simulator) MarkFilled(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order, ok := s.orders[orderID]; ok {
		order.Status = trade.StatusFilled
		s.orders[orderID] = order
	}
}

// Calls 返回按顺序记录的调用名，供断言使用。
func (s *Simulator) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}
