package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"futures-exec/internal/trade"
)

// fakeGateway 按调用顺序记录请求，供各策略测试断言。
type fakeGateway struct {
	mu sync.Mutex

	placed     []trade.OrderRequest
	placeCount int
	placeErrs  map[int]error // 第 n 次 PlaceOrder（从1开始计数）返回的错误

	statuses  map[string]trade.Status
	queryErr  error
	cancelled []string
	cancelErr error

	prices   []decimal.Decimal
	priceIdx int
	priceErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		placeErrs: make(map[int]error),
		statuses:  make(map[string]trade.Status),
	}
}

func (f *fakeGateway) Live() bool {
	return true
}

func (f *fakeGateway) PlaceOrder(_ context.Context, req trade.OrderRequest) (trade.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.placeCount++
	if err := f.placeErrs[f.placeCount]; err != nil {
		return trade.Order{}, err
	}

	order := trade.Order{
		ID:        fmt.Sprintf("ord-%d", f.placeCount),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Quantity:  req.Quantity,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Status:    trade.StatusPending,
	}
	f.placed = append(f.placed, req)
	return order, nil
}

func (f *fakeGateway) QueryOrder(_ context.Context, _ string, orderID string) (trade.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queryErr != nil {
		return trade.Order{}, f.queryErr
	}

	status, ok := f.statuses[orderID]
	if !ok {
		status = trade.StatusPending
	}
	return trade.Order{ID: orderID, Status: status}, nil
}

func (f *fakeGateway) CancelOrder(_ context.Context, _ string, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeGateway) MarkPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.priceErr != nil {
		return decimal.Zero, f.priceErr
	}
	if len(f.prices) == 0 {
		return decimal.Zero, nil
	}

	idx := f.priceIdx
	if idx >= len(f.prices) {
		idx = len(f.prices) - 1
	}
	f.priceIdx++
	return f.prices[idx], nil
}

func (f *fakeGateway) setStatus(orderID string, status trade.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[orderID] = status
}

func (f *fakeGateway) cancelledOrders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.cancelled))
	copy(out, f.cancelled)
	return out
}

func (f *fakeGateway) placedRequests() []trade.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]trade.OrderRequest, len(f.placed))
	copy(out, f.placed)
	return out
}

func (f *fakeGateway) placeAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.placeCount
}
