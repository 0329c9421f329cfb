package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"futures-exec/internal/config"
	"futures-exec/internal/execution"
	"futures-exec/internal/trade"
)

func testConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Environment: "test"},
		Exchange: config.ExchangeConfig{Name: "binanceusdm"},
		Execution: config.ExecutionConfig{
			PollInterval:       5 * time.Millisecond,
			MaxPollFailures:    3,
			GridPricePrecision: 2,
		},
	}
}

func testIntent(side trade.Side) trade.TradeIntent {
	return trade.TradeIntent{
		Symbol:   "BTCUSDT",
		Side:     side,
		Quantity: decimal.RequireFromString("0.01"),
	}
}

func TestNew_MissingCredentialsDegradesToSimulation(t *testing.T) {
	a, err := New(testConfig(), nil, nil, false)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if !a.Simulated() {
		t.Fatalf("凭证缺失时应自动进入模拟模式，而不是报错")
	}

	order, err := a.PlaceMarket(context.Background(), testIntent(trade.SideBuy))
	if err != nil {
		t.Fatalf("PlaceMarket returned error: %v", err)
	}
	if order.Status != trade.StatusDryRun {
		t.Errorf("status = %s, want %s", order.Status, trade.StatusDryRun)
	}
	if order.ID == "" {
		t.Errorf("合成订单应当携带ID")
	}
}

func TestNew_DryRunFlagForcesSimulationDespiteCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Exchange.APIKey = "key"
	cfg.Exchange.APISecret = "secret"

	a, err := New(cfg, nil, nil, true)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if !a.Simulated() {
		t.Fatalf("dry-run 标志应当强制使用模拟网关")
	}
	if a.Gateway().Live() {
		t.Errorf("模拟网关不应报告 Live")
	}
}

func TestStartTrigger_SimulationFiresSynthetically(t *testing.T) {
	a, err := New(testConfig(), nil, nil, true)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	stop := decimal.RequireFromString("60000")
	limit := decimal.RequireFromString("59900")

	watch, err := a.StartTrigger(context.Background(), testIntent(trade.SideSell), stop, limit)
	if err != nil {
		t.Fatalf("StartTrigger returned error: %v", err)
	}

	select {
	case <-watch.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("模拟模式下触发监视应当立即完成")
	}

	outcome, order, watchErr := watch.Outcome()
	if watchErr != nil {
		t.Fatalf("watch finished with error: %v", watchErr)
	}
	if outcome != execution.TriggerFired {
		t.Fatalf("outcome = %s, want %s", outcome, execution.TriggerFired)
	}
	if order.Status != trade.StatusDryRun {
		t.Errorf("status = %s, want %s", order.Status, trade.StatusDryRun)
	}
	if order.Type != trade.TypeLimit || order.Side != trade.SideSell {
		t.Errorf("unexpected fired order: %+v", order)
	}
	if order.Price.String() != "59900" {
		t.Errorf("price = %s, want 59900", order.Price)
	}
}

func TestRunTWAP_SimulationPlacesDryRunChunks(t *testing.T) {
	a, err := New(testConfig(), nil, nil, true)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	intent := trade.TradeIntent{
		Symbol:   "BTCUSDT",
		Side:     trade.SideBuy,
		Quantity: decimal.RequireFromString("0.004"),
	}

	results, err := a.RunTWAP(context.Background(), intent, 4, 0)
	if err != nil {
		t.Fatalf("RunTWAP returned error: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 chunk results, got %d", len(results))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Fatalf("chunk %d returned error: %v", i+1, res.Err)
		}
		if res.Order.Status != trade.StatusDryRun {
			t.Errorf("chunk %d status = %s, want %s", i+1, res.Order.Status, trade.StatusDryRun)
		}
	}
}
