package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"futures-exec/internal/exchange"
	"futures-exec/internal/trade"
)

func gridSpec() GridSpec {
	return GridSpec{
		Symbol:   "BTCUSDT",
		Low:      decimal.RequireFromString("60000"),
		High:     decimal.RequireFromString("70000"),
		Steps:    10,
		Quantity: decimal.RequireFromString("0.0005"),
	}
}

func TestBuildLevels_InclusiveEvenlySpaced(t *testing.T) {
	levels, err := BuildLevels(gridSpec())
	if err != nil {
		t.Fatalf("BuildLevels returned error: %v", err)
	}

	if len(levels) != 11 {
		t.Fatalf("expected 11 levels, got %d", len(levels))
	}

	for i, level := range levels {
		want := decimal.NewFromInt(int64(60000 + 1000*i))
		if !level.Equal(want) {
			t.Errorf("level %d = %s, want %s", i, level, want)
		}
		if got := level.StringFixed(2); got != want.StringFixed(2) {
			t.Errorf("level %d fixed = %s, want %s", i, got, want.StringFixed(2))
		}
	}
}

func TestBuildLevels_PrecisionQuantization(t *testing.T) {
	spec := GridSpec{
		Symbol:   "BTCUSDT",
		Low:      decimal.RequireFromString("100"),
		High:     decimal.RequireFromString("200"),
		Steps:    3,
		Quantity: decimal.RequireFromString("0.001"),
	}

	levels, err := BuildLevels(spec)
	if err != nil {
		t.Fatalf("BuildLevels returned error: %v", err)
	}

	// 步长 100/3 不能整除，价位按默认2位小数取整
	want := []string{"100.00", "133.33", "166.67", "200.00"}
	for i, level := range levels {
		if got := level.StringFixed(2); got != want[i] {
			t.Errorf("level %d = %s, want %s", i, got, want[i])
		}
	}
}

func TestBuildLevels_Validation(t *testing.T) {
	spec := gridSpec()
	spec.Low = decimal.RequireFromString("70000")
	spec.High = decimal.RequireFromString("70000")
	if _, err := BuildLevels(spec); err == nil {
		t.Errorf("low == high 应当校验失败")
	}

	spec = gridSpec()
	spec.Low = decimal.RequireFromString("80000")
	if _, err := BuildLevels(spec); err == nil {
		t.Errorf("low > high 应当校验失败")
	}

	spec = gridSpec()
	spec.Steps = 0
	if _, err := BuildLevels(spec); err == nil {
		t.Errorf("steps=0 应当校验失败")
	}
}

func TestGridRun_ValidationFailsBeforeAnyPlacement(t *testing.T) {
	gw := newFakeGateway()
	builder := NewGridBuilder(gw, nil)

	spec := gridSpec()
	spec.Low, spec.High = spec.High, spec.Low

	if _, err := builder.Run(context.Background(), spec); err == nil {
		t.Fatalf("expected validation error")
	}
	if got := gw.placeAttempts(); got != 0 {
		t.Errorf("validation failure must not reach the gateway, got %d placements", got)
	}
}

func TestGridRun_PlacesBuyLimitPerLevel(t *testing.T) {
	gw := newFakeGateway()
	builder := NewGridBuilder(gw, nil)

	results, err := builder.Run(context.Background(), gridSpec())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(results) != 11 {
		t.Fatalf("expected 11 level results, got %d", len(results))
	}

	for _, req := range gw.placedRequests() {
		if req.Side != trade.SideBuy || req.Type != trade.TypeLimit {
			t.Errorf("unexpected grid order: %+v", req)
		}
		if !req.Quantity.Equal(decimal.RequireFromString("0.0005")) {
			t.Errorf("grid order quantity = %s", req.Quantity)
		}
	}
}

func TestGridRun_LevelFailureDoesNotAbort(t *testing.T) {
	gw := newFakeGateway()
	gw.placeErrs[3] = errors.New("price out of range")
	builder := NewGridBuilder(gw, nil)

	results, err := builder.Run(context.Background(), gridSpec())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(results) != 11 {
		t.Fatalf("expected 11 level results, got %d", len(results))
	}
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected exactly one failed level, got %d", failed)
	}
	if got := gw.placeAttempts(); got != 11 {
		t.Errorf("place attempts = %d, want 11", got)
	}
}

func TestGridRun_DryRunPlacesSyntheticOrders(t *testing.T) {
	sim := exchange.NewSimulator(nil)
	builder := NewGridBuilder(sim, nil)

	results, err := builder.Run(context.Background(), gridSpec())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(results) != 11 {
		t.Fatalf("expected 11 level results, got %d", len(results))
	}
	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("dry-run level failed: %v", res.Err)
		}
		if res.Order.Status != trade.StatusDryRun {
			t.Errorf("level %d status = %s, want DRY_RUN", res.Index, res.Order.Status)
		}
	}
}
