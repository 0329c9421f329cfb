package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"futures-exec/internal/trade"
)

// Recorder 接收策略生命周期事件，通常由 journal 包实现。
type Recorder interface {
	Record(ctx context.Context, strategy, event, message string, details map[string]interface{})
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, string, string, map[string]interface{}) {}

// ChunkResult 为 TWAP 单个分片的执行结果，Order 与 Err 互斥。
type ChunkResult struct {
	Index    int
	Quantity decimal.Decimal
	Order    trade.Order
	Err      error
}

// LevelResult 为网格单个价位的执行结果，Order 与 Err 互斥。
type LevelResult struct {
	Index int
	Price decimal.Decimal
	Order trade.Order
	Err   error
}

// SliceSchedule 描述一次 TWAP 执行的切分计划。
// 不变式：ChunkQty*(Chunks-1) + (ChunkQty+Remainder) 精确等于 Total。
type SliceSchedule struct {
	Total     decimal.Decimal
	Chunks    int
	Duration  time.Duration
	ChunkQty  decimal.Decimal
	Remainder decimal.Decimal
	Interval  time.Duration
}

// GridSpec 描述静态网格参数。Precision 为价位保留的小数位，零值取默认值2。
type GridSpec struct {
	Symbol    string
	Low       decimal.Decimal
	High      decimal.Decimal
	Steps     int
	Quantity  decimal.Decimal
	Precision int32
}
