package trade

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// 边界校验统一在触达交易所之前完成，校验失败的输入不会产生任何网关调用。

// NormalizeSymbol 校验并规整交易对符号，例如 btcusdt -> BTCUSDT。
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if len(s) < 6 {
		return "", fmt.Errorf("trade: 交易对符号无效 %q", symbol)
	}
	return s, nil
}

// ParseSide 解析下单方向，大小写不敏感。
func ParseSide(side string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(side)) {
	case string(SideBuy):
		return SideBuy, nil
	case string(SideSell):
		return SideSell, nil
	}
	return "", fmt.Errorf("trade: 方向必须为 BUY 或 SELL，收到 %q", side)
}

// ParseQuantity 解析数量，必须为大于0的十进制数。
func ParseQuantity(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("trade: 数量必须为十进制数字: %w", err)
	}
	if d.Sign() <= 0 {
		return decimal.Zero, errors.New("trade: 数量必须大于0")
	}
	return d, nil
}

// ParsePrice 解析价格，必须为大于0的十进制数。
func ParsePrice(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("trade: 价格必须为十进制数字: %w", err)
	}
	if d.Sign() <= 0 {
		return decimal.Zero, errors.New("trade: 价格必须大于0")
	}
	return d, nil
}

// NewIntent 构造经过完整校验的交易意图。
func NewIntent(symbol, side, quantity string) (TradeIntent, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return TradeIntent{}, err
	}
	s, err := ParseSide(side)
	if err != nil {
		return TradeIntent{}, err
	}
	qty, err := ParseQuantity(quantity)
	if err != nil {
		return TradeIntent{}, err
	}
	return TradeIntent{Symbol: sym, Side: s, Quantity: qty}, nil
}
