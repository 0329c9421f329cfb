package trade

import (
	"strings"
	"testing"
)

func TestNormalizeSymbol(t *testing.T) {
	cases := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"BTCUSDT", "BTCUSDT", false},
		{"btcusdt", "BTCUSDT", false},
		{"  ethusdt  ", "ETHUSDT", false},
		{"BTC", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		got, err := NormalizeSymbol(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeSymbol(%q): expected error, got %q", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeSymbol(%q): unexpected error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseSide(t *testing.T) {
	if side, err := ParseSide("buy"); err != nil || side != SideBuy {
		t.Errorf("ParseSide(buy) = %v, %v", side, err)
	}
	if side, err := ParseSide(" SELL "); err != nil || side != SideSell {
		t.Errorf("ParseSide(SELL) = %v, %v", side, err)
	}
	if _, err := ParseSide("HOLD"); err == nil {
		t.Errorf("ParseSide(HOLD): expected error")
	}
}

func TestSideOpposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Errorf("BUY 的对侧应为 SELL")
	}
	if SideSell.Opposite() != SideBuy {
		t.Errorf("SELL 的对侧应为 BUY")
	}
}

func TestParseQuantityRejectsInvalid(t *testing.T) {
	for _, raw := range []string{"0", "-1", "-0.001", "abc", "", "1.2.3"} {
		if _, err := ParseQuantity(raw); err == nil {
			t.Errorf("ParseQuantity(%q): expected error", raw)
		}
	}

	qty, err := ParseQuantity("0.001")
	if err != nil {
		t.Fatalf("ParseQuantity(0.001): unexpected error: %v", err)
	}
	if qty.String() != "0.001" {
		t.Errorf("ParseQuantity(0.001) = %s", qty)
	}
}

func TestParsePriceRejectsInvalid(t *testing.T) {
	for _, raw := range []string{"0", "-64000", "sixty", ""} {
		if _, err := ParsePrice(raw); err == nil {
			t.Errorf("ParsePrice(%q): expected error", raw)
		}
	}

	price, err := ParsePrice("64000.5")
	if err != nil {
		t.Fatalf("ParsePrice(64000.5): unexpected error: %v", err)
	}
	if price.String() != "64000.5" {
		t.Errorf("ParsePrice(64000.5) = %s", price)
	}
}

func TestNewIntent(t *testing.T) {
	intent, err := NewIntent("btcusdt", "buy", "0.01")
	if err != nil {
		t.Fatalf("NewIntent returned error: %v", err)
	}
	if intent.Symbol != "BTCUSDT" || intent.Side != SideBuy || intent.Quantity.String() != "0.01" {
		t.Errorf("unexpected intent: %+v", intent)
	}

	if _, err := NewIntent("BTCUSDT", "BUY", "0"); err == nil || !strings.Contains(err.Error(), "数量") {
		t.Errorf("expected quantity error, got %v", err)
	}
}
