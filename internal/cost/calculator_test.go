package cost

import (
	"math"
	"testing"
)

func TestTokens(t *testing.T) {
	calc := NewCalculator(Rates{
		"test-model": {Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
	})

	got := calc.Tokens("test-model", 1_000_000, 200_000, 0, 0)
	want := 1.00 + 1.00 // 1M input + 200k output at 5/M
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Tokens() = %v, want %v", got, want)
	}
}

func TestTokensCacheRates(t *testing.T) {
	calc := NewCalculator(Rates{
		"test-model": {Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
	})

	got := calc.Tokens("test-model", 0, 0, 1_000_000, 1_000_000)
	want := 1.25 + 0.10
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Tokens() = %v, want %v", got, want)
	}
}

func TestTokensUnknownModel(t *testing.T) {
	calc := NewCalculator(DefaultRates())
	if got := calc.Tokens("nonexistent-model", 1000, 1000, 0, 0); got != 0 {
		t.Errorf("unknown model cost = %v, want 0", got)
	}
}

func TestDefaultRatesCoverConfiguredModels(t *testing.T) {
	rates := DefaultRates()
	for _, model := range []string{"claude-haiku-4-5-20251001", "claude-sonnet-4-5-20250929"} {
		if _, ok := rates[model]; !ok {
			t.Errorf("DefaultRates() missing %s", model)
		}
	}
}
