package errno

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"nil", nil, 0, "Success"},
		{"plain error", errors.New("boom"), InternalServerError.Code, "boom"},
		{"value", ErrTooManyUTXOs, 31004, "Too Many UTXOs"},
		{"pointer", &ErrBind, ErrBind.Code, ErrBind.Message},
		{"wrapped with detail", fmt.Errorf("intent: %w", ErrBelowMinimum.WithDetailf("Please deposit at least %s BTC", "0.0001")), 30004, "Minimum deposit required: Please deposit at least 0.0001 BTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := Decode(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestIsMatchesCodeIgnoringDetail(t *testing.T) {
	err := fmt.Errorf("wrap: %w", ErrInsufficientFunds.WithDetail("You need 0.00100000 BTC more"))

	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.True(t, errors.Is(err, &ErrInsufficientFunds))
	assert.False(t, errors.Is(err, ErrInsufficientLiquidity))
}

func TestWithDetailKeepsUpstreamTextVerbatim(t *testing.T) {
	upstream := "fee rate 100% above estimate: %s"
	e := ErrPrepareTransaction.WithDetail(upstream)
	assert.Equal(t, upstream, e.Detail)

	f := ErrBelowMinimum.WithDetailf("Please deposit at least %s BTC", "0.0001")
	assert.Equal(t, "Please deposit at least 0.0001 BTC", f.Detail)
}
