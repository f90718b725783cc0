package adapter

import (
	"testing"

	"main/internal/adapter/enum"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestApplyFillPartialThenFull(t *testing.T) {
	o := Order{
		ClientOrderID: "c-1",
		State:         enum.OrderStateAccepted,
		Price:         dec("100"),
		Quantity:      dec("2"),
	}

	state := o.ApplyFill(dec("0.5"), dec("99"), 1)
	assert.Equal(t, enum.OrderStatePartiallyFilled, state)
	assert.True(t, o.FilledQty.Equal(dec("0.5")))
	assert.True(t, o.LeavesQty().Equal(dec("1.5")))
	assert.True(t, o.AvgFillPrice.Equal(dec("99")))

	state = o.ApplyFill(dec("1.5"), dec("101"), 2)
	assert.Equal(t, enum.OrderStateFilled, state)
	assert.True(t, o.FilledQty.Equal(dec("2")))
	assert.True(t, o.LeavesQty().IsZero())
	// (0.5*99 + 1.5*101) / 2
	assert.True(t, o.AvgFillPrice.Equal(dec("100.5")))
	assert.Equal(t, int64(2), o.UpdatedTsNano)
}

func TestApplyFillClampsOverfill(t *testing.T) {
	o := Order{
		State:    enum.OrderStateAccepted,
		Quantity: dec("1"),
	}

	state := o.ApplyFill(dec("1.2"), dec("100"), 1)
	assert.Equal(t, enum.OrderStateFilled, state)
	assert.True(t, o.FilledQty.Equal(dec("1")))
	assert.True(t, o.LeavesQty().IsZero())
}

func TestOrderTerminalStates(t *testing.T) {
	for _, state := range []enum.OrderState{
		enum.OrderStateFilled,
		enum.OrderStateRejected,
		enum.OrderStateCanceled,
	} {
		assert.True(t, Order{State: state}.IsTerminal(), state.String())
	}
	for _, state := range []enum.OrderState{
		enum.OrderStatePendingSubmit,
		enum.OrderStateSubmitted,
		enum.OrderStateAccepted,
		enum.OrderStatePartiallyFilled,
	} {
		assert.False(t, Order{State: state}.IsTerminal(), state.String())
	}
}

func TestAccountStateBalanceLookup(t *testing.T) {
	s := AccountState{
		Balances: []Balance{
			{Asset: "USDT", Available: dec("100"), Locked: dec("25")},
			{Asset: "SOL", Available: dec("3")},
		},
	}

	b, ok := s.Balance("USDT")
	require.True(t, ok)
	assert.True(t, b.Total().Equal(dec("125")))

	_, ok = s.Balance("BTC")
	assert.False(t, ok)
}

func TestParseSymbol(t *testing.T) {
	assert.Equal(t, Symbol{Base: "SOL", Quote: "USDT"}, ParseSymbol("solusdt", "usdt"))
	assert.Equal(t, Symbol{Base: "SOLUSDT"}, ParseSymbol("SOLUSDT", "BTC"))
	assert.Equal(t, "SOLUSDT", NewSymbol("sol", "usdt").String())
	assert.True(t, Symbol{}.IsZero())
}
