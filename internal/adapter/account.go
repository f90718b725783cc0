package adapter

import "github.com/shopspring/decimal"

// Balance is a single-asset balance entry.
type Balance struct {
	Asset     string
	Available decimal.Decimal
	Locked    decimal.Decimal
}

func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Locked)
}

// AccountState is a whole snapshot of venue balances. It is never merged
// field by field, the latest snapshot always replaces the previous one.
type AccountState struct {
	Balances []Balance
	TsNano   int64
}

// Balance looks up one asset entry.
func (s AccountState) Balance(asset string) (Balance, bool) {
	for _, b := range s.Balances {
		if b.Asset == asset {
			return b, true
		}
	}
	return Balance{}, false
}
