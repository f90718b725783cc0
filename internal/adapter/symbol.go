package adapter

import "strings"

// Symbol is a trading pair identifier.
type Symbol struct {
	Base  string
	Quote string
}

func NewSymbol(base, quote string) Symbol {
	return Symbol{
		Base:  strings.ToUpper(base),
		Quote: strings.ToUpper(quote),
	}
}

// ParseSymbol splits a venue market name such as "SOLUSDT" on the given quote
// asset. Falls back to the raw name as base when the quote does not match.
func ParseSymbol(market, quote string) Symbol {
	upper := strings.ToUpper(market)
	q := strings.ToUpper(quote)
	if q != "" && strings.HasSuffix(upper, q) {
		return Symbol{Base: strings.TrimSuffix(upper, q), Quote: q}
	}
	return Symbol{Base: upper}
}

func (s Symbol) String() string {
	return s.Base + s.Quote
}

func (s Symbol) IsZero() bool {
	return s.Base == "" && s.Quote == ""
}
