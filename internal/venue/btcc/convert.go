package btcc

import (
	"sort"
	"strconv"
	"time"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/venue"

	"github.com/shopspring/decimal"
)

func sideCode(side enum.OrderSide) string {
	switch side {
	case enum.OrderSideSell:
		return "2"
	default:
		return "1"
	}
}

func timeInForceCode(tif enum.OrderTimeInForce) string {
	switch tif {
	case enum.OrderTimeInForceIOC:
		return "8"
	case enum.OrderTimeInForceFOK:
		return "16"
	default:
		return "0"
	}
}

// toDecimal parses a wire decimal string, treating empty and malformed
// values as zero. The venue emits empty strings for untouched fields.
func toDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// toTsNano converts the venue's fractional unix-second timestamps. The whole
// and fractional parts are scaled separately, a single float multiply loses
// sub-second precision at epoch scale.
func toTsNano(sec float64) int64 {
	if sec <= 0 {
		return time.Now().UnixNano()
	}
	whole := int64(sec)
	frac := sec - float64(whole)
	return whole*int64(time.Second) + int64(frac*float64(time.Second))
}

func orderID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// orderStatus derives the canonical status of an order.update frame from
// its event code and fill progress.
func orderStatus(event int, o WsOrder) venue.OrderStatus {
	switch event {
	case _orderEventPut:
		return venue.OrderStatusAccepted
	case _orderEventUpdate:
		return venue.OrderStatusPartiallyFilled
	case _orderEventFinish:
		if toDecimal(o.Left).IsZero() && !toDecimal(o.DealStock).IsZero() {
			return venue.OrderStatusFilled
		}
		return venue.OrderStatusCanceled
	default:
		return venue.OrderStatusUnknown
	}
}

func orderUpdateFromWs(event int, o WsOrder) venue.OrderUpdate {
	return venue.OrderUpdate{
		ClientOrderID: o.ClientID,
		OrderID:       orderID(o.ID),
		Status:        orderStatus(event, o),
		Price:         toDecimal(o.Price),
		Quantity:      toDecimal(o.Amount),
		FilledQty:     toDecimal(o.DealStock),
		TsNano:        toTsNano(o.Mtime),
	}
}

func tradeFromDeal(d WsDeal) venue.TradeUpdate {
	return venue.TradeUpdate{
		TradeID:       strconv.FormatInt(d.ID, 10),
		ClientOrderID: d.ClientID,
		OrderID:       orderID(d.OrderID),
		Price:         toDecimal(d.Price),
		Quantity:      toDecimal(d.Amount),
		TsNano:        toTsNano(d.Time),
	}
}

// balancesFromAssets flattens an asset.update payload. The output is sorted
// by asset so snapshots compare stably.
func balancesFromAssets(assets map[string]WsAsset) []adapter.Balance {
	balances := make([]adapter.Balance, 0, len(assets))
	for asset, a := range assets {
		balances = append(balances, adapter.Balance{
			Asset:     asset,
			Available: toDecimal(a.Available),
			Locked:    toDecimal(a.Freeze),
		})
	}
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].Asset < balances[j].Asset
	})
	return balances
}

// snapshotFromOrder converts one pending or finished order record.
func snapshotFromOrder(rec ResponseOrder, finished bool) venue.OrderSnapshot {
	qty := toDecimal(rec.Amount)
	filled := toDecimal(rec.DealStock)
	dealMoney := toDecimal(rec.DealMoney)

	status := venue.OrderStatusAccepted
	switch {
	case finished && toDecimal(rec.Left).IsZero() && !filled.IsZero():
		status = venue.OrderStatusFilled
	case finished:
		status = venue.OrderStatusCanceled
	case !filled.IsZero():
		status = venue.OrderStatusPartiallyFilled
	}

	avg := decimal.Zero
	if !filled.IsZero() {
		avg = dealMoney.Div(filled)
	}

	return venue.OrderSnapshot{
		ClientOrderID: rec.ClientID,
		OrderID:       orderID(rec.ID),
		Status:        status,
		Price:         toDecimal(rec.Price),
		Quantity:      qty,
		FilledQty:     filled,
		AvgFillPrice:  avg,
		TsNano:        toTsNano(rec.Mtime),
	}
}

func instrumentFromMarket(m ResponseMarket) venue.Instrument {
	return venue.Instrument{
		Symbol:      adapter.NewSymbol(m.Stock, m.Money),
		PriceStep:   stepFromPrecision(m.MoneyPrecision),
		QtyStep:     stepFromPrecision(m.StockPrecision),
		MinQty:      toDecimal(m.MinAmount),
		MinNotional: toDecimal(m.MinMoney),
	}
}

func stepFromPrecision(prec int) decimal.Decimal {
	if prec <= 0 {
		return decimal.New(1, 0)
	}
	return decimal.New(1, int32(-prec))
}
