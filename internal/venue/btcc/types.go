package btcc

import (
	"encoding/json"

	"main/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

const (
	_baseURL    = "https://spotapi2.btcccdn.com"
	_baseURLDev = "https://spot.cryptouat.com:9910"

	_baseWsURL    = "wss://spotprice2.btcccdn.com/ws"
	_baseWsURLDev = "wss://spot.cryptouat.com:8700/ws"

	_wsMethodAuthID  = 1
	_wsMethodOrderID = 2
	_wsMethodDealsID = 3
	_wsMethodAssetID = 4
)

const (
	_orderEventPut    = 1
	_orderEventUpdate = 2
	_orderEventFinish = 3
)

// Response is the REST envelope every trade endpoint uses.
type Response[T any] struct {
	ID    int64          `json:"id"`
	Error *ResponseError `json:"error,omitempty"`
	Data  T              `json:"result"`
}

type ResponseError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ResponseOrder is one order record, shared by the place response and the
// pending/finished queries.
type ResponseOrder struct {
	ID        int64   `json:"id"`
	Type      int     `json:"type"`
	Side      int     `json:"side"`
	Option    int     `json:"option"`
	Ctime     float64 `json:"ctime"`
	Mtime     float64 `json:"mtime"`
	Market    string  `json:"market"`
	Source    string  `json:"source"`
	ClientID  string  `json:"client_id"`
	Price     string  `json:"price"`
	Amount    string  `json:"amount"`
	Left      string  `json:"left"`
	DealStock string  `json:"deal_stock"`
	DealMoney string  `json:"deal_money"`
	Status    int     `json:"status"`
}

type ResponseOrderList struct {
	Total   int             `json:"total"`
	Records []ResponseOrder `json:"records"`
}

type ResponseCancelOrder struct {
	ID       int64  `json:"id"`
	Market   string `json:"market"`
	ClientID string `json:"client_id"`
	Left     string `json:"left"`
}

// ResponseMarket is one entry of the market metadata list.
type ResponseMarket struct {
	Name           string `json:"name"`
	Stock          string `json:"stock"`
	Money          string `json:"money"`
	StockPrecision int    `json:"stock_prec"`
	MoneyPrecision int    `json:"money_prec"`
	MinAmount      string `json:"min_amount"`
	MinMoney       string `json:"min_money"`
}

// WsResponse is a raw stream frame: a method with positional params.
type WsResponse struct {
	ID     any               `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func (r WsResponse) Unmarshal(index int, p any) error {
	if index >= len(r.Params) {
		return errors.Wrapf(exception.ErrInvalidArgument, "param index %d, len %d", index, len(r.Params))
	}
	if err := sonic.ConfigFastest.Unmarshal(r.Params[index], p); err != nil {
		return errors.Wrapf(err, "unmarshal param %d", index)
	}
	return nil
}

// WsAckResponse acknowledges an auth or subscribe request.
type WsAckResponse struct {
	ID int `json:"id"`

	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`

	Result struct {
		Status string `json:"status"`
	} `json:"result"`
}

// WsOrder is the order payload of an order.update frame.
type WsOrder struct {
	ID             int64   `json:"id"`
	Type           int     `json:"type"`
	Side           int     `json:"side"`
	Option         int     `json:"option"`
	Ctime          float64 `json:"ctime"`
	Mtime          float64 `json:"mtime"`
	Market         string  `json:"market"`
	Source         string  `json:"source"`
	ClientID       string  `json:"client_id"`
	Price          string  `json:"price"`
	Amount         string  `json:"amount"`
	Left           string  `json:"left"`
	DealStock      string  `json:"deal_stock"`
	DealMoney      string  `json:"deal_money"`
	LastDealAmount string  `json:"last_deal_amount"`
	LastDealPrice  string  `json:"last_deal_price"`
	LastDealTime   float64 `json:"last_deal_time"`
	LastDealID     int64   `json:"last_deal_id"`
}

// WsDeal is one execution of a deals.update frame.
type WsDeal struct {
	ID       int64   `json:"id"`
	Time     float64 `json:"time"`
	Price    string  `json:"price"`
	Amount   string  `json:"amount"`
	OrderID  int64   `json:"order_id"`
	ClientID string  `json:"client_id"`
}

// WsAsset is one balance entry of an asset.update frame, keyed by asset.
type WsAsset struct {
	Available string `json:"available"`
	Freeze    string `json:"freeze"`
}
