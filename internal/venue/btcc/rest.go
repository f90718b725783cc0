package btcc

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"main/internal/adapter"
	"main/internal/adapter/enum"

	"main/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

const (
	_pathOrderLimit    = "/btcc_api_trade/order/limit"
	_pathOrderMarket   = "/btcc_api_trade/order/market"
	_pathOrderCancel   = "/btcc_api_trade/order/cancel"
	_pathOrderPending  = "/btcc_api_trade/order/pending"
	_pathOrderFinished = "/btcc_api_trade/order/finished"
	_pathMarketList    = "/btcc_api_trade/market/list"

	_queryPageLimit = 100

	_codeInvalidAccessID = 11
	_codeAuthFailed      = 12
)

type restClient struct {
	client    *http.Client
	baseURL   string
	accessID  string
	secretKey string
	source    string
}

// sign builds the authorization header: md5 over the sorted k=v pairs of the
// body plus the secret key.
func (c *restClient) sign(body map[string]string) string {
	pairs := make([]string, 0, len(body)+1)
	for k, v := range body {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	pairs = append(pairs, fmt.Sprintf("secret_key=%s", c.secretKey))
	sort.Strings(pairs)
	hash := md5.Sum([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(hash[:])
}

func postRequest[T any](ctx context.Context, c *restClient, path string, body map[string]string) (T, error) {
	var zero T

	body["access_id"] = c.accessID
	body["tm"] = strconv.FormatInt(time.Now().Unix(), 10)

	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return zero, errors.Wrap(err, "marshal request body")
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return zero, errors.Wrap(err, "new request")
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("authorization", c.sign(body))

	resp, err := c.client.Do(r)
	if err != nil {
		return zero, errors.Wrapf(err, "post %s", path)
	}
	defer resp.Body.Close()

	var data Response[T]
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&data); err != nil {
		return zero, errors.Wrapf(err, "decode %s response", path)
	}
	if data.Error != nil && data.Error.Code != 0 {
		switch data.Error.Code {
		case _codeInvalidAccessID, _codeAuthFailed:
			return zero, errors.Wrapf(exception.ErrConnAuthFailed, "code %d: %s", data.Error.Code, data.Error.Message)
		default:
			return zero, errors.Wrapf(exception.ErrInResponseError, "code %d: %s", data.Error.Code, data.Error.Message)
		}
	}
	return data.Data, nil
}

func (c *restClient) placeOrder(ctx context.Context, order adapter.Order) (ResponseOrder, error) {
	body := map[string]string{
		"market":    order.Symbol.String(),
		"side":      sideCode(order.Side),
		"amount":    order.Quantity.String(),
		"source":    c.source,
		"option":    timeInForceCode(order.TimeInForce),
		"client_id": order.ClientOrderID,
	}

	path := _pathOrderMarket
	if order.Type == enum.OrderTypeLimit {
		path = _pathOrderLimit
		body["price"] = order.Price.String()
	}
	return postRequest[ResponseOrder](ctx, c, path, body)
}

func (c *restClient) cancelOrder(ctx context.Context, clientOrderID, orderID string) (ResponseCancelOrder, error) {
	body := map[string]string{
		"client_id": clientOrderID,
	}
	if orderID != "" {
		body["order_id"] = orderID
	}
	return postRequest[ResponseCancelOrder](ctx, c, _pathOrderCancel, body)
}

// pendingOrders pages through every open order.
func (c *restClient) pendingOrders(ctx context.Context) ([]ResponseOrder, error) {
	var records []ResponseOrder
	for offset := 0; ; offset += _queryPageLimit {
		page, err := postRequest[ResponseOrderList](ctx, c, _pathOrderPending, map[string]string{
			"offset": strconv.Itoa(offset),
			"limit":  strconv.Itoa(_queryPageLimit),
		})
		if err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if len(records) >= page.Total || len(page.Records) == 0 {
			return records, nil
		}
	}
}

// finishedOrders returns the most recent closed orders, enough to reconcile
// terminal transitions missed while disconnected.
func (c *restClient) finishedOrders(ctx context.Context) ([]ResponseOrder, error) {
	page, err := postRequest[ResponseOrderList](ctx, c, _pathOrderFinished, map[string]string{
		"offset": "0",
		"limit":  strconv.Itoa(_queryPageLimit),
	})
	if err != nil {
		return nil, err
	}
	return page.Records, nil
}

func (c *restClient) markets(ctx context.Context) ([]ResponseMarket, error) {
	return postRequest[[]ResponseMarket](ctx, c, _pathMarketList, map[string]string{})
}
