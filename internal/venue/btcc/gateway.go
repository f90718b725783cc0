package btcc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"main/internal/adapter"
	"main/internal/venue"

	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

// Config holds venue credentials and endpoints.
type Config struct {
	DevMode   bool
	AccessID  string
	SecretKey string
	// Source tags orders placed through this connection.
	Source string
	// Markets limits the order and deal subscriptions. Empty subscribes all.
	Markets []string
	// BaseURL and WsURL override the builtin endpoints when set.
	BaseURL string
	WsURL   string
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.DevMode {
		return _baseURLDev
	}
	return _baseURL
}

func (c Config) wsURL() string {
	if c.WsURL != "" {
		return c.WsURL
	}
	if c.DevMode {
		return _baseWsURLDev
	}
	return _baseWsURL
}

// Gateway implements the venue boundary for BTCC spot: requests go through
// the signed REST API, updates arrive on the authenticated websocket.
type Gateway struct {
	cfg  Config
	rest *restClient

	mu          sync.Mutex
	wss         *ws.WebSocket
	stop        context.CancelFunc
	sessionDown chan error
}

func New(cfg Config, client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Gateway{
		cfg: cfg,
		rest: &restClient{
			client:    client,
			baseURL:   cfg.baseURL(),
			accessID:  cfg.AccessID,
			secretKey: cfg.SecretKey,
			source:    cfg.Source,
		},
	}
}

// Connect dials the private websocket and authenticates. The socket outlives
// the dial context; Close or a session drop ends it.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.wss != nil {
		return errors.Wrap(exception.ErrConnAlreadyConnected, "connect")
	}

	wsCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	wss := ws.New(wsCtx, g.cfg.wsURL())

	if err := wss.Start(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			sum := sha256.Sum256([]byte(g.cfg.SecretKey))
			if err := client.WriteJSON(map[string]any{
				"id":     _wsMethodAuthID,
				"method": "server.accessid_auth",
				"params": []any{g.cfg.AccessID, hex.EncodeToString(sum[:])},
			}); err != nil {
				return errors.Wrap(err, "write auth payload")
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[WsAckResponse](m)
			if !ok || resp.ID != _wsMethodAuthID {
				return false, nil
			}
			if resp.Error != nil || resp.Result.Status != "success" {
				return false, errors.Wrap(exception.ErrConnAuthFailed, "accessid auth rejected")
			}
			return true, nil
		},
	}); err != nil {
		cancel()
		return errors.Wrap(err, "start wss")
	}

	g.wss = wss
	g.stop = cancel
	g.sessionDown = make(chan error, 1)
	go g.watchSession(wsCtx, wss, g.sessionDown)
	return nil
}

// watchSession reports loss of the websocket session exactly once.
func (g *Gateway) watchSession(ctx context.Context, wss *ws.WebSocket, down chan error) {
	ch, cancel := wss.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if ok {
				continue
			}
			if ctx.Err() == nil {
				select {
				case down <- errors.New("websocket session closed"):
				default:
				}
			}
			return
		}
	}
}

// SessionDown signals loss of the authenticated session. Replaced by the
// next successful Connect.
func (g *Gateway) SessionDown() <-chan error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionDown
}

func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.wss == nil {
		return
	}
	g.wss.Close()
	g.stop()
	g.wss = nil
	g.stop = nil
}

func (g *Gateway) socket() (*ws.WebSocket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.wss == nil {
		return nil, errors.Wrap(exception.ErrConnNotConnected, "socket")
	}
	return g.wss, nil
}

// SubmitOrder places the order through REST. A venue-side rejection comes
// back as an unaccepted ack, not an error.
func (g *Gateway) SubmitOrder(ctx context.Context, order adapter.Order) (venue.SubmitAck, error) {
	rec, err := g.rest.placeOrder(ctx, order)
	if err != nil {
		if isVenueReject(err) {
			return venue.SubmitAck{
				ClientOrderID: order.ClientOrderID,
				Accepted:      false,
				Reason:        err.Error(),
				TsNano:        time.Now().UnixNano(),
			}, nil
		}
		return venue.SubmitAck{}, err
	}
	return venue.SubmitAck{
		ClientOrderID: order.ClientOrderID,
		OrderID:       orderID(rec.ID),
		Accepted:      true,
		TsNano:        toTsNano(rec.Ctime),
	}, nil
}

// CancelOrder cancels through REST. A venue-side rejection comes back as an
// uncanceled ack.
func (g *Gateway) CancelOrder(ctx context.Context, clientOrderID, venueOrderID string) (venue.CancelAck, error) {
	rec, err := g.rest.cancelOrder(ctx, clientOrderID, venueOrderID)
	if err != nil {
		if isVenueReject(err) {
			return venue.CancelAck{
				ClientOrderID: clientOrderID,
				OrderID:       venueOrderID,
				Canceled:      false,
				Reason:        err.Error(),
				TsNano:        time.Now().UnixNano(),
			}, nil
		}
		return venue.CancelAck{}, err
	}
	return venue.CancelAck{
		ClientOrderID: rec.ClientID,
		OrderID:       orderID(rec.ID),
		Canceled:      true,
		TsNano:        time.Now().UnixNano(),
	}, nil
}

// QueryOpenOrders returns every pending order plus the most recent finished
// ones, so reconciliation can settle transitions missed while disconnected.
func (g *Gateway) QueryOpenOrders(ctx context.Context) ([]venue.OrderSnapshot, error) {
	pending, err := g.rest.pendingOrders(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query pending orders")
	}
	finished, err := g.rest.finishedOrders(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query finished orders")
	}

	snapshots := make([]venue.OrderSnapshot, 0, len(pending)+len(finished))
	for _, rec := range pending {
		snapshots = append(snapshots, snapshotFromOrder(rec, false))
	}
	for _, rec := range finished {
		snapshots = append(snapshots, snapshotFromOrder(rec, true))
	}
	return snapshots, nil
}

func (g *Gateway) QueryInstruments(ctx context.Context) ([]venue.Instrument, error) {
	markets, err := g.rest.markets(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query markets")
	}
	instruments := make([]venue.Instrument, 0, len(markets))
	for _, m := range markets {
		instruments = append(instruments, instrumentFromMarket(m))
	}
	return instruments, nil
}

// Subscribe starts one typed stream. Submit and cancel acks are delivered by
// the synchronous REST responses, so those channels are unsupported here.
func (g *Gateway) Subscribe(ctx context.Context, channel venue.Channel) (<-chan venue.Message, error) {
	switch channel {
	case venue.ChannelOrders:
		return g.subscribeOrders(ctx)
	case venue.ChannelTrades:
		return g.subscribeDeals(ctx)
	case venue.ChannelBalances:
		return g.subscribeAssets(ctx)
	default:
		return nil, errors.Wrapf(exception.ErrStreamUnsupported, "channel %s", channel)
	}
}

func (g *Gateway) subscribeOrders(ctx context.Context) (<-chan venue.Message, error) {
	wss, err := g.socket()
	if err != nil {
		return nil, err
	}
	if err := g.sendSubscribe(ctx, wss, _wsMethodOrderID, "order.subscribe", marketParams(g.cfg.Markets)); err != nil {
		return nil, err
	}

	return g.observe(ctx, wss, "order.update", func(resp WsResponse) (venue.Message, bool) {
		var event int
		if err := resp.Unmarshal(0, &event); err != nil {
			logs.Warnf("btcc: bad order.update event: %v", err)
			return venue.Message{}, false
		}
		var order WsOrder
		if err := resp.Unmarshal(1, &order); err != nil {
			logs.Warnf("btcc: bad order.update payload: %v", err)
			return venue.Message{}, false
		}
		u := orderUpdateFromWs(event, order)
		return venue.Message{Kind: venue.KindOrderUpdate, Order: &u}, true
	}), nil
}

func (g *Gateway) subscribeDeals(ctx context.Context) (<-chan venue.Message, error) {
	wss, err := g.socket()
	if err != nil {
		return nil, err
	}
	if err := g.sendSubscribe(ctx, wss, _wsMethodDealsID, "deals.subscribe", marketParams(g.cfg.Markets)); err != nil {
		return nil, err
	}

	return g.observe(ctx, wss, "deals.update", func(resp WsResponse) (venue.Message, bool) {
		var deal WsDeal
		if err := resp.Unmarshal(1, &deal); err != nil {
			logs.Warnf("btcc: bad deals.update payload: %v", err)
			return venue.Message{}, false
		}
		t := tradeFromDeal(deal)
		return venue.Message{Kind: venue.KindTradeUpdate, Trade: &t}, true
	}), nil
}

func (g *Gateway) subscribeAssets(ctx context.Context) (<-chan venue.Message, error) {
	wss, err := g.socket()
	if err != nil {
		return nil, err
	}
	if err := g.sendSubscribe(ctx, wss, _wsMethodAssetID, "asset.subscribe", []any{}); err != nil {
		return nil, err
	}

	return g.observe(ctx, wss, "asset.update", func(resp WsResponse) (venue.Message, bool) {
		var assets map[string]WsAsset
		if err := resp.Unmarshal(0, &assets); err != nil {
			logs.Warnf("btcc: bad asset.update payload: %v", err)
			return venue.Message{}, false
		}
		b := venue.BalanceUpdate{
			Balances: balancesFromAssets(assets),
			TsNano:   time.Now().UnixNano(),
		}
		return venue.Message{Kind: venue.KindBalanceUpdate, Balance: &b}, true
	}), nil
}

func (g *Gateway) sendSubscribe(ctx context.Context, wss *ws.WebSocket, id int, method string, params []any) error {
	appendIntoRegister := true
	if err := wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			if err := client.WriteJSON(map[string]any{
				"id":     id,
				"method": method,
				"params": params,
			}); err != nil {
				return errors.Wrapf(err, "write %s payload", method)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[WsAckResponse](m)
			if !ok || resp.ID != id {
				return false, nil
			}
			if resp.Error != nil || resp.Result.Status != "success" {
				return false, errors.Errorf("%s rejected: %+v", method, resp.Error)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

// observe filters raw frames for one method and forwards translated
// messages. The output closes when the socket subscription ends, which the
// stream supervisor treats as a drop.
func (g *Gateway) observe(ctx context.Context, wss *ws.WebSocket, method string, translate func(WsResponse) (venue.Message, bool)) <-chan venue.Message {
	ch, cancel := wss.Subscribe()
	out := make(chan venue.Message, 64)

	go func() {
		defer cancel()
		defer close(out)
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[WsResponse](m)
				if !ok || resp.Method != method {
					continue
				}
				msg, ok := translate(resp)
				if !ok {
					continue
				}

				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func marketParams(markets []string) []any {
	params := make([]any, 0, len(markets))
	for _, m := range markets {
		params = append(params, m)
	}
	return params
}
