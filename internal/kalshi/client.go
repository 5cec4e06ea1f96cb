// Package kalshi streams order-book quotes and trade executions from the Kalshi WebSocket API.
package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rewired-gh/latencymon/internal/logger"
	"github.com/rewired-gh/latencymon/internal/models"
)

const (
	DefaultWSURL     = "wss://api.elections.kalshi.com/trade-api/ws/v2"
	handshakeTimeout = 10 * time.Second
)

// Client opens authenticated stream subscriptions. Each subscription owns its connection.
type Client struct {
	wsURL  string
	signer *Signer
	dialer *websocket.Dialer
	nextID atomic.Int64
}

// NewClient creates a client. A nil signer dials without authentication headers.
func NewClient(wsURL string, signer *Signer) *Client {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &Client{
		wsURL:  wsURL,
		signer: signer,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// SubscribeOrderbook streams top-of-book snapshots for one market. channel is
// ChannelTicker or ChannelOrderbookDelta.
func (c *Client) SubscribeOrderbook(ctx context.Context, ticker, channel string) (*OrderbookSubscription, error) {
	if channel != ChannelTicker && channel != ChannelOrderbookDelta {
		return nil, fmt.Errorf("unsupported order book channel %q", channel)
	}
	conn, err := c.subscribe(ctx, subscribeParams{
		Channels:      []string{channel},
		MarketTickers: []string{ticker},
	})
	if err != nil {
		return nil, err
	}
	return &OrderbookSubscription{conn: conn, book: newBook()}, nil
}

// SubscribeTrades streams executions for the given markets, or all markets when tickers is empty.
func (c *Client) SubscribeTrades(ctx context.Context, tickers []string) (*TradeSubscription, error) {
	conn, err := c.subscribe(ctx, subscribeParams{
		Channels:      []string{ChannelTrade},
		MarketTickers: tickers,
	})
	if err != nil {
		return nil, err
	}
	return &TradeSubscription{conn: conn}, nil
}

func (c *Client) subscribe(ctx context.Context, params subscribeParams) (*streamConn, error) {
	header := http.Header{}
	if c.signer != nil {
		u, err := url.Parse(c.wsURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse websocket URL: %w", err)
		}
		header, err = c.signer.Headers(http.MethodGet, u.Path)
		if err != nil {
			return nil, err
		}
	}

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.wsURL, err)
	}

	cmd := subscribeCommand{ID: c.nextID.Add(1), Cmd: "subscribe", Params: params}
	if err := conn.WriteJSON(cmd); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send subscribe: %w", err)
	}
	logger.Info("Subscribed to %v (markets: %v)", params.Channels, params.MarketTickers)

	return newStreamConn(ctx, conn), nil
}

// streamConn closes the socket when ctx is cancelled so a blocked read returns.
type streamConn struct {
	ctx       context.Context
	conn      *websocket.Conn
	closeOnce sync.Once
	stop      chan struct{}
}

func newStreamConn(ctx context.Context, conn *websocket.Conn) *streamConn {
	s := &streamConn{ctx: ctx, conn: conn, stop: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.stop:
		}
	}()
	return s
}

func (s *streamConn) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

// read returns the next data frame, skipping subscription acknowledgements.
// A server error frame is returned as an error.
func (s *streamConn) read(ctx context.Context) (envelope, time.Time, error) {
	for {
		if err := ctx.Err(); err != nil {
			return envelope{}, time.Time{}, err
		}
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return envelope{}, time.Time{}, ctxErr
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return envelope{}, time.Time{}, io.EOF
			}
			return envelope{}, time.Time{}, fmt.Errorf("read: %w", err)
		}
		received := time.Now()

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return envelope{}, received, fmt.Errorf("%w: frame: %v", models.ErrMalformedRecord, err)
		}
		switch env.Type {
		case typeSubscribed, typeOK:
			continue
		case typeError:
			var e errorMsg
			_ = json.Unmarshal(env.Msg, &e)
			return envelope{}, received, fmt.Errorf("server error %d: %s", e.Code, e.Msg)
		}
		return env, received, nil
	}
}

// OrderbookSubscription implements the order-book stream consumed by the market listener.
type OrderbookSubscription struct {
	conn *streamConn
	book *book
}

// Next blocks until the next top-of-book snapshot.
func (s *OrderbookSubscription) Next(ctx context.Context) (models.OrderbookSnapshot, error) {
	for {
		env, received, err := s.conn.read(ctx)
		if err != nil {
			return models.OrderbookSnapshot{}, err
		}
		switch env.Type {
		case typeTicker:
			return decodeTicker(env.Msg, received)
		case typeOrderbookSnapshot:
			var m orderbookSnapshotMsg
			if err := json.Unmarshal(env.Msg, &m); err != nil {
				return models.OrderbookSnapshot{}, fmt.Errorf("%w: orderbook snapshot: %v", models.ErrMalformedRecord, err)
			}
			s.book.reset(m)
			return s.book.snapshot(received), nil
		case typeOrderbookDelta:
			var m orderbookDeltaMsg
			if err := json.Unmarshal(env.Msg, &m); err != nil {
				return models.OrderbookSnapshot{}, fmt.Errorf("%w: orderbook delta: %v", models.ErrMalformedRecord, err)
			}
			if err := s.book.apply(m); err != nil {
				return models.OrderbookSnapshot{}, err
			}
			return s.book.snapshot(received), nil
		default:
			logger.Debug("Ignoring %q frame on order book stream", env.Type)
		}
	}
}

func (s *OrderbookSubscription) Close() error {
	return s.conn.Close()
}

// TradeSubscription implements the trade stream consumed by the whale monitor.
type TradeSubscription struct {
	conn *streamConn
}

// Next blocks until the next trade execution.
func (s *TradeSubscription) Next(ctx context.Context) (models.TradeExecution, error) {
	for {
		env, _, err := s.conn.read(ctx)
		if err != nil {
			return models.TradeExecution{}, err
		}
		if env.Type != typeTrade {
			logger.Debug("Ignoring %q frame on trade stream", env.Type)
			continue
		}
		return decodeTrade(env.Msg)
	}
}

func (s *TradeSubscription) Close() error {
	return s.conn.Close()
}
