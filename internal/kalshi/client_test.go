package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/latencymon/internal/models"
)

// fakeServer upgrades every request, records the first command, replays frames and
// closes normally.
func fakeServer(t *testing.T, frames []string, gotCmd chan<- subscribeCommand, gotHeader chan<- http.Header) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotHeader != nil {
			gotHeader <- r.Header.Clone()
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var cmd subscribeCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if gotCmd != nil {
			gotCmd <- cmd
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/trade-api/ws/v2"
}

func TestSubscribeOrderbook_Ticker(t *testing.T) {
	frames := []string{
		`{"type":"subscribed","id":1,"msg":{"channel":"ticker","sid":1}}`,
		`{"type":"ticker","sid":1,"msg":{"market_ticker":"KXNFLGAME-NE","price":48,"yes_bid":45,"yes_ask":53}}`,
		`{"type":"ticker","sid":1,"msg":{"market_ticker":"KXNFLGAME-NE","price":49}}`,
	}
	cmds := make(chan subscribeCommand, 1)
	srv := fakeServer(t, frames, cmds, nil)
	defer srv.Close()

	ctx := context.Background()
	sub, err := NewClient(wsURL(srv), nil).SubscribeOrderbook(ctx, "KXNFLGAME-NE", ChannelTicker)
	require.NoError(t, err)
	defer sub.Close()

	cmd := <-cmds
	assert.Equal(t, "subscribe", cmd.Cmd)
	assert.Equal(t, []string{"ticker"}, cmd.Params.Channels)
	assert.Equal(t, []string{"KXNFLGAME-NE"}, cmd.Params.MarketTickers)

	snap, err := sub.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.YesBid)
	require.NotNil(t, snap.YesAsk)
	assert.Equal(t, 45, *snap.YesBid)
	assert.Equal(t, 53, *snap.YesAsk)

	snap, err = sub.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.YesBid)
	assert.Nil(t, snap.YesAsk)

	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSubscribeOrderbook_DeltaBook(t *testing.T) {
	frames := []string{
		`{"type":"orderbook_snapshot","sid":2,"seq":1,"msg":{"market_ticker":"M","yes":[[40,100],[42,5]],"no":[[50,10],[55,20]]}}`,
		`{"type":"orderbook_delta","sid":2,"seq":2,"msg":{"market_ticker":"M","price":55,"delta":-20,"side":"no"}}`,
		`{"type":"orderbook_delta","sid":2,"seq":3,"msg":{"market_ticker":"M","price":44,"delta":7,"side":"yes"}}`,
	}
	srv := fakeServer(t, frames, nil, nil)
	defer srv.Close()

	ctx := context.Background()
	sub, err := NewClient(wsURL(srv), nil).SubscribeOrderbook(ctx, "M", ChannelOrderbookDelta)
	require.NoError(t, err)
	defer sub.Close()

	snap, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, *snap.YesBid)
	assert.Equal(t, 45, *snap.YesAsk, "ask is 100 minus best no bid")

	snap, err = sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, *snap.YesAsk)

	snap, err = sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 44, *snap.YesBid)
	mid, ok := snap.Mid()
	require.True(t, ok)
	assert.InDelta(t, 0.47, mid, 1e-9)
}

func TestSubscribeOrderbook_UnsupportedChannel(t *testing.T) {
	_, err := NewClient("ws://unused", nil).SubscribeOrderbook(context.Background(), "M", "fills")
	assert.Error(t, err)
}

func TestSubscribeTrades(t *testing.T) {
	frames := []string{
		`{"type":"trade","sid":3,"msg":{"trade_id":"t1","market_ticker":"A","yes_price":36,"no_price":64,"count":136,"taker_side":"no","ts":1669149841}}`,
		`{"type":"trade","sid":3,"msg":{"trade_id":"t2","market_ticker":"B","yes_price":80,"no_price":20,"count":20000,"taker_side":"yes"}}`,
		`not json`,
		`{"type":"trade","sid":3,"msg":{"trade_id":"t3","market_ticker":"B","yes_price":80,"count":1,"taker_side":"sideways"}}`,
		`{"type":"error","id":4,"msg":{"code":6,"msg":"Already subscribed"}}`,
	}
	cmds := make(chan subscribeCommand, 1)
	srv := fakeServer(t, frames, cmds, nil)
	defer srv.Close()

	ctx := context.Background()
	sub, err := NewClient(wsURL(srv), nil).SubscribeTrades(ctx, nil)
	require.NoError(t, err)
	defer sub.Close()

	cmd := <-cmds
	assert.Equal(t, []string{"trade"}, cmd.Params.Channels)
	assert.Empty(t, cmd.Params.MarketTickers)

	trade, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TradeExecution{
		TradeID:    "t1",
		Ticker:     "A",
		PriceCents: 64,
		Count:      136,
		Side:       models.SideNo,
		ExecutedAt: time.Unix(1669149841, 0),
	}, trade)

	trade, err = sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 80, trade.PriceCents)
	assert.Equal(t, models.SideYes, trade.Side)

	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, models.ErrMalformedRecord)

	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, models.ErrMalformedRecord)

	_, err = sub.Next(ctx)
	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrMalformedRecord))
	assert.Contains(t, err.Error(), "Already subscribed")
}

func TestSubscription_ContextCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := NewClient(wsURL(srv), nil).SubscribeTrades(ctx, []string{"A"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := sub.Next(ctx)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after cancel")
	}
}

func testKeyPEM(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func TestSignerHeaders(t *testing.T) {
	key, pemData := testKeyPEM(t)
	s, err := NewSigner("key-123", pemData)
	require.NoError(t, err)
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }

	h, err := s.Headers(http.MethodGet, "/trade-api/ws/v2")
	require.NoError(t, err)
	assert.Equal(t, "key-123", h.Get("KALSHI-ACCESS-KEY"))
	assert.Equal(t, "1700000000123", h.Get("KALSHI-ACCESS-TIMESTAMP"))

	sig, err := base64.StdEncoding.DecodeString(h.Get("KALSHI-ACCESS-SIGNATURE"))
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("1700000000123GET/trade-api/ws/v2"))
	assert.NoError(t, rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, digest[:], sig,
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}))
}

func TestNewSigner_EscapedNewlinesAndPKCS1(t *testing.T) {
	key, _ := testKeyPEM(t)
	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	escaped := strings.ReplaceAll(string(pkcs1), "\n", `\n`)

	_, err := NewSigner("k", []byte(escaped))
	assert.NoError(t, err)
}

func TestNewSigner_Errors(t *testing.T) {
	_, pemData := testKeyPEM(t)

	_, err := NewSigner("", pemData)
	assert.Error(t, err)

	_, err = NewSigner("k", []byte("not a key"))
	assert.Error(t, err)
}

func TestClientSendsAuthHeaders(t *testing.T) {
	_, pemData := testKeyPEM(t)
	signer, err := NewSigner("key-abc", pemData)
	require.NoError(t, err)

	headers := make(chan http.Header, 1)
	srv := fakeServer(t, nil, nil, headers)
	defer srv.Close()

	sub, err := NewClient(wsURL(srv), signer).SubscribeTrades(context.Background(), nil)
	require.NoError(t, err)
	defer sub.Close()

	h := <-headers
	assert.Equal(t, "key-abc", h.Get("KALSHI-ACCESS-KEY"))
	assert.NotEmpty(t, h.Get("KALSHI-ACCESS-SIGNATURE"))
}
