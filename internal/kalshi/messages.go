package kalshi

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rewired-gh/latencymon/internal/models"
	"github.com/rewired-gh/latencymon/internal/strategy"
)

// Subscription channels.
const (
	ChannelTicker         = "ticker"
	ChannelOrderbookDelta = "orderbook_delta"
	ChannelTrade          = "trade"
)

// Server message types.
const (
	typeSubscribed        = "subscribed"
	typeOK                = "ok"
	typeError             = "error"
	typeTicker            = "ticker"
	typeOrderbookSnapshot = "orderbook_snapshot"
	typeOrderbookDelta    = "orderbook_delta"
	typeTrade             = "trade"
)

type subscribeCommand struct {
	ID     int64           `json:"id"`
	Cmd    string          `json:"cmd"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers,omitempty"`
}

// envelope is the outer frame of every server message.
type envelope struct {
	Type string          `json:"type"`
	ID   int64           `json:"id,omitempty"`
	SID  int64           `json:"sid,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
	Msg  json.RawMessage `json:"msg"`
}

type errorMsg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type tickerMsg struct {
	MarketTicker string `json:"market_ticker"`
	Price        *int   `json:"price,omitempty"`
	YesBid       *int   `json:"yes_bid,omitempty"`
	YesAsk       *int   `json:"yes_ask,omitempty"`
}

// orderbookSnapshotMsg levels are [price_cents, quantity] bids on each side.
type orderbookSnapshotMsg struct {
	MarketTicker string   `json:"market_ticker"`
	Yes          [][2]int `json:"yes"`
	No           [][2]int `json:"no"`
}

type orderbookDeltaMsg struct {
	MarketTicker string `json:"market_ticker"`
	Price        int    `json:"price"`
	Delta        int    `json:"delta"`
	Side         string `json:"side"`
}

type tradeMsg struct {
	TradeID      string `json:"trade_id"`
	MarketTicker string `json:"market_ticker"`
	YesPrice     int    `json:"yes_price"`
	NoPrice      int    `json:"no_price"`
	Count        int    `json:"count"`
	TakerSide    string `json:"taker_side"`
	TS           int64  `json:"ts"`
}

func decodeTicker(raw json.RawMessage, received time.Time) (models.OrderbookSnapshot, error) {
	var m tickerMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return models.OrderbookSnapshot{}, fmt.Errorf("%w: ticker: %v", models.ErrMalformedRecord, err)
	}
	return models.OrderbookSnapshot{
		Ticker:   m.MarketTicker,
		YesBid:   m.YesBid,
		YesAsk:   m.YesAsk,
		Received: received,
	}, nil
}

// book is a per-market bid ladder (price cents → resting quantity) for each side.
type book struct {
	ticker string
	yes    map[int]int
	no     map[int]int
}

func newBook() *book {
	return &book{yes: make(map[int]int), no: make(map[int]int)}
}

func (b *book) reset(m orderbookSnapshotMsg) {
	b.ticker = m.MarketTicker
	b.yes = make(map[int]int, len(m.Yes))
	b.no = make(map[int]int, len(m.No))
	for _, lvl := range m.Yes {
		b.yes[lvl[0]] = lvl[1]
	}
	for _, lvl := range m.No {
		b.no[lvl[0]] = lvl[1]
	}
}

func (b *book) apply(m orderbookDeltaMsg) error {
	var side map[int]int
	switch m.Side {
	case "yes":
		side = b.yes
	case "no":
		side = b.no
	default:
		return fmt.Errorf("%w: orderbook delta side %q", models.ErrMalformedRecord, m.Side)
	}
	side[m.Price] += m.Delta
	if side[m.Price] <= 0 {
		delete(side, m.Price)
	}
	return nil
}

// snapshot derives the best YES ask from the best NO bid, since the book only
// carries bids for each side.
func (b *book) snapshot(received time.Time) models.OrderbookSnapshot {
	snap := models.OrderbookSnapshot{Ticker: b.ticker, Received: received}
	if bid, ok := bestBid(b.yes); ok {
		snap.YesBid = &bid
	}
	if noBid, ok := bestBid(b.no); ok {
		ask := int(math.Round(strategy.ReciprocalPrice(float64(noBid)/100.0) * 100.0))
		snap.YesAsk = &ask
	}
	return snap
}

func bestBid(levels map[int]int) (int, bool) {
	best, found := 0, false
	for price, qty := range levels {
		if qty <= 0 {
			continue
		}
		if !found || price > best {
			best, found = price, true
		}
	}
	return best, found
}

func decodeTrade(raw json.RawMessage) (models.TradeExecution, error) {
	var m tradeMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return models.TradeExecution{}, fmt.Errorf("%w: trade: %v", models.ErrMalformedRecord, err)
	}
	side, err := models.ParseSide(m.TakerSide)
	if err != nil {
		return models.TradeExecution{}, fmt.Errorf("%w: trade %s: %v", models.ErrMalformedRecord, m.TradeID, err)
	}
	price := m.YesPrice
	if side == models.SideNo {
		price = m.NoPrice
	}
	trade := models.TradeExecution{
		TradeID:    m.TradeID,
		Ticker:     m.MarketTicker,
		PriceCents: price,
		Count:      m.Count,
		Side:       side,
	}
	if m.TS > 0 {
		trade.ExecutedAt = time.Unix(m.TS, 0)
	}
	return trade, nil
}
