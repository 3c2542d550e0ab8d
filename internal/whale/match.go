package whale

import (
	"sort"
	"strings"
	"time"

	"WhaleConsensus/internal/model"
)

// closedTrade is a BUY lot closed by a later SELL on the same asset.
type closedTrade struct {
	Asset      string
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	EntryTime  time.Time
	ExitTime   time.Time
	PnL        float64
}

func (c closedTrade) holdHours() float64 {
	d := c.ExitTime.Sub(c.EntryTime).Hours()
	if d < 0 {
		return 0
	}
	return d
}

func (c closedTrade) winner() bool { return c.PnL > 0 }

type lot struct {
	price float64
	size  float64
	at    time.Time
}

// matchTrades pairs SELLs with the oldest open BUY lots per asset (FIFO).
// SELLs with no open lot are ignored.
func matchTrades(trades []model.Trade) []closedTrade {
	byAsset := make(map[string][]model.Trade)
	var assets []string
	for _, t := range trades {
		if _, ok := byAsset[t.Asset]; !ok {
			assets = append(assets, t.Asset)
		}
		byAsset[t.Asset] = append(byAsset[t.Asset], t)
	}

	var closed []closedTrade
	for _, asset := range assets {
		list := byAsset[asset]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })

		var queue []lot
		for _, t := range list {
			switch model.TradeSide(strings.ToUpper(string(t.Side))) {
			case model.TradeBuy:
				queue = append(queue, lot{price: t.Price, size: t.Size, at: t.Timestamp})
			case model.TradeSell:
				remaining := t.Size
				for remaining > 0 && len(queue) > 0 {
					head := &queue[0]
					fill := remaining
					if head.size < fill {
						fill = head.size
					}
					closed = append(closed, closedTrade{
						Asset:      asset,
						EntryPrice: head.price,
						ExitPrice:  t.Price,
						Size:       fill,
						EntryTime:  head.at,
						ExitTime:   t.Timestamp,
						PnL:        (t.Price - head.price) * fill,
					})
					remaining -= fill
					head.size -= fill
					if head.size <= 0 {
						queue = queue[1:]
					}
				}
			}
		}
	}
	return closed
}
