package binance

import (
	"context"
	"net/url"
	"sort"
)

type exchangeInfoResponse struct {
	Symbols []exchangeSymbol `json:"symbols"`
}

type exchangeSymbol struct {
	Symbol       string `json:"symbol"`
	ContractType string `json:"contractType"`
	QuoteAsset   string `json:"quoteAsset"`
	Status       string `json:"status"`
}

// PerpetualSymbols returns the sorted set of symbols that are USDT-margined,
// perpetual, and currently trading. All three conditions must hold.
func (c *Client) PerpetualSymbols(ctx context.Context) ([]string, error) {
	var info exchangeInfoResponse
	if err := c.getJSON(ctx, "/fapi/v1/exchangeInfo", url.Values{}, &info); err != nil {
		return nil, err
	}

	var symbols []string
	for _, s := range info.Symbols {
		if s.ContractType == "PERPETUAL" && s.QuoteAsset == "USDT" && s.Status == "TRADING" {
			symbols = append(symbols, s.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}
