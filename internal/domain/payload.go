package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// OneOrMany decodes a JSON value that is either a single object or an array
// of objects into a slice. null decodes to an empty slice.
type OneOrMany[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (o *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = OneOrMany[T]{one}
	return nil
}

// DecodeSeries normalizes an upstream price payload into a PriceSeries. The
// payload is either wrapped as {"stock": X} or is X itself, where X is a
// single point object or an array of point objects. An object with neither
// a usable "stock" nor a "price" field, such as {} or {"stock": null},
// yields an empty series.
func DecodeSeries(data []byte) (PriceSeries, error) {
	body := bytes.TrimSpace(data)
	if len(body) > 0 && body[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		stock, hasStock := fields["stock"]
		_, hasPrice := fields["price"]
		switch {
		case hasStock && !isNull(stock):
			body = stock
		case !hasPrice:
			return PriceSeries{}, nil
		}
	}

	var points OneOrMany[PricePoint]
	if err := json.Unmarshal(body, &points); err != nil {
		return nil, err
	}
	return PriceSeries(points), nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// DecodeStocks parses {"stocks": {"<name>": "<ticker>", ...}} keeping the
// object's key order.
func DecodeStocks(data []byte) ([]Stock, error) {
	var env struct {
		Stocks json.RawMessage `json:"stocks"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if len(env.Stocks) == 0 || bytes.Equal(env.Stocks, []byte("null")) {
		return nil, errors.New("missing stocks field")
	}

	dec := json.NewDecoder(bytes.NewReader(env.Stocks))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("stocks: expected object, got %v", tok)
	}

	stocks := []Stock{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("stocks: unexpected key %v", tok)
		}
		var ticker string
		if err := dec.Decode(&ticker); err != nil {
			return nil, fmt.Errorf("stocks[%s]: %w", name, err)
		}
		stocks = append(stocks, Stock{Name: name, Ticker: Ticker(ticker)})
	}
	return stocks, nil
}
