package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeSeriesShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []float64
	}{
		{
			name:    "wrapped single object",
			payload: `{"stock":{"price":231.95,"lastUpdatedAt":"2025-05-08T04:11:42.465706306Z"}}`,
			want:    []float64{231.95},
		},
		{
			name: "wrapped array",
			payload: `{"stock":[
				{"price":666.66,"lastUpdatedAt":"2025-05-08T04:11:42.465706306Z"},
				{"price":212.95,"lastUpdatedAt":"2025-05-08T04:12:42.465706306Z"}]}`,
			want: []float64{666.66, 212.95},
		},
		{
			name:    "bare array",
			payload: `[{"price":1,"lastUpdatedAt":"2025-05-08T04:00:00Z"},{"price":2,"lastUpdatedAt":"2025-05-08T04:01:00Z"}]`,
			want:    []float64{1, 2},
		},
		{
			name:    "bare object",
			payload: `{"price":3.5,"lastUpdatedAt":"2025-05-08T04:00:00Z"}`,
			want:    []float64{3.5},
		},
		{
			name:    "empty array",
			payload: `{"stock":[]}`,
			want:    []float64{},
		},
		{
			name:    "null stock",
			payload: `{"stock":null}`,
			want:    []float64{},
		},
		{
			name:    "empty object",
			payload: `{}`,
			want:    []float64{},
		},
		{
			name:    "unrelated fields only",
			payload: `{"status":"ok"}`,
			want:    []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, err := DecodeSeries([]byte(tt.payload))
			if err != nil {
				t.Fatalf("DecodeSeries: %v", err)
			}
			got := series.Prices()
			if len(got) != len(tt.want) {
				t.Fatalf("got %d points, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("point %d price = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDecodeSeriesKeepsOrderAndVolume(t *testing.T) {
	payload := `{"stock":[
		{"price":2,"lastUpdatedAt":"2025-05-08T04:05:00Z","volume":300},
		{"price":1,"lastUpdatedAt":"2025-05-08T04:00:00Z"}]}`
	series, err := DecodeSeries([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeSeries: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("got %d points, want 2", len(series))
	}
	// Delivered order is preserved even when timestamps are not ascending.
	if series[0].Price != 2 || series[1].Price != 1 {
		t.Errorf("series reordered: %+v", series)
	}
	if series[0].Volume == nil || *series[0].Volume != 300 {
		t.Errorf("series[0].Volume = %v, want 300", series[0].Volume)
	}
	if series[1].Volume != nil {
		t.Errorf("series[1].Volume = %v, want nil", *series[1].Volume)
	}
	want := time.Date(2025, 5, 8, 4, 5, 0, 0, time.UTC)
	if !series[0].Timestamp.Equal(want) {
		t.Errorf("series[0].Timestamp = %v, want %v", series[0].Timestamp, want)
	}
}

func TestDecodeSeriesInvalid(t *testing.T) {
	if _, err := DecodeSeries([]byte(`{"stock":"oops"}`)); err == nil {
		t.Error("expected error for string payload")
	}
	if _, err := DecodeSeries([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestOneOrManyNull(t *testing.T) {
	var v OneOrMany[int]
	if err := json.Unmarshal([]byte(`null`), &v); err != nil {
		t.Fatalf("Unmarshal(null): %v", err)
	}
	if len(v) != 0 {
		t.Errorf("len = %d, want 0", len(v))
	}
	if err := json.Unmarshal([]byte(`7`), &v); err != nil {
		t.Fatalf("Unmarshal(7): %v", err)
	}
	if len(v) != 1 || v[0] != 7 {
		t.Errorf("v = %v, want [7]", v)
	}
}

func TestDecodeStocksKeepsOrder(t *testing.T) {
	payload := `{"stocks":{"Nvidia Corporation":"NVDA","Apple Inc.":"AAPL","PayPal Holdings, Inc.":"PYPL"}}`
	stocks, err := DecodeStocks([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeStocks: %v", err)
	}
	want := []Stock{
		{Name: "Nvidia Corporation", Ticker: "NVDA"},
		{Name: "Apple Inc.", Ticker: "AAPL"},
		{Name: "PayPal Holdings, Inc.", Ticker: "PYPL"},
	}
	if len(stocks) != len(want) {
		t.Fatalf("got %d stocks, want %d", len(stocks), len(want))
	}
	for i := range want {
		if stocks[i] != want[i] {
			t.Errorf("stocks[%d] = %+v, want %+v", i, stocks[i], want[i])
		}
	}

	if _, err := DecodeStocks([]byte(`{"other":{}}`)); err == nil {
		t.Error("expected error when stocks field is missing")
	}
	if _, err := DecodeStocks([]byte(`{"stocks":["AAPL"]}`)); err == nil {
		t.Error("expected error when stocks is not an object")
	}
}
