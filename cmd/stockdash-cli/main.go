package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"stockdash/internal/api"
	"stockdash/internal/dashboard"
	"stockdash/internal/domain"
	"stockdash/pkg/stockdash"
)

const version = "0.1.0"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	avgStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cellStyle   = lipgloss.NewStyle().Width(7).Align(lipgloss.Center)
	labelStyle  = lipgloss.NewStyle().Width(8).Bold(true)
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stockdash-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version            Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  stocks             List tracked stocks\n")
		fmt.Fprintf(os.Stderr, "  chart <ticker>     Show a stock's price history\n")
		fmt.Fprintf(os.Stderr, "  heatmap            Show the correlation heatmap\n")
		fmt.Fprintf(os.Stderr, "  snapshots          List recorded snapshots\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		fmt.Fprintf(os.Stderr, "  -server URL        stockdash-server base URL (default http://localhost:8080)\n")
		fmt.Fprintf(os.Stderr, "  -minutes N         window in minutes, 0 for all history (default 5)\n")
		fmt.Fprintf(os.Stderr, "  -grpc ADDR         heatmap: use the gRPC service at ADDR\n")
		fmt.Fprintf(os.Stderr, "  -tickers A,B       heatmap: restrict to these tickers\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "stockdash-server base URL")
	minutes := fs.Int("minutes", 5, "window in minutes, 0 for all history")
	grpcAddr := fs.String("grpc", "", "gRPC address for heatmap")
	tickers := fs.String("tickers", "", "comma-separated tickers for heatmap")
	limit := fs.Int("limit", 10, "snapshots to list")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client := stockdash.NewClient(*server)

	var err error
	switch cmd {
	case "version":
		fmt.Printf("stockdash-cli %s\n", version)
	case "stocks":
		err = listStocks(ctx, client)
	case "chart":
		if fs.NArg() < 1 {
			fmt.Fprintf(os.Stderr, "chart: missing ticker\n\n")
			flag.Usage()
			os.Exit(1)
		}
		err = showChart(ctx, client, fs.Arg(0), *minutes)
	case "heatmap":
		err = showHeatmap(ctx, client, *grpcAddr, *minutes, splitList(*tickers))
	case "snapshots":
		err = listSnapshots(ctx, client, *limit)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func listStocks(ctx context.Context, c *stockdash.Client) error {
	stocks, err := c.Stocks(ctx)
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%-8s %s", "TICKER", "NAME")))
	for _, s := range stocks {
		fmt.Printf("%-8s %s\n", s.Ticker, s.Name)
	}
	return nil
}

func showChart(ctx context.Context, c *stockdash.Client, ticker string, minutes int) error {
	h, err := c.PriceHistory(ctx, ticker, minutes)
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%s  %s", h.Ticker, h.Label)))
	if len(h.Points) == 0 {
		fmt.Println(dimStyle.Render("No data available"))
		return nil
	}

	prices := make([]float64, len(h.Points))
	for i, p := range h.Points {
		prices[i] = p.Price
	}
	fmt.Println(sparkline(prices))
	fmt.Println(avgStyle.Render(h.AverageLabel) + dimStyle.Render(fmt.Sprintf("  (%s samples)", dashboard.FormatCompact(float64(h.Count)))))
	fmt.Println()
	fmt.Println(dimStyle.Render(fmt.Sprintf("%-10s %12s %14s", "TIME", "PRICE", "VOLUME")))
	for _, p := range h.Points {
		fmt.Printf("%-10s %12s %14s\n",
			dashboard.FormatTime(p.Timestamp, time.Local),
			dashboard.FormatPrice(p.Price),
			dashboard.FormatVolume(p.Volume),
		)
	}
	return nil
}

// sparkline draws prices as one row of block characters.
func sparkline(prices []float64) string {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range prices {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	var b strings.Builder
	for _, p := range prices {
		idx := 0
		if hi > lo {
			idx = int((p - lo) / (hi - lo) * float64(len(sparkBlocks)-1))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

func showHeatmap(ctx context.Context, c *stockdash.Client, grpcAddr string, minutes int, tickers []string) error {
	var (
		m     domain.Matrix
		names map[domain.Ticker]string
		err   error
	)
	if grpcAddr != "" {
		m, err = grpcMatrix(ctx, grpcAddr, minutes, tickers)
	} else {
		m, names, err = httpMatrix(ctx, c, minutes, tickers)
	}
	if err != nil {
		return err
	}
	renderHeatmap(dashboard.NewHeatmap(m, names), domain.Window(minutes))
	return nil
}

func grpcMatrix(ctx context.Context, addr string, minutes int, tickers []string) (domain.Matrix, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return domain.Matrix{}, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()
	ts := make([]domain.Ticker, len(tickers))
	for i, t := range tickers {
		ts[i] = domain.Ticker(t)
	}
	return api.NewCorrelationClient(conn).Matrix(ctx, domain.Window(minutes), ts...)
}

func httpMatrix(ctx context.Context, c *stockdash.Client, minutes int, tickers []string) (domain.Matrix, map[domain.Ticker]string, error) {
	resp, err := c.Correlation(ctx, minutes, tickers...)
	if err != nil {
		return domain.Matrix{}, nil, err
	}
	ts := make([]domain.Ticker, len(resp.Tickers))
	names := make(map[domain.Ticker]string, len(resp.Tickers))
	for i, t := range resp.Tickers {
		ts[i] = domain.Ticker(t)
		if i < len(resp.Names) {
			names[ts[i]] = resp.Names[i]
		}
	}
	m := domain.NewMatrix(ts, resp.AlignedLength)
	for i := range ts {
		copy(m.Values[i], resp.Values[i])
		copy(m.Undefined[i], resp.Undefined[i])
	}
	return m, names, nil
}

func renderHeatmap(h dashboard.Heatmap, window domain.Window) {
	fmt.Println(headerStyle.Render("Correlation  " + window.Label()))
	if h.Empty() {
		fmt.Println(dimStyle.Render("No data available"))
		return
	}

	var header strings.Builder
	header.WriteString(labelStyle.Render(""))
	for _, t := range h.Tickers {
		header.WriteString(cellStyle.Bold(true).Render(string(t)))
	}
	fmt.Println(header.String())

	for i, row := range h.Rows {
		var line strings.Builder
		line.WriteString(labelStyle.Render(string(h.Tickers[i])))
		for _, cell := range row {
			style := cellStyle.
				Background(lipgloss.Color(cell.Background.Hex())).
				Foreground(lipgloss.Color(textHex(cell.Foreground)))
			line.WriteString(style.Render(cell.Text))
		}
		fmt.Println(line.String())
	}

	var legend strings.Builder
	for _, e := range h.Legend {
		legend.WriteString(lipgloss.NewStyle().Background(lipgloss.Color(e.Color.Hex())).Render("  "))
		legend.WriteString(" " + e.Label + "   ")
	}
	fmt.Println()
	fmt.Println(legend.String())
	if len(h.Names) > 0 {
		for i, t := range h.Tickers {
			fmt.Println(dimStyle.Render(fmt.Sprintf("%-8s %s", t, h.Names[i])))
		}
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("aligned samples: %d", h.AlignedLength)))
}

func textHex(name string) string {
	if name == dashboard.TextLight {
		return "#ffffff"
	}
	return "#000000"
}

func listSnapshots(ctx context.Context, c *stockdash.Client, limit int) error {
	snaps, err := c.Snapshots(ctx, -1, limit)
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%-20s %-8s %-8s %s", "TAKEN", "MINUTES", "STOCKS", "HASH")))
	for _, s := range snaps {
		hash := s.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Printf("%-20s %-8s %-8d %s\n",
			s.TakenAt.Local().Format("2006-01-02 15:04:05"),
			domain.Window(s.Minutes).Key(),
			len(s.Matrix.Tickers),
			hash,
		)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
