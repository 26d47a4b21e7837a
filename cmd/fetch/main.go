// Command fetch is a one-shot CLI for exercising the provider cascades:
// fetch quotes, history, gold or news once and print JSON to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"findata/internal/app"
	"findata/internal/config"
)

func main() {
	var (
		configPath string
		symbolsCSV string
		market     string
		history    string
		fromStr    string
		toStr      string
		interval   string
		newsQuery  string
		newsMax    int
		newsDays   int
		gold       bool
		timeout    int
	)

	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", ""), "comma-separated symbols to quote")
	flag.StringVar(&market, "market", getenv("MARKET", "US"), "market code (US, VN)")
	flag.StringVar(&history, "history", "", "symbol to fetch history for")
	flag.StringVar(&fromStr, "from", "", "history start date YYYY-MM-DD (default 3 months back)")
	flag.StringVar(&toStr, "to", "", "history end date YYYY-MM-DD (default today)")
	flag.StringVar(&interval, "interval", "1D", "history interval: 1D, 1W or 1M")
	flag.StringVar(&newsQuery, "news", "", "news search query")
	flag.IntVar(&newsMax, "news-max", 10, "max news results")
	flag.IntVar(&newsDays, "news-days", 30, "news lookback window in days")
	flag.BoolVar(&gold, "gold", false, "fetch gold prices")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 120), "overall timeout seconds")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	services, err := app.Build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("building services")
	}
	defer services.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	out := make(map[string]any)

	if symbolsCSV != "" {
		results, err := services.Quotes.BatchQuotes(ctx, splitCSV(symbolsCSV), market)
		if err != nil {
			log.Fatal().Err(err).Msg("batch quotes")
		}
		quotes := make(map[string]any, len(results))
		for sym, res := range results {
			if res.Err != nil {
				quotes[sym] = map[string]string{"error": res.Err.Error()}
				continue
			}
			quotes[sym] = res.Quote
		}
		out["quotes"] = quotes
	}

	if history != "" {
		to := time.Now().UTC()
		from := to.AddDate(0, -3, 0)
		if fromStr != "" {
			if from, err = time.Parse("2006-01-02", fromStr); err != nil {
				log.Fatal().Str("from", fromStr).Msg("from must be YYYY-MM-DD")
			}
		}
		if toStr != "" {
			if to, err = time.Parse("2006-01-02", toStr); err != nil {
				log.Fatal().Str("to", toStr).Msg("to must be YYYY-MM-DD")
			}
		}
		series, err := services.Quotes.History(ctx, history, market, from, to, interval)
		if err != nil {
			log.Fatal().Err(err).Msg("history")
		}
		out["history"] = series
	}

	if newsQuery != "" {
		items, err := services.News.Search(ctx, newsQuery, newsMax, newsDays)
		if err != nil {
			log.Fatal().Err(err).Msg("news search")
		}
		out["news"] = items
	}

	if gold {
		prices, err := services.Gold.Prices(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("gold prices")
		}
		out["gold"] = prices
	}

	if len(out) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("encoding output")
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if x, err := strconv.Atoi(v); err == nil && x > 0 {
			return x
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
