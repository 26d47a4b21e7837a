package vci

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"findata/internal/httpx"
	"findata/internal/provider"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL}, httpx.New(time.Second, 5*time.Second))
}

func TestFetchBatchParsesPriceBoard(t *testing.T) {
	t.Parallel()
	var gotBody map[string][]string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/price/symbols/getList", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &gotBody))
		w.Write([]byte(`[
			{"symbol":"VNM","openPrice":65000,"highestPrice":66000,"lowestPrice":64500,"matchedPrice":65500,"totalVolume":1200000,"tradingDate":"2025-06-02"},
			{"ticker":"FPT","openPrice":120000,"highestPrice":122000,"lowestPrice":119000,"lastPrice":121000,"totalVolume":800000,"tradingDate":""}
		]`))
	})

	out, err := p.FetchBatch(context.Background(), []string{"vnm", "fpt"})
	require.NoError(t, err)
	require.Equal(t, []string{"VNM", "FPT"}, gotBody["symbols"])
	require.Len(t, out, 2)
	require.Equal(t, 65500.0, out["VNM"].Close)
	require.Equal(t, "VND", out["VNM"].Currency)
	require.Equal(t, 121000.0, out["FPT"].Close, "ticker/lastPrice spelling accepted")
	require.False(t, out["FPT"].AsOf.IsZero(), "missing tradingDate falls back to now")
}

func TestFetchBatchEmptyBoardIsNoData(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := p.FetchBatch(context.Background(), []string{"VNM"})
	kind, ok := provider.KindOf(err)
	require.True(t, ok)
	require.Equal(t, provider.KindNoData, kind)
}

func TestFetchHistoryParsesParallelArrays(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chart/OHLCChart/gap-chart", r.URL.Path)
		var body map[string]any
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &body))
		require.Equal(t, "ONE_DAY", body["timeFrame"])
		w.Write([]byte(`[{
			"symbol":"VNM",
			"t":[1748822400,1748908800],
			"o":[65000,65500],"h":[66000,66500],"l":[64500,65000],"c":[65500,66000],"v":[1200000,900000]
		}]`))
	})

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	out, err := p.FetchHistory(context.Background(), "vnm", from, to, "1D")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, 65500.0, out[0].Close)
	require.True(t, out[0].AsOf.Before(out[1].AsOf))
}

func TestFetchHistoryRaggedSeriesIsInvalidData(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"symbol":"VNM","t":[1748822400,1748908800],"o":[65000],"h":[66000],"l":[64500],"c":[65500],"v":[1200000]}]`))
	})

	_, err := p.FetchHistory(context.Background(), "VNM", time.Now().AddDate(0, 0, -2), time.Now(), "1D")
	kind, ok := provider.KindOf(err)
	require.True(t, ok)
	require.Equal(t, provider.KindInvalidData, kind)
}

func TestParseTradingDate(t *testing.T) {
	t.Parallel()
	require.Equal(t, 2025, parseTradingDate("2025-06-02").Year())
	require.Equal(t, 2025, parseTradingDate("2025-06-02T10:30:00Z").Year())
	require.Equal(t, 2025, parseTradingDate("1748859000000").Year())
	require.True(t, parseTradingDate("").IsZero())
	require.True(t, parseTradingDate("garbage").IsZero())
}
