package rates

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ouadii-Zine/financify/internal/config"
	"github.com/Ouadii-Zine/financify/internal/logging"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

const sofrFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Benchmark fixings</title>
  <item>
    <title>SOFR 5.31% for 2025-03-13</title>
    <pubDate>Thu, 13 Mar 2025 14:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Daily fixing</title>
    <description><![CDATA[<p>SOFR printed at <b>5.33%</b></p>]]></description>
    <pubDate>Fri, 14 Mar 2025 14:00:00 GMT</pubDate>
  </item>
  <item>
    <title>EFFR 5.08%</title>
    <pubDate>Sat, 15 Mar 2025 14:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

const euriborTable = `<html><body>
<table id="rates">
  <tr><th>Index</th><th>Rate</th></tr>
  <tr><td>Euribor 1M</td><td>2.41 %</td></tr>
  <tr><td>Euribor 3M</td><td>2,53%</td></tr>
  <tr><td>Euribor 6M</td><td>n/a</td></tr>
</table>
</body></html>`

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func fixtureServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		switch r.URL.Path {
		case "/sofr.xml":
			w.Header().Set("Content-Type", "application/rss+xml")
			w.Write([]byte(sofrFeed))
		case "/euribor.html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(euriborTable))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"SOFR 5.31%", 0.0531, true},
		{"30-day average at 5.2 %", 0.052, true},
		{"negative -0.45%", -0.0045, true},
		{"2,53%", 0.0253, true},
		{"no figure", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePercent(tt.in)
		if ok != tt.ok || !approxEqual(got, tt.want) {
			t.Errorf("parsePercent(%q): got %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeIndex(t *testing.T) {
	if normalizeIndex("Euribor 3M") != normalizeIndex("EURIBOR3M") {
		t.Error("index names should match regardless of case and spacing")
	}
}

func TestFeedSourceLatestFixing(t *testing.T) {
	srv := fixtureServer(t, nil)
	src := NewFeedSource("SOFR", srv.URL+"/sofr.xml", nil, nil)

	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rates, want 1", len(got))
	}
	if got[0].Index != "SOFR" || !approxEqual(got[0].Rate, 0.0533) {
		t.Errorf("rate: got %+v, want SOFR 0.0533", got[0])
	}
	if want := time.Date(2025, 3, 14, 14, 0, 0, 0, time.UTC); !got[0].AsOf.Equal(want) {
		t.Errorf("AsOf: got %v, want %v", got[0].AsOf, want)
	}
}

func TestFeedSourceMissingIndex(t *testing.T) {
	srv := fixtureServer(t, nil)
	_, err := NewFeedSource("SONIA", srv.URL+"/sofr.xml", nil, nil).Fetch(context.Background())
	if !errors.Is(err, ErrNoRates) {
		t.Errorf("got %v, want ErrNoRates", err)
	}
}

func TestTableSource(t *testing.T) {
	srv := fixtureServer(t, nil)

	all, err := NewTableSource("", srv.URL+"/euribor.html", "#rates tr", nil, nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d rates, want 2: %+v", len(all), all)
	}

	one, err := NewTableSource("EURIBOR3M", srv.URL+"/euribor.html", "", nil, nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(one) != 1 || one[0].Index != "EURIBOR3M" || !approxEqual(one[0].Rate, 0.0253) {
		t.Errorf("got %+v, want EURIBOR3M 0.0253", one)
	}
}

func TestServiceMergesAndCaches(t *testing.T) {
	var hits int32
	srv := fixtureServer(t, &hits)
	svc := NewService([]Source{
		NewFeedSource("SOFR", srv.URL+"/sofr.xml", nil, nil),
		NewTableSource("", srv.URL+"/euribor.html", "", nil, nil),
		NewFeedSource("SONIA", srv.URL+"/missing.xml", nil, nil),
	}, time.Minute, logging.Nop())

	got, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rates, want 3: %+v", len(got), got)
	}
	if got[0].Index != "Euribor 1M" || got[2].Index != "SOFR" {
		t.Errorf("rates should be sorted by index: %+v", got)
	}

	before := atomic.LoadInt32(&hits)
	if _, err := svc.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&hits) != before {
		t.Error("second Fetch should be served from cache")
	}

	svc.Invalidate()
	if _, err := svc.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&hits) == before {
		t.Error("Fetch after Invalidate should reach the sources")
	}
}

func TestServiceAllSourcesFail(t *testing.T) {
	srv := fixtureServer(t, nil)
	svc := NewService([]Source{NewFeedSource("SOFR", srv.URL+"/missing.xml", nil, nil)}, time.Minute, logging.Nop())

	if _, err := svc.Fetch(context.Background()); !errors.Is(err, ErrNoRates) {
		t.Errorf("got %v, want ErrNoRates", err)
	}
}

func TestFromConfig(t *testing.T) {
	svc, err := FromConfig(config.RatesConfig{
		Feeds: []config.FeedConfig{
			{Index: "SOFR", URL: "https://example.com/sofr.xml"},
			{Index: "EURIBOR3M", URL: "https://example.com/rates.html", Kind: "table"},
		},
		RequestsPerSecond: 1,
		CacheTTL:          60,
	}, logging.Nop())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if len(svc.sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(svc.sources))
	}
	if _, ok := svc.sources[1].(*TableSource); !ok {
		t.Errorf("second source: got %T, want *TableSource", svc.sources[1])
	}

	if _, err := FromConfig(config.RatesConfig{Feeds: []config.FeedConfig{{Index: "X", URL: "u", Kind: "ftp"}}}, nil); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := FromConfig(config.RatesConfig{Feeds: []config.FeedConfig{{Index: "X"}}}, nil); err == nil {
		t.Error("expected error for missing url")
	}
}

func TestApply(t *testing.T) {
	loans := []models.Loan{
		{ID: "a", ReferenceIndex: "sofr", ReferenceRate: 0.05},
		{ID: "b", ReferenceIndex: "Euribor 3M", ReferenceRate: 0.03},
		{ID: "c", ReferenceIndex: "SONIA", ReferenceRate: 0.04},
		{ID: "d", ReferenceRate: 0.02},
	}
	n := Apply(loans, []models.ReferenceRate{
		{Index: "SOFR", Rate: 0.0533},
		{Index: "EURIBOR3M", Rate: 0.0253},
	})
	if n != 2 {
		t.Errorf("updated: got %d, want 2", n)
	}
	if loans[0].ReferenceRate != 0.0533 || loans[1].ReferenceRate != 0.0253 {
		t.Errorf("rates not applied: %+v", loans[:2])
	}
	if loans[2].ReferenceRate != 0.04 || loans[3].ReferenceRate != 0.02 {
		t.Errorf("unmatched loans changed: %+v", loans[2:])
	}
}
