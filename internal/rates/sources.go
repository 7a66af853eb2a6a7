package rates

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/Ouadii-Zine/financify/internal/infra"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

// --- RSS / Atom ---

// FeedSource reads fixings from a feed whose items announce a rate in
// their title or description, e.g. "SOFR 5.31% for 2025-03-14".
type FeedSource struct {
	index   string
	url     string
	headers map[string]string
	limiter *infra.RateLimiter
	parser  *gofeed.Parser
	now     func() time.Time
}

// NewFeedSource creates a feed source publishing index. Items that do not
// mention the index are ignored.
func NewFeedSource(index, url string, limiter *infra.RateLimiter, headers map[string]string) *FeedSource {
	return &FeedSource{
		index:   index,
		url:     url,
		headers: headers,
		limiter: limiter,
		parser:  gofeed.NewParser(),
		now:     time.Now,
	}
}

// Name returns the source label.
func (f *FeedSource) Name() string { return "feed:" + f.index }

// Fetch returns the latest fixing of the index found in the feed.
func (f *FeedSource) Fetch(ctx context.Context) ([]models.ReferenceRate, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, _, err := infra.DoGet(ctx, f.url, f.headers)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := f.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.url, err)
	}

	want := normalizeIndex(f.index)
	var best *models.ReferenceRate
	for _, item := range feed.Items {
		text := item.Title + " " + cleanHTML(item.Description)
		if !strings.Contains(normalizeIndex(text), want) {
			continue
		}
		rate, ok := parsePercent(text)
		if !ok {
			continue
		}
		r := models.ReferenceRate{Index: f.index, Rate: rate, AsOf: f.itemTime(item), Source: f.url}
		if best == nil || r.AsOf.After(best.AsOf) {
			best = &r
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w in feed %s for %s", ErrNoRates, f.url, f.index)
	}
	return []models.ReferenceRate{*best}, nil
}

func (f *FeedSource) itemTime(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	default:
		return f.now().UTC()
	}
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// --- HTML tables ---

// DefaultRowSelector matches the body rows of any table.
const DefaultRowSelector = "table tr"

// TableSource scrapes an HTML page whose rows hold an index name in the
// first cell and a percentage in the second.
type TableSource struct {
	index    string
	url      string
	selector string
	headers  map[string]string
	limiter  *infra.RateLimiter
	now      func() time.Time
}

// NewTableSource creates a table source. With an empty index every row
// with a parsable rate is returned.
func NewTableSource(index, url, selector string, limiter *infra.RateLimiter, headers map[string]string) *TableSource {
	if selector == "" {
		selector = DefaultRowSelector
	}
	return &TableSource{
		index:    index,
		url:      url,
		selector: selector,
		headers:  headers,
		limiter:  limiter,
		now:      time.Now,
	}
}

// Name returns the source label.
func (t *TableSource) Name() string {
	if t.index == "" {
		return "table:" + t.url
	}
	return "table:" + t.index
}

// Fetch downloads the page and reads its rate rows.
func (t *TableSource) Fetch(ctx context.Context) ([]models.ReferenceRate, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	headers := map[string]string{"Accept": "text/html"}
	for k, v := range t.headers {
		headers[k] = v
	}
	body, _, err := infra.DoGet(ctx, t.url, headers)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse rate table %s: %w", t.url, err)
	}

	asOf := t.now().UTC()
	want := normalizeIndex(t.index)
	var out []models.ReferenceRate
	doc.Find(t.selector).Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) < 2 || cells[0] == "" {
			return
		}
		if want != "" && normalizeIndex(cells[0]) != want {
			return
		}
		rate, ok := parseNumber(cells[1])
		if !ok {
			return
		}
		index := cells[0]
		if t.index != "" {
			index = t.index
		}
		out = append(out, models.ReferenceRate{Index: index, Rate: rate, AsOf: asOf, Source: t.url})
	})

	if len(out) == 0 {
		return nil, fmt.Errorf("%w in table %s", ErrNoRates, t.url)
	}
	return out, nil
}

func sortRates(rs []models.ReferenceRate) {
	slices.SortFunc(rs, func(a, b models.ReferenceRate) int {
		return strings.Compare(normalizeIndex(a.Index), normalizeIndex(b.Index))
	})
}
