package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/net/html"

	"github.com/kalder/weather-staging/internal/registry"
	"github.com/kalder/weather-staging/internal/wx"
	"github.com/kalder/weather-staging/internal/wx/normalize"
)

const nwsName = "nws"

// nwsColumns are the table columns selected by position: date, time, wind,
// weather, air temperature, 6-hour max. The observation history page has no
// stable header names, so position is the contract; a row that cannot cover
// these positions is a response error rather than a misaligned record.
var nwsColumns = []int{0, 1, 2, 4, 6, 8}

const nwsMinCells = 9

// NWSClient scrapes the observation history table published per station.
type NWSClient struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewNWSClient(client *http.Client) *NWSClient {
	return &NWSClient{
		baseURL: "https://forecast.weather.gov/data/obhistory",
		httpCfg: HTTPClientConfig{Client: client},
		circuit: newBreaker(nwsName),
		now:     time.Now,
	}
}

func (p *NWSClient) Name() string {
	return nwsName
}

// FetchCurrent fetches and parses the station's observation history page.
func (p *NWSClient) FetchCurrent(ctx context.Context, loc registry.LocationEntry) ([]wx.ObservationRecord, error) {
	if loc.StationID == "" {
		return nil, &wx.ConfigError{Reason: fmt.Sprintf("location %q has no station id", loc.Name)}
	}

	pageURL := fmt.Sprintf("%s/K%s.html", p.baseURL, loc.StationID)
	body, err := doRequestWithRetry(ctx, p.httpCfg, p.circuit, nwsName, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, pageURL, nil)
	})
	if err != nil {
		return nil, err
	}

	rows, err := extractObservationRows(body)
	if err != nil {
		return nil, err
	}

	return normalize.NWSObservations(rows, loc, p.now().UTC())
}

// FetchForecast is not served by this client.
func (p *NWSClient) FetchForecast(ctx context.Context, loc registry.LocationEntry) ([]wx.ForecastRecord, error) {
	return nil, wx.ErrNotSupported
}

// extractObservationRows pulls the data rows out of the history table,
// selecting the fixed column subset and discarding the trailing footer rows
// that restate the header label.
func extractObservationRows(page []byte) ([]normalize.NWSRow, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, &wx.ResponseError{Provider: nwsName, Reason: "unparseable html", Excerpt: wx.Excerpt(page)}
	}

	table := largestTable(doc)
	if table == nil {
		return nil, &wx.ResponseError{Provider: nwsName, Reason: "no observation table found"}
	}

	var rows []normalize.NWSRow
	for _, tr := range findAll(table, "tr") {
		cells := findAll(tr, "td")
		if len(cells) == 0 {
			// header row (th cells only)
			continue
		}

		texts := make([]string, len(cells))
		for i, td := range cells {
			texts[i] = strings.TrimSpace(nodeText(td))
		}

		// Footer rows restate the header label instead of carrying data.
		if strings.Contains(texts[0], "Date") {
			continue
		}

		if len(texts) < nwsMinCells {
			return nil, &wx.ResponseError{
				Provider: nwsName,
				Reason:   fmt.Sprintf("observation row has %d columns, expected at least %d", len(texts), nwsMinCells),
				Excerpt:  strings.Join(texts, "|"),
			}
		}

		rows = append(rows, normalize.NWSRow{
			Date:       texts[nwsColumns[0]],
			Time:       texts[nwsColumns[1]],
			Wind:       texts[nwsColumns[2]],
			Weather:    texts[nwsColumns[3]],
			AirTempF:   texts[nwsColumns[4]],
			SixHourMax: texts[nwsColumns[5]],
			Raw:        strings.Join(texts, "|"),
		})
	}

	return rows, nil
}

// largestTable returns the <table> with the most rows; the history page
// nests layout tables around the data table.
func largestTable(doc *html.Node) *html.Node {
	var best *html.Node
	bestRows := 0
	for _, table := range findAll(doc, "table") {
		if n := len(findAll(table, "tr")); n > bestRows {
			best, bestRows = table, n
		}
	}
	return best
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag && node != n {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
