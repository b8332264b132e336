package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a USD price for one whole unit of an asset.
type Quote struct {
	Price     decimal.Decimal
	Timestamp time.Time
}

// Source resolves a USD quote for an asset symbol.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (Quote, error)
}

// SourceConfig describes an upstream price source.
type SourceConfig struct {
	Name     string
	Type     string
	Endpoint string
	APIKey   string
	// Assets maps asset symbols to source-specific identifiers, or for the
	// static source to fixed decimal prices.
	Assets map[string]string
}

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Registry constructs sources based on configuration.
type Registry struct {
	HTTPClient HTTPDoer
	Clock      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{HTTPClient: &http.Client{Timeout: 10 * time.Second}, Clock: time.Now}
}

// Build creates a source from cfg.
func (r *Registry) Build(cfg SourceConfig) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "coingecko":
		return newCoinGeckoSource(r.client(), label(cfg.Name, "coingecko"), cfg.Endpoint, cfg.Assets, r.clock()), nil
	case "http":
		if strings.TrimSpace(cfg.Endpoint) == "" {
			return nil, fmt.Errorf("source %s: endpoint required", cfg.Name)
		}
		return &httpSource{client: r.client(), name: label(cfg.Name, "http"), endpoint: cfg.Endpoint, apiKey: cfg.APIKey}, nil
	case "static":
		return NewStaticSource(label(cfg.Name, "static"), cfg.Assets, r.clock())
	default:
		return nil, fmt.Errorf("unknown oracle type %q", cfg.Type)
	}
}

func (r *Registry) client() HTTPDoer {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (r *Registry) clock() func() time.Time {
	if r.Clock != nil {
		return r.Clock
	}
	return time.Now
}

func label(name, fallback string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed != "" {
		return trimmed
	}
	return fallback
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// StaticSource serves fixed prices stamped with the current time. It backs
// local development networks.
type StaticSource struct {
	name   string
	prices map[string]decimal.Decimal
	clock  func() time.Time
}

func NewStaticSource(name string, prices map[string]string, clock func() time.Time) (*StaticSource, error) {
	parsed := make(map[string]decimal.Decimal, len(prices))
	for symbol, raw := range prices {
		value, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("static source %s: price for %s: %w", name, symbol, err)
		}
		if !value.IsPositive() {
			return nil, fmt.Errorf("static source %s: price for %s must be positive", name, symbol)
		}
		parsed[normaliseSymbol(symbol)] = value
	}
	if clock == nil {
		clock = time.Now
	}
	return &StaticSource{name: name, prices: parsed, clock: clock}, nil
}

func (s *StaticSource) Name() string { return s.name }

func (s *StaticSource) Fetch(ctx context.Context, symbol string) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, err
	}
	price, ok := s.prices[normaliseSymbol(symbol)]
	if !ok {
		return Quote{}, fmt.Errorf("static source %s: no price for %s", s.name, symbol)
	}
	return Quote{Price: price, Timestamp: s.clock()}, nil
}

// httpSource reads {"price": "...", "timestamp": <unix>} from endpoint with
// the symbol substituted for "{symbol}".
type httpSource struct {
	client   HTTPDoer
	name     string
	endpoint string
	apiKey   string
}

type httpQuotePayload struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
}

func (s *httpSource) Name() string { return s.name }

func (s *httpSource) Fetch(ctx context.Context, symbol string) (Quote, error) {
	target := strings.ReplaceAll(s.endpoint, "{symbol}", url.PathEscape(normaliseSymbol(symbol)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Quote{}, err
	}
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, fmt.Errorf("%s: status %d: %s", s.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload httpQuotePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("%s: decode: %w", s.name, err)
	}
	if !payload.Price.IsPositive() {
		return Quote{}, fmt.Errorf("%s: invalid price %s", s.name, payload.Price.String())
	}
	if payload.Timestamp <= 0 {
		return Quote{}, fmt.Errorf("%s: quote missing timestamp", s.name)
	}
	return Quote{Price: payload.Price, Timestamp: time.Unix(payload.Timestamp, 0)}, nil
}

const defaultCoinGeckoEndpoint = "https://api.coingecko.com/api/v3/simple/price"

// coinGeckoSource adapts the public CoinGecko simple price API.
type coinGeckoSource struct {
	client   HTTPDoer
	name     string
	endpoint string
	idMap    map[string]string
	clock    func() time.Time
}

func newCoinGeckoSource(client HTTPDoer, name, endpoint string, idMap map[string]string, clock func() time.Time) *coinGeckoSource {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = defaultCoinGeckoEndpoint
	}
	mapped := make(map[string]string, len(idMap))
	for k, v := range idMap {
		mapped[normaliseSymbol(k)] = strings.TrimSpace(v)
	}
	return &coinGeckoSource{client: client, name: name, endpoint: ep, idMap: mapped, clock: clock}
}

func (s *coinGeckoSource) Name() string { return s.name }

func (s *coinGeckoSource) assetID(symbol string) string {
	if id, ok := s.idMap[normaliseSymbol(symbol)]; ok && id != "" {
		return id
	}
	return strings.ToLower(strings.TrimSpace(symbol))
}

type coinGeckoEntry struct {
	USD           decimal.NullDecimal `json:"usd"`
	LastUpdatedAt int64               `json:"last_updated_at"`
}

func (s *coinGeckoSource) Fetch(ctx context.Context, symbol string) (Quote, error) {
	id := s.assetID(symbol)
	if id == "" {
		return Quote{}, fmt.Errorf("coingecko: unmapped asset %s", symbol)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	values := url.Values{}
	values.Set("ids", id)
	values.Set("vs_currencies", "usd")
	values.Set("include_last_updated_at", "true")
	req.URL.RawQuery = values.Encode()
	resp, err := s.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, fmt.Errorf("coingecko: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload map[string]coinGeckoEntry
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("coingecko: decode: %w", err)
	}
	entry, ok := payload[id]
	if !ok || !entry.USD.Valid {
		return Quote{}, fmt.Errorf("coingecko: quote missing for %s", symbol)
	}
	if !entry.USD.Decimal.IsPositive() {
		return Quote{}, fmt.Errorf("coingecko: invalid price %s", entry.USD.Decimal.String())
	}
	ts := s.clock().UTC()
	if entry.LastUpdatedAt > 0 {
		ts = time.Unix(entry.LastUpdatedAt, 0)
	}
	return Quote{Price: entry.USD.Decimal, Timestamp: ts}, nil
}
