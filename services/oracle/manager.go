package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"dscengine/native/dsc"
	"dscengine/observability"
)

// futureTolerance rejects source timestamps too far ahead of the local clock.
const futureTolerance = 5 * time.Second

var half = decimal.RequireFromString("0.5")

// Feed binds an asset symbol to the feed address the engine reads and the
// number of decimals answers are published with.
type Feed struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// Recorder persists raw samples and aggregated snapshots.
type Recorder interface {
	RecordSample(ctx context.Context, feed, source, price string, observed, recorded time.Time) error
	RecordSnapshot(ctx context.Context, feed, median string, feeders []string, proofID string, ts time.Time) error
}

// Update is emitted for every aggregated round.
type Update struct {
	Feed    common.Address
	Symbol  string
	Median  decimal.Decimal
	Answer  *uint256.Int
	Feeders []string
	ProofID string
	Time    time.Time
}

// Publisher is notified after a round has been written to the feed store.
type Publisher interface {
	PublishOracleUpdate(ctx context.Context, update Update) error
}

// PublisherFunc adapts ordinary functions to Publisher.
type PublisherFunc func(ctx context.Context, update Update) error

// PublishOracleUpdate implements Publisher.
func (f PublisherFunc) PublishOracleUpdate(ctx context.Context, update Update) error {
	if f == nil {
		return nil
	}
	return f(ctx, update)
}

// Manager polls its sources, aggregates a median per feed and publishes the
// result into Feeds.
type Manager struct {
	logger    *slog.Logger
	recorder  Recorder
	store     *Feeds
	sources   []Source
	feeds     []Feed
	minFeeds  int
	maxAge    time.Duration
	interval  time.Duration
	publisher Publisher
	clock     func() time.Time
	metrics   *observability.OracleMetrics
	once      sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		m.recorder = r
	}
}

func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// New constructs a manager publishing into store.
func New(store *Feeds, sources []Source, feeds []Feed, interval, maxAge time.Duration, minFeeds int, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("feed store required")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one source required")
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("at least one feed required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	if minFeeds <= 0 {
		minFeeds = 1
	}
	mgr := &Manager{
		logger:   slog.Default(),
		store:    store,
		sources:  append([]Source{}, sources...),
		feeds:    append([]Feed{}, feeds...),
		interval: interval,
		maxAge:   maxAge,
		minFeeds: minFeeds,
		clock:    time.Now,
		metrics:  observability.Oracle(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mgr)
		}
	}
	if mgr.publisher == nil {
		mgr.publisher = PublisherFunc(func(context.Context, Update) error { return nil })
	}
	return mgr, nil
}

// Run blocks, periodically polling upstream sources until the context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("manager not configured")
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.once.Do(func() {
		m.logger.Info("oracle manager started", "sources", len(m.sources), "feeds", len(m.feeds))
	})
	for {
		if err := m.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("oracle tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs a single aggregation cycle across every feed. A feed that
// fails keeps its previous answer; the first failure is returned after all
// feeds were attempted.
func (m *Manager) Tick(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("manager not configured")
	}
	var firstErr error
	for _, feed := range m.feeds {
		if err := m.processFeed(ctx, feed); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) processFeed(ctx context.Context, feed Feed) error {
	symbol := normaliseSymbol(feed.Symbol)
	if symbol == "" {
		return fmt.Errorf("feed %s has no symbol", feed.Address.Hex())
	}
	now := m.clock()
	prices := make([]decimal.Decimal, 0, len(m.sources))
	feeders := make([]string, 0, len(m.sources))
	var oldest time.Time
	for _, src := range m.sources {
		if src == nil {
			continue
		}
		quote, err := src.Fetch(ctx, symbol)
		if err != nil {
			m.metrics.RecordSourceError(src.Name())
			m.logger.Warn("oracle source failed", "source", src.Name(), "symbol", symbol, "error", err)
			continue
		}
		if !quote.Price.IsPositive() {
			m.metrics.RecordSourceError(src.Name())
			m.logger.Warn("oracle source returned invalid price", "source", src.Name(), "symbol", symbol)
			continue
		}
		if quote.Timestamp.After(now.Add(futureTolerance)) {
			m.logger.Warn("oracle source produced future timestamp", "source", src.Name(), "symbol", symbol)
			continue
		}
		if quote.Timestamp.Before(now.Add(-m.maxAge)) {
			m.logger.Warn("oracle source quote expired", "source", src.Name(), "symbol", symbol)
			continue
		}
		if oldest.IsZero() || quote.Timestamp.Before(oldest) {
			oldest = quote.Timestamp
		}
		feeders = append(feeders, src.Name())
		prices = append(prices, quote.Price)
		if m.recorder != nil {
			if err := m.recorder.RecordSample(ctx, feed.Address.Hex(), src.Name(), quote.Price.String(), quote.Timestamp, now); err != nil {
				m.logger.Warn("oracle record sample failed", "error", err)
			}
		}
	}
	if len(prices) < m.minFeeds {
		return fmt.Errorf("insufficient oracle feeds for %s: %d of %d", symbol, len(prices), m.minFeeds)
	}
	median := computeMedian(prices)
	answer, err := AnswerFromDecimal(median, feed.Decimals)
	if err != nil {
		return fmt.Errorf("feed %s: %w", symbol, err)
	}
	proof := proofID(feed.Address, feeders, now)
	if err := m.store.Set(feed.Address, dsc.Price{Answer: answer, Decimals: feed.Decimals, UpdatedAt: oldest}); err != nil {
		return err
	}
	if m.recorder != nil {
		if err := m.recorder.RecordSnapshot(ctx, feed.Address.Hex(), median.String(), feeders, proof, now); err != nil {
			return fmt.Errorf("record snapshot: %w", err)
		}
	}
	m.metrics.RecordUpdate(symbol, median.InexactFloat64(), now.Sub(oldest))
	update := Update{
		Feed:    feed.Address,
		Symbol:  symbol,
		Median:  median,
		Answer:  answer.Clone(),
		Feeders: feeders,
		ProofID: proof,
		Time:    now,
	}
	if err := m.publisher.PublishOracleUpdate(ctx, update); err != nil {
		return fmt.Errorf("publish update: %w", err)
	}
	return nil
}

func computeMedian(prices []decimal.Decimal) decimal.Decimal {
	sorted := append([]decimal.Decimal{}, prices...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Cmp(sorted[j]) < 0
	})
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Mul(half)
}

// AnswerFromDecimal scales price to an integer feed answer with the given decimals,
// truncating any remainder.
func AnswerFromDecimal(price decimal.Decimal, decimals uint8) (*uint256.Int, error) {
	scaled := price.Shift(int32(decimals)).Truncate(0)
	if !scaled.IsPositive() {
		return nil, fmt.Errorf("%w: %s rounds to zero at %d decimals", dsc.ErrInvalidPrice, price.String(), decimals)
	}
	answer, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: %s overflows", dsc.ErrInvalidPrice, price.String())
	}
	return answer, nil
}

func proofID(feed common.Address, feeders []string, ts time.Time) string {
	sorted := append([]string{}, feeders...)
	sort.Strings(sorted)
	for i := range sorted {
		sorted[i] = strings.ToLower(strings.TrimSpace(sorted[i]))
	}
	return ethcrypto.Keccak256Hash(
		feed.Bytes(),
		[]byte(ts.UTC().Format(time.RFC3339Nano)),
		[]byte(strings.Join(sorted, ",")),
	).Hex()
}
