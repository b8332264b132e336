package dsc

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// futureSkew tolerates feed timestamps slightly ahead of the local clock.
const futureSkew = 30 * time.Second

// PriceSource returns the latest answer published on a feed.
type PriceSource interface {
	LatestPrice(ctx context.Context, feed common.Address) (Price, error)
}

// PriceSourceFunc adapts a function to PriceSource.
type PriceSourceFunc func(ctx context.Context, feed common.Address) (Price, error)

func (f PriceSourceFunc) LatestPrice(ctx context.Context, feed common.Address) (Price, error) {
	return f(ctx, feed)
}

// Oracle resolves a collateral asset to a USD price at Precision scale.
type Oracle struct {
	registry *Registry
	source   PriceSource
	maxAge   time.Duration
	clock    func() time.Time
}

// NewOracle binds the registry's feeds to source.
func NewOracle(registry *Registry, source PriceSource, maxAge time.Duration) *Oracle {
	return &Oracle{registry: registry, source: source, maxAge: maxAge, clock: time.Now}
}

// WithClock overrides the clock used for staleness checks.
func (o *Oracle) WithClock(clock func() time.Time) {
	if clock != nil {
		o.clock = clock
	}
}

// Price returns the USD price of one whole unit of asset scaled to 1e18.
func (o *Oracle) Price(ctx context.Context, asset common.Address) (*uint256.Int, error) {
	feed, ok := o.registry.Feed(asset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset.Hex())
	}
	if o.source == nil {
		return nil, fmt.Errorf("%w: no price source", ErrInvalidPrice)
	}
	answer, err := o.source.LatestPrice(ctx, feed)
	if err != nil {
		return nil, fmt.Errorf("dsc: read feed %s: %w", feed.Hex(), err)
	}
	if isZero(answer.Answer) {
		return nil, fmt.Errorf("%w: feed %s answered zero", ErrInvalidPrice, feed.Hex())
	}
	if o.maxAge > 0 {
		now := o.clock()
		if answer.UpdatedAt.IsZero() || now.Sub(answer.UpdatedAt) > o.maxAge || answer.UpdatedAt.Sub(now) > futureSkew {
			return nil, fmt.Errorf("%w: feed %s updated %s", ErrStalePrice, feed.Hex(), answer.UpdatedAt.UTC().Format(time.RFC3339))
		}
	}
	return normalizePrice(answer.Answer, answer.Decimals)
}

// normalizePrice rescales a feed answer to Precision. Eight-decimal feeds use
// AdditionalFeedPrecision directly.
func normalizePrice(answer *uint256.Int, decimals uint8) (*uint256.Int, error) {
	switch {
	case decimals == FeedDecimals:
		return mulDiv(answer, AdditionalFeedPrecision, uint256.NewInt(1))
	case decimals < 18:
		return mulDiv(answer, pow10(18-decimals), uint256.NewInt(1))
	case decimals == 18:
		return answer.Clone(), nil
	case decimals <= 77:
		scaled := new(uint256.Int).Div(answer, pow10(decimals-18))
		if scaled.IsZero() {
			return nil, fmt.Errorf("%w: answer rounds to zero", ErrInvalidPrice)
		}
		return scaled, nil
	default:
		return nil, fmt.Errorf("%w: unsupported feed decimals %d", ErrInvalidPrice, decimals)
	}
}
