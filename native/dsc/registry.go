package dsc

import (
	"github.com/ethereum/go-ethereum/common"
)

// Registry is the immutable collateral listing: which tokens are accepted and
// which feed prices each of them. It is built once and never mutated, so reads
// need no locking.
type Registry struct {
	assets []common.Address
	feeds  map[common.Address]common.Address
}

// NewRegistry pairs tokens[i] with priceFeeds[i].
func NewRegistry(tokens, priceFeeds []common.Address) (*Registry, error) {
	if len(tokens) != len(priceFeeds) {
		return nil, ErrTokenAddressesAndPriceFeedAddressesMustBeSameLength
	}
	r := &Registry{
		assets: make([]common.Address, 0, len(tokens)),
		feeds:  make(map[common.Address]common.Address, len(tokens)),
	}
	for i, token := range tokens {
		feed := priceFeeds[i]
		if token == (common.Address{}) || feed == (common.Address{}) {
			return nil, ErrZeroAddress
		}
		if _, exists := r.feeds[token]; exists {
			return nil, ErrDuplicateCollateral
		}
		r.feeds[token] = feed
		r.assets = append(r.assets, token)
	}
	return r, nil
}

// Assets returns the collateral tokens in registration order.
func (r *Registry) Assets() []common.Address {
	out := make([]common.Address, len(r.assets))
	copy(out, r.assets)
	return out
}

// Feed returns the price feed for asset.
func (r *Registry) Feed(asset common.Address) (common.Address, bool) {
	feed, ok := r.feeds[asset]
	return feed, ok
}

func (r *Registry) Contains(asset common.Address) bool {
	_, ok := r.feeds[asset]
	return ok
}

func (r *Registry) Len() int { return len(r.assets) }

// Pairs returns the token/feed listing in registration order.
func (r *Registry) Pairs() []CollateralAsset {
	out := make([]CollateralAsset, 0, len(r.assets))
	for _, asset := range r.assets {
		out = append(out, CollateralAsset{Token: asset, PriceFeed: r.feeds[asset]})
	}
	return out
}
