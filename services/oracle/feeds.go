package oracle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dscengine/native/dsc"
)

// ErrNoAnswer is returned for a feed that has never been published to.
var ErrNoAnswer = errors.New("oracle: feed has no answer")

// Feeds holds the latest published answer per feed address. It is the price
// source the engine reads from.
type Feeds struct {
	mu      sync.RWMutex
	answers map[common.Address]dsc.Price
}

func NewFeeds() *Feeds {
	return &Feeds{answers: make(map[common.Address]dsc.Price)}
}

// Set publishes answer on feed, replacing the previous round.
func (f *Feeds) Set(feed common.Address, answer dsc.Price) error {
	if answer.Answer == nil || answer.Answer.IsZero() {
		return fmt.Errorf("%w: empty answer for %s", dsc.ErrInvalidPrice, feed.Hex())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[feed] = dsc.Price{Answer: answer.Answer.Clone(), Decimals: answer.Decimals, UpdatedAt: answer.UpdatedAt}
	return nil
}

// LatestPrice implements dsc.PriceSource.
func (f *Feeds) LatestPrice(ctx context.Context, feed common.Address) (dsc.Price, error) {
	if err := ctx.Err(); err != nil {
		return dsc.Price{}, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	answer, ok := f.answers[feed]
	if !ok {
		return dsc.Price{}, fmt.Errorf("%w: %s", ErrNoAnswer, feed.Hex())
	}
	answer.Answer = answer.Answer.Clone()
	return answer, nil
}

// Round pairs a feed with its latest answer.
type Round struct {
	Feed  common.Address
	Price dsc.Price
}

// Rounds lists the latest answer of every published feed ordered by address.
func (f *Feeds) Rounds() []Round {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Round, 0, len(f.answers))
	for feed, answer := range f.answers {
		answer.Answer = answer.Answer.Clone()
		out = append(out, Round{Feed: feed, Price: answer})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Feed.Cmp(out[j].Feed) < 0
	})
	return out
}
