package consensus

import (
	"math/rand"
	"sync"

	wr "github.com/mroth/weightedrand"

	"github.com/relab/benor"
)

// RandomCoin is an unbiased coin backed by a private random source.
// It is safe for concurrent use.
type RandomCoin struct {
	mut     sync.Mutex
	rnd     *rand.Rand
	chooser *wr.Chooser
}

// NewRandomCoin returns a coin seeded with the given seed.
func NewRandomCoin(seed int64) *RandomCoin {
	chooser, err := wr.NewChooser(
		wr.NewChoice(benor.Zero, 1),
		wr.NewChoice(benor.One, 1),
	)
	if err != nil {
		// only fails if the total weight is zero
		panic(err)
	}
	return &RandomCoin{
		rnd:     rand.New(rand.NewSource(seed)),
		chooser: chooser,
	}
}

// Flip returns Zero or One with equal probability.
func (c *RandomCoin) Flip(_ benor.Round) benor.Value {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.chooser.PickSource(c.rnd).(benor.Value)
}

// FixedCoin always lands on the same value.
type FixedCoin benor.Value

// Flip returns the fixed value.
func (c FixedCoin) Flip(_ benor.Round) benor.Value {
	return benor.Value(c)
}

// CoinFunc adapts a function to the Coin interface.
type CoinFunc func(round benor.Round) benor.Value

// Flip calls f.
func (f CoinFunc) Flip(round benor.Round) benor.Value {
	return f(round)
}
