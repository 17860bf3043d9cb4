package dobss

import (
	"encoding/binary"
	"expvar"
	"math"
	"strings"

	"github.com/hashicorp/golang-lru"
)

var (
	cacheHits    = expvar.NewInt("dobss/cache_hits")
	cacheMisses  = expvar.NewInt("dobss/cache_misses")
	cacheHitRate = expvar.NewFloat("dobss/cache_hit_rate")
	cacheSize    = expvar.NewInt("dobss/cache_size")
)

// WithCache keeps the equilibria of the size most recently solved games,
// so that identical games submitted again (for example in a batch) are
// not re-solved. Equilibria are immutable and shared between callers.
func WithCache(size int) Option {
	return func(s *Solver) {
		if size <= 0 {
			s.cache = nil
			return
		}

		cache, err := lru.New(size)
		if err != nil {
			panic(err)
		}
		s.cache = cache
	}
}

func (s *Solver) cached(key string) (*Equilibrium, bool) {
	if s.cache == nil {
		return nil, false
	}

	value, ok := s.cache.Get(key)
	if ok {
		cacheHits.Add(1)
	} else {
		cacheMisses.Add(1)
	}
	cacheHitRate.Set(float64(cacheHits.Value()) / float64(cacheHits.Value()+cacheMisses.Value()))
	if !ok {
		return nil, false
	}
	return value.(*Equilibrium), true
}

func (s *Solver) store(key string, eq *Equilibrium) {
	if s.cache == nil {
		return
	}

	s.cache.Add(key, eq)
	cacheSize.Set(int64(s.cache.Len()))
}

// cacheKey identifies g and the big-M constant it is solved with.
// Games with bit-identical payoffs and probabilities share a key.
func cacheKey(g *Game, bigM float64) string {
	var sb strings.Builder
	var buf [binary.MaxVarintLen64]byte
	putUint := func(v uint64) {
		n := binary.PutUvarint(buf[:], v)
		sb.Write(buf[:n])
	}
	putFloat := func(v float64) {
		putUint(math.Float64bits(v))
	}

	putFloat(bigM)
	putUint(uint64(g.NumLeaderActions()))
	putUint(uint64(g.NumTypes()))
	for l := 0; l < g.NumTypes(); l++ {
		putFloat(g.Probability(l))
		putUint(uint64(g.NumFollowerActions(l)))
		for i := 0; i < g.NumLeaderActions(); i++ {
			for j := 0; j < g.NumFollowerActions(l); j++ {
				putFloat(g.LeaderPayoff(l, i, j))
				putFloat(g.FollowerPayoff(l, i, j))
			}
		}
	}
	return sb.String()
}
