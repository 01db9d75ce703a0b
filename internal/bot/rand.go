package bot

import (
	"math/rand/v2"
	"sync"
)

// botRng is the package-level random source used by the random strategy.
// When nil, the functions below delegate to the global math/rand/v2 source.
var (
	rngMu  sync.Mutex
	botRng *rand.Rand
)

// SeedBotRng sets a deterministic random source for reproducible bot matches.
func SeedBotRng(seed uint64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	botRng = rand.New(rand.NewPCG(seed, 0x636f6e71))
}

// ResetBotRng reverts to the default non-deterministic source.
func ResetBotRng() {
	rngMu.Lock()
	defer rngMu.Unlock()
	botRng = nil
}

func botIntn(n int) int {
	rngMu.Lock()
	defer rngMu.Unlock()
	if botRng != nil {
		return botRng.IntN(n)
	}
	return rand.IntN(n)
}

func botFloat64() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	if botRng != nil {
		return botRng.Float64()
	}
	return rand.Float64()
}
