package engine

import (
	"crypto/cipher"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/deatil/go-cryptobin/cipher/seed"
)

// BlockFactory builds a raw block primitive from key bytes
type BlockFactory func(key []byte) (cipher.Block, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]BlockFactory{}
)

func init() {
	RegisterAlgorithm("SEED", seed.NewCipher)
}

// RegisterAlgorithm makes a block primitive available to transformation strings.
// Names are matched case-insensitively.
func RegisterAlgorithm(name string, factory BlockFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToUpper(name)] = factory
}

// Algorithms returns the registered algorithm names, sorted
func Algorithms() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newBlock(algorithm string, key []byte) (cipher.Block, error) {
	registryMu.RLock()
	factory, ok := registry[strings.ToUpper(algorithm)]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	return factory(key)
}
