package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/username/tradelink/src/logger"
	"gopkg.in/yaml.v3"
)

// DefaultCoins is the built-in registry of canonical coin symbols, in evaluation order.
var DefaultCoins = []string{
	"BTC", "ETH", "BNB", "ADA", "DOT", "XRP", "LINK", "LTC", "BCH",
	"UNI", "THETA", "XLM", "VET", "FIL", "TRX", "EOS", "ATOM", "NEO",
	"AVAX", "LUNA", "SOL", "MATIC", "ALGO", "ICP", "EGLD", "RUNE",
	"EPIC", "FLOKI", "HBAR", "COOK", "TAO", "ZORA", "DOGE", "SHIB",
}

// CoinRegistry is an ordered, duplicate-free set of canonical coin symbols.
type CoinRegistry struct {
	symbols []string
	index   map[string]struct{}
}

// NewCoinRegistry builds a registry from the given symbols, upper-casing them and keeping
// the first occurrence of each.
func NewCoinRegistry(symbols ...[]string) *CoinRegistry {
	r := &CoinRegistry{index: make(map[string]struct{})}
	for _, list := range symbols {
		r.add(list)
	}
	return r
}

// DefaultCoinRegistry returns a registry holding only DefaultCoins.
func DefaultCoinRegistry() *CoinRegistry {
	return NewCoinRegistry(DefaultCoins)
}

func (r *CoinRegistry) add(symbols []string) {
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := r.index[s]; dup {
			continue
		}
		r.index[s] = struct{}{}
		r.symbols = append(r.symbols, s)
	}
}

// Symbols returns the registry contents in evaluation order.
func (r *CoinRegistry) Symbols() []string {
	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// Contains reports whether symbol is a canonical registry entry.
func (r *CoinRegistry) Contains(symbol string) bool {
	_, ok := r.index[strings.ToUpper(symbol)]
	return ok
}

// Len returns the number of registered symbols.
func (r *CoinRegistry) Len() int {
	return len(r.symbols)
}

// LoadCoinRegistry returns the default registry extended by the symbols listed in filePath.
// The file is a JSON array or a YAML list of strings. An empty path yields the defaults.
func LoadCoinRegistry(filePath string, extra ...string) (*CoinRegistry, error) {
	registry := NewCoinRegistry(DefaultCoins, extra)
	if filePath == "" {
		return registry, nil
	}

	logger.L.Info("Loading known coins", "path", filePath)
	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read known coins file '%s': %w", filePath, err)
	}

	var coins []string
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(fileData, &coins)
	default:
		err = json.Unmarshal(fileData, &coins)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal known coins from '%s': %w", filePath, err)
	}

	registry.add(coins)
	logger.L.Info("Known coins loaded successfully.", "path", filePath, "coinCount", registry.Len())
	return registry, nil
}
