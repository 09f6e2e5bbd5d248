package compress

import (
	"context"
	"sync"

	"github.com/Sumatoshi-tech/rulesmith/internal/language"
)

// Strategy produces the structural skeleton of a source file. A failed
// Compress makes the compressor fall back to the whitespace tier.
type Strategy interface {
	// Language returns the language this strategy handles.
	Language() language.Language

	// Compress returns the compressed form of the file content.
	Compress(ctx context.Context, filename string, content []byte) (string, error)
}

// StrategyRegistry maps languages to extraction strategies. Custom
// strategies can be registered at runtime and take precedence over the
// built-in tree-sitter ones.
type StrategyRegistry struct {
	mu         sync.RWMutex
	strategies map[language.Language]Strategy
}

// NewStrategyRegistry builds a registry pre-populated with the built-in
// tree-sitter strategies for every supported language.
func NewStrategyRegistry() *StrategyRegistry {
	reg := &StrategyRegistry{
		strategies: make(map[language.Language]Strategy, len(rulesByLanguage)),
	}

	for lang := range rulesByLanguage {
		reg.strategies[lang] = newStructuralStrategy(lang)
	}

	return reg
}

// Register installs a strategy for its language, replacing any existing one.
func (r *StrategyRegistry) Register(strategy Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.strategies[strategy.Language()] = strategy
}

// Lookup returns the strategy for a language, if any.
func (r *StrategyRegistry) Lookup(lang language.Language) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	strategy, ok := r.strategies[lang]

	return strategy, ok
}

// Languages returns the languages with a registered strategy.
func (r *StrategyRegistry) Languages() []language.Language {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]language.Language, 0, len(r.strategies))
	for lang := range r.strategies {
		langs = append(langs, lang)
	}

	return langs
}
