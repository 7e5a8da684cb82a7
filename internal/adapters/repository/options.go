package repository

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithPrioritySeed fixes the seed of treap node priorities.
func WithPrioritySeed(seed int64) Option {
	return func(s *TreapStore) {
		s.seed = seed
	}
}
