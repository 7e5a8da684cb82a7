// Package elo is the rating engine of movie-elo.
//
// It turns an owner's 1-10 ratings into initial Elo scores drawn from a normal
// distribution (Seed), folds newly rated movies into an existing population
// (Merge), applies the Elo update after a pairwise vote (Update) and picks the
// next pair to compare (Selector).
//
// The package never performs I/O. Populations are passed in explicitly and all
// randomness comes from an injected Source, so a seeded *rand.Rand makes every
// selection reproducible.
package elo
