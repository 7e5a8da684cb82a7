package elo

import (
	"math"

	"github.com/okian/movie-elo/internal/domain/model"
)

// ExpectedScore returns the probability that a player rated a beats one rated b.
func ExpectedScore(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// Update applies one Elo comparison and returns updated copies of both movies.
// Each new score is rounded on its own, so the two deltas may differ by one.
func Update(winner, loser model.Movie, k int) (model.Movie, model.Movie) {
	expectedWin := ExpectedScore(winner.Elo, loser.Elo)
	expectedLoss := 1 - expectedWin

	winner.Elo = round(float64(winner.Elo) + float64(k)*(1-expectedWin))
	loser.Elo = round(float64(loser.Elo) + float64(k)*(0-expectedLoss))
	return winner, loser
}
