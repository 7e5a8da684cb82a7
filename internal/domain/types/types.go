// Package types contains common types used across the application
package types

// Entry represents a row of an owner's ranking
type Entry struct {
	Rank   int     `json:"rank"`
	Title  string  `json:"title"`
	Elo    int     `json:"elo"`
	Rating float64 `json:"rating"`
	URI    string  `json:"uri,omitempty"`
	Poster string  `json:"poster,omitempty"`
}
