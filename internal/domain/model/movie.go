// Package model contains domain models passed between layers.
package model

import "strings"

// keySeparator joins the two titles of a matchup key.
const keySeparator = " vs "

// Movie is a rated item of a population. Title is its identity.
type Movie struct {
	Title  string  // unique within a population
	Rating float64 // external 1-10 rating the Elo was seeded from
	Elo    int     // current Elo score, always rounded
	URI    string  // optional Letterboxd URI
}

// RawRating is a normalized input row before seeding.
type RawRating struct {
	Title  string
	Rating float64
	URI    string
}

// Population is the full set of movies belonging to one owner.
type Population []Movie

// Find returns the index of title in the population or -1.
func (p Population) Find(title string) int {
	for i := range p {
		if p[i].Title == title {
			return i
		}
	}
	return -1
}

// Matchup is an unordered pair of two distinct movies of one population.
type Matchup struct {
	ID string
	A  Movie
	B  Movie
}

// MatchupKey returns the order-independent key of a pair of titles.
func MatchupKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strings.Join([]string{a, b}, keySeparator)
}

// Record is the persisted shape of a movie.
type Record struct {
	Title  string  `json:"title"`
	Rating float64 `json:"rating"`
	Elo    int     `json:"elo"`
	URI    *string `json:"uri"`
}

// ToRecord converts a movie to its persisted shape. Empty URIs become null.
func (m Movie) ToRecord() Record {
	r := Record{Title: m.Title, Rating: m.Rating, Elo: m.Elo}
	if m.URI != "" {
		uri := m.URI
		r.URI = &uri
	}
	return r
}

// Movie converts a persisted record back into a movie.
func (r Record) Movie() Movie {
	m := Movie{Title: r.Title, Rating: r.Rating, Elo: r.Elo}
	if r.URI != nil {
		m.URI = *r.URI
	}
	return m
}
