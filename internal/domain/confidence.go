package domain

import "math"

// Matches needed before season/ranked ratings are no longer down-weighted
const FullConfidenceMatches = 50

type ConfidenceTier int

const (
	ConfidenceLow ConfidenceTier = iota
	ConfidenceMedium
	ConfidenceHigh
)

// Lower bound (inclusive) of matches played for each tier, in ascending order
var confidenceTierThresholds = []struct {
	tier       ConfidenceTier
	minMatches int
}{
	{ConfidenceLow, 0},
	{ConfidenceMedium, 20},
	{ConfidenceHigh, FullConfidenceMatches},
}

func (t ConfidenceTier) String() string {
	switch t {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	}
	return "unknown"
}

func ParseConfidenceTier(s string) (ConfidenceTier, bool) {
	switch s {
	case "low":
		return ConfidenceLow, true
	case "medium":
		return ConfidenceMedium, true
	case "high":
		return ConfidenceHigh, true
	}
	return ConfidenceLow, false
}

func (t ConfidenceTier) MinMatches() int {
	for _, threshold := range confidenceTierThresholds {
		if threshold.tier == t {
			return threshold.minMatches
		}
	}
	return 0
}

// ConfidenceFactor maps matches played to a multiplier in [0, 1].
// Lifetime aggregates are never down-weighted.
func ConfidenceFactor(matchesPlayed int, statsType StatsType) float64 {
	if statsType == StatsTypeLifetime {
		return 1.0
	}
	if matchesPlayed <= 0 {
		return 0
	}
	return math.Min(1.0, float64(matchesPlayed)/FullConfidenceMatches)
}

func ConfidenceTierFor(matchesPlayed int) ConfidenceTier {
	tier := ConfidenceLow
	for _, threshold := range confidenceTierThresholds {
		if matchesPlayed >= threshold.minMatches {
			tier = threshold.tier
		}
	}
	return tier
}

// MatchesToNextLevel returns the matches missing until the next tier, or false when already at the top tier
func MatchesToNextLevel(matchesPlayed int) (int, bool) {
	matchesPlayed = max(0, matchesPlayed)
	for _, threshold := range confidenceTierThresholds {
		if matchesPlayed < threshold.minMatches {
			return threshold.minMatches - matchesPlayed, true
		}
	}
	return 0, false
}

func ConfidencePercentage(matchesPlayed int) int {
	return int(ConfidenceFactor(matchesPlayed, StatsTypeSeason) * 100)
}

var metricMinMatches = map[string]int{
	"consistency_rating": 20,
	"clutch_performance": 30,
	"improvement_trend":  40,
	"peak_performance":   10,
}

// IsReliableForMetric reports whether enough matches are recorded to show the given metric.
// Unknown metrics have no requirement.
func IsReliableForMetric(matchesPlayed int, metric string) bool {
	return matchesPlayed >= metricMinMatches[metric]
}

// Confidence summarizes the reliability of a snapshot for display
type Confidence struct {
	Factor     float64
	Tier       ConfidenceTier
	Percentage int
	// Only meaningful when HasNextLevel is set
	MatchesToNextLevel int
	HasNextLevel       bool
}

func ConfidenceFor(matchesPlayed int, statsType StatsType) Confidence {
	toNext, hasNext := MatchesToNextLevel(matchesPlayed)
	return Confidence{
		Factor:             ConfidenceFactor(matchesPlayed, statsType),
		Tier:               ConfidenceTierFor(matchesPlayed),
		Percentage:         ConfidencePercentage(matchesPlayed),
		MatchesToNextLevel: toNext,
		HasNextLevel:       hasNext,
	}
}

// WeightedAverage averages a metric over a population, weighting each item by its own confidence factor
func WeightedAverage[T any](items []T, matchesPlayed func(T) int, value func(T) float64) float64 {
	totalWeight := 0.0
	weightedSum := 0.0
	for _, item := range items {
		confidence := ConfidenceFactor(matchesPlayed(item), StatsTypeSeason)
		weightedSum += value(item) * confidence
		totalWeight += confidence
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

func FilterByConfidence[T any](items []T, matchesPlayed func(T) int, minTier ConfidenceTier) []T {
	minMatches := minTier.MinMatches()
	filtered := make([]T, 0, len(items))
	for _, item := range items {
		if matchesPlayed(item) >= minMatches {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func GroupByConfidence[T any](items []T, matchesPlayed func(T) int) map[ConfidenceTier][]T {
	groups := map[ConfidenceTier][]T{
		ConfidenceLow:    {},
		ConfidenceMedium: {},
		ConfidenceHigh:   {},
	}
	for _, item := range items {
		tier := ConfidenceTierFor(matchesPlayed(item))
		groups[tier] = append(groups[tier], item)
	}
	return groups
}
