package domain

import "math"

const (
	WeightCombat      = 0.35
	WeightSurvival    = 0.25
	WeightSupport     = 0.20
	WeightConsistency = 0.20
)

// Matches required before the consistency bonus is awarded
const consistencyMinMatches = 10

type RatingComponent struct {
	// Score before confidence scaling
	Base float64
	// Base * confidence factor, used for the aggregate and for display
	Scaled       float64
	Weight       float64
	Contribution float64
}

type RatingBreakdown struct {
	Combat      RatingComponent
	Survival    RatingComponent
	Support     RatingComponent
	Consistency RatingComponent

	// Weighted sum of the scaled components
	PubgRating       float64
	ConfidenceFactor float64
}

func (b RatingBreakdown) Tier() RatingTier {
	return RatingTierFor(b.PubgRating)
}

// Rounded returns a copy with every value rounded to 2 decimals
func (b RatingBreakdown) Rounded() RatingBreakdown {
	round := func(c RatingComponent) RatingComponent {
		return RatingComponent{
			Base:         Round2(c.Base),
			Scaled:       Round2(c.Scaled),
			Weight:       c.Weight,
			Contribution: Round2(c.Contribution),
		}
	}
	return RatingBreakdown{
		Combat:           round(b.Combat),
		Survival:         round(b.Survival),
		Support:          round(b.Support),
		Consistency:      round(b.Consistency),
		PubgRating:       Round2(b.PubgRating),
		ConfidenceFactor: Round2(b.ConfidenceFactor),
	}
}

func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func clampScore(x float64) float64 {
	return math.Max(0, math.Min(100, x))
}

// CalculateRatings is a pure function of the snapshot and its derived metrics
func CalculateRatings(snapshot StatSnapshot, metrics DerivedMetrics) RatingBreakdown {
	confidence := ConfidenceFactor(snapshot.Matches, snapshot.StatsType)

	component := func(base, weight float64) RatingComponent {
		scaled := base * confidence
		return RatingComponent{
			Base:         base,
			Scaled:       scaled,
			Weight:       weight,
			Contribution: scaled * weight,
		}
	}

	combat := component(CombatScore(metrics), WeightCombat)
	survival := component(SurvivalScore(metrics), WeightSurvival)
	support := component(SupportScore(snapshot), WeightSupport)
	consistency := component(ConsistencyScore(snapshot, metrics), WeightConsistency)

	return RatingBreakdown{
		Combat:           combat,
		Survival:         survival,
		Support:          support,
		Consistency:      consistency,
		PubgRating:       combat.Contribution + survival.Contribution + support.Contribution + consistency.Contribution,
		ConfidenceFactor: confidence,
	}
}

// EstimatedAccuracy stands in for shot accuracy, which the stats API does not expose
func EstimatedAccuracy(metrics DerivedMetrics) float64 {
	headshotRateDecimal := metrics.HeadshotRate / 100
	return math.Min(0.5, (headshotRateDecimal+math.Min(metrics.KDRatio/10, 0.5))/2)
}

func CombatScore(metrics DerivedMetrics) float64 {
	headshotRateDecimal := metrics.HeadshotRate / 100
	raw := metrics.KDRatio*20 +
		metrics.AvgDamage/100 +
		headshotRateDecimal*50 +
		EstimatedAccuracy(metrics)*100
	return clampScore(raw / 2)
}

// EstimatedAvgPlacement stands in for the average placement, which the stats API does not expose
func EstimatedAvgPlacement(metrics DerivedMetrics) float64 {
	return 100 - (metrics.WinRate/100*99 + metrics.Top10Rate/100*90)
}

func SurvivalScore(metrics DerivedMetrics) float64 {
	winRateDecimal := metrics.WinRate / 100
	top10RateDecimal := metrics.Top10Rate / 100
	placementScore := (100 - EstimatedAvgPlacement(metrics)) / 100

	raw := winRateDecimal*100 + top10RateDecimal*50 + placementScore*50
	return clampScore(raw / 2)
}

func SupportScore(snapshot StatSnapshot) float64 {
	matches := float64(max(1, snapshot.Matches))
	assistsPerMatch := float64(snapshot.Assists) / matches
	revivesPerMatch := float64(snapshot.Revives) / matches

	teamKillsShare := 0.0
	if snapshot.Kills > 0 {
		teamKillsShare = math.Min(1, float64(snapshot.Assists)/float64(snapshot.Kills))
	}

	return clampScore(assistsPerMatch*10 + revivesPerMatch*15 + teamKillsShare*50)
}

func ConsistencyScore(snapshot StatSnapshot, metrics DerivedMetrics) float64 {
	if snapshot.Matches < consistencyMinMatches {
		return 0
	}

	kdNorm := math.Min(1, metrics.KDRatio/5)
	winNorm := metrics.WinRate / 100
	dmgNorm := math.Min(1, metrics.AvgDamage/500)
	avgPerformance := (kdNorm + winNorm + dmgNorm) / 3

	matchMultiplier := math.Min(1, float64(snapshot.Matches)/100)

	return clampScore(avgPerformance * matchMultiplier * 100)
}

type RatingTier string

const (
	RatingTierLegendary RatingTier = "Legendary"
	RatingTierGold      RatingTier = "Gold"
	RatingTierSilver    RatingTier = "Silver"
	RatingTierBronze    RatingTier = "Bronze"
	RatingTierUnranked  RatingTier = "Unranked"
)

// Descending score thresholds, first match wins
var ratingTierThresholds = []struct {
	minScore float64
	tier     RatingTier
}{
	{80, RatingTierLegendary},
	{60, RatingTierGold},
	{40, RatingTierSilver},
	{20, RatingTierBronze},
}

func RatingTierFor(score float64) RatingTier {
	for _, threshold := range ratingTierThresholds {
		if score >= threshold.minScore {
			return threshold.tier
		}
	}
	return RatingTierUnranked
}
