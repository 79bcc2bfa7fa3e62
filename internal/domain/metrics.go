package domain

type DerivedMetrics struct {
	KDRatio float64
	// Percentages in [0, 100] for consistent inputs
	WinRate      float64
	Top10Rate    float64
	HeadshotRate float64
	AvgDamage    float64
}

func ComputeDerivedMetrics(s StatSnapshot) DerivedMetrics {
	metrics := DerivedMetrics{}

	if s.Deaths > 0 {
		metrics.KDRatio = float64(s.Kills) / float64(s.Deaths)
	} else {
		metrics.KDRatio = float64(s.Kills)
	}

	if s.Matches > 0 {
		matches := float64(s.Matches)
		metrics.WinRate = float64(s.Wins) / matches * 100
		metrics.Top10Rate = float64(s.Top10s) / matches * 100
		metrics.AvgDamage = s.DamageDealt / matches
	}

	if s.Kills > 0 {
		metrics.HeadshotRate = float64(s.HeadshotKills) / float64(s.Kills) * 100
	}

	return metrics
}
