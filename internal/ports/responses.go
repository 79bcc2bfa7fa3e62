package ports

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pochinki/pochinki/internal/domain"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func writeJSON(w http.ResponseWriter, statusCode int, response any) error {
	marshalled, err := json.Marshal(response)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(marshalled)
	return nil
}

func writeError(w http.ResponseWriter, statusCode int, cause string) {
	// Marshalling two plain strings can't fail
	_ = writeJSON(w, statusCode, errorResponse{Success: false, Cause: cause})
}

// statusForError maps use case errors to a status code and a cause safe to show to clients
func statusForError(err error) (int, string) {
	var upstreamErr *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrInvalidLeaderboardSort):
		return http.StatusBadRequest, "invalid sort"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrPlayerNotFound):
		return http.StatusNotFound, "player not found"
	case errors.Is(err, domain.ErrStatsNotFound):
		return http.StatusNotFound, "stats not found"
	case errors.Is(err, domain.ErrNoCurrentSeason):
		return http.StatusNotFound, "no current season"
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, "upstream rate limit exceeded"
	case errors.As(err, &upstreamErr),
		errors.Is(err, domain.ErrTransport),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway, "upstream failure"
	}
	return http.StatusInternalServerError, "internal server error"
}

type playerResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Shard    string `json:"shard"`
	Active   bool   `json:"active"`
}

func newPlayerResponse(player domain.Player) playerResponse {
	return playerResponse{
		ID:       player.ID,
		Name:     player.Name,
		Platform: player.Platform,
		Shard:    player.Shard,
		Active:   player.Active,
	}
}

type snapshotResponse struct {
	MatchesPlayed   int     `json:"matchesPlayed"`
	Wins            int     `json:"wins"`
	Top10s          int     `json:"top10s"`
	Kills           int     `json:"kills"`
	Deaths          int     `json:"deaths"`
	DamageDealt     float64 `json:"damageDealt"`
	HeadshotKills   int     `json:"headshotKills"`
	LongestKill     float64 `json:"longestKill"`
	RoadKills       int     `json:"roadKills"`
	VehicleDestroys int     `json:"vehicleDestroys"`
	Assists         int     `json:"assists"`
	Knockdowns      int     `json:"knockdowns"`
	Revives         int     `json:"revives"`
	Heals           int     `json:"heals"`
	Boosts          int     `json:"boosts"`
	TimeSurvived    float64 `json:"timeSurvived"`
	WalkDistance    float64 `json:"walkDistance"`
	RideDistance    float64 `json:"rideDistance"`
	SwimDistance    float64 `json:"swimDistance"`
}

type metricsResponse struct {
	KDRatio      float64 `json:"kdRatio"`
	WinRate      float64 `json:"winRate"`
	Top10Rate    float64 `json:"top10Rate"`
	AvgDamage    float64 `json:"avgDamage"`
	HeadshotRate float64 `json:"headshotRate"`
}

type ratingComponentResponse struct {
	Base         float64 `json:"base"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Tier         string  `json:"tier"`
}

type ratingResponse struct {
	PubgRating  float64                 `json:"pubgRating"`
	Tier        string                  `json:"tier"`
	Combat      ratingComponentResponse `json:"combat"`
	Survival    ratingComponentResponse `json:"survival"`
	Support     ratingComponentResponse `json:"support"`
	Consistency ratingComponentResponse `json:"consistency"`
}

type confidenceResponse struct {
	Factor     float64 `json:"factor"`
	Tier       string  `json:"tier"`
	Percentage int     `json:"percentage"`
	// Omitted at the top tier
	MatchesToNextLevel *int `json:"matchesToNextLevel,omitempty"`
}

type statsResponse struct {
	Season      string             `json:"season"`
	GameMode    string             `json:"gameMode"`
	StatsType   string             `json:"statsType"`
	Snapshot    snapshotResponse   `json:"stats"`
	Metrics     metricsResponse    `json:"metrics"`
	Rating      ratingResponse     `json:"rating"`
	Confidence  confidenceResponse `json:"confidence"`
	LastUpdated time.Time          `json:"lastUpdated"`
}

func newRatingComponentResponse(component domain.RatingComponent) ratingComponentResponse {
	return ratingComponentResponse{
		Base:         component.Base,
		Score:        component.Scaled,
		Weight:       component.Weight,
		Contribution: component.Contribution,
		Tier:         string(domain.RatingTierFor(component.Scaled)),
	}
}

func newStatsResponse(stats domain.PlayerStats) statsResponse {
	s := stats.Snapshot
	rating := stats.Rating.Rounded()
	confidence := domain.ConfidenceFor(s.Matches, stats.Key.StatsType)

	var toNext *int
	if confidence.HasNextLevel {
		toNext = &confidence.MatchesToNextLevel
	}

	return statsResponse{
		Season:    stats.Key.Season,
		GameMode:  string(stats.Key.GameMode),
		StatsType: string(stats.Key.StatsType),
		Snapshot: snapshotResponse{
			MatchesPlayed:   s.Matches,
			Wins:            s.Wins,
			Top10s:          s.Top10s,
			Kills:           s.Kills,
			Deaths:          s.Deaths,
			DamageDealt:     domain.Round2(s.DamageDealt),
			HeadshotKills:   s.HeadshotKills,
			LongestKill:     domain.Round2(s.LongestKill),
			RoadKills:       s.RoadKills,
			VehicleDestroys: s.VehicleDestroys,
			Assists:         s.Assists,
			Knockdowns:      s.Knockdowns,
			Revives:         s.Revives,
			Heals:           s.Heals,
			Boosts:          s.Boosts,
			TimeSurvived:    domain.Round2(s.TimeSurvived),
			WalkDistance:    domain.Round2(s.WalkDistance),
			RideDistance:    domain.Round2(s.RideDistance),
			SwimDistance:    domain.Round2(s.SwimDistance),
		},
		Metrics: metricsResponse{
			KDRatio:      domain.Round2(stats.Metrics.KDRatio),
			WinRate:      domain.Round2(stats.Metrics.WinRate),
			Top10Rate:    domain.Round2(stats.Metrics.Top10Rate),
			AvgDamage:    domain.Round2(stats.Metrics.AvgDamage),
			HeadshotRate: domain.Round2(stats.Metrics.HeadshotRate),
		},
		Rating: ratingResponse{
			PubgRating:  rating.PubgRating,
			Tier:        string(rating.Tier()),
			Combat:      newRatingComponentResponse(rating.Combat),
			Survival:    newRatingComponentResponse(rating.Survival),
			Support:     newRatingComponentResponse(rating.Support),
			Consistency: newRatingComponentResponse(rating.Consistency),
		},
		Confidence: confidenceResponse{
			Factor:             domain.Round2(confidence.Factor),
			Tier:               confidence.Tier.String(),
			Percentage:         confidence.Percentage,
			MatchesToNextLevel: toNext,
		},
		LastUpdated: stats.LastUpdated.UTC(),
	}
}

type weaponResponse struct {
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	XP            int       `json:"xp"`
	Level         int       `json:"level"`
	Kills         int       `json:"kills"`
	Damage        float64   `json:"damage"`
	Headshots     int       `json:"headshots"`
	Defeats       int       `json:"defeats"`
	LongestDefeat float64   `json:"longestDefeat"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

func newWeaponResponse(weapon domain.WeaponMastery) weaponResponse {
	return weaponResponse{
		Name:          weapon.Name,
		Category:      weapon.Category,
		XP:            weapon.XP,
		Level:         weapon.Level,
		Kills:         weapon.Kills,
		Damage:        domain.Round2(weapon.Damage),
		Headshots:     weapon.Headshots,
		Defeats:       weapon.Defeats,
		LongestDefeat: domain.Round2(weapon.LongestDefeat),
		LastUpdated:   weapon.LastUpdated.UTC(),
	}
}
