package domain

import (
	"math"
	"time"
)

type StatsType string

const (
	StatsTypeSeason   StatsType = "season"
	StatsTypeLifetime StatsType = "lifetime"
	StatsTypeRanked   StatsType = "ranked"
)

func (t StatsType) IsValid() bool {
	switch t {
	case StatsTypeSeason, StatsTypeLifetime, StatsTypeRanked:
		return true
	}
	return false
}

type GameMode string

const (
	GameModeSolo        GameMode = "solo"
	GameModeSoloFPP     GameMode = "solo-fpp"
	GameModeDuo         GameMode = "duo"
	GameModeDuoFPP      GameMode = "duo-fpp"
	GameModeSquad       GameMode = "squad"
	GameModeSquadFPP    GameMode = "squad-fpp"
	GameModeNormalSolo  GameMode = "normal-solo"
	GameModeNormalDuo   GameMode = "normal-duo"
	GameModeNormalSquad GameMode = "normal-squad"

	// Pseudo mode used for lifetime aggregates across every mode
	GameModeAll GameMode = "all"
)

var GameModes = []GameMode{
	GameModeSolo,
	GameModeSoloFPP,
	GameModeDuo,
	GameModeDuoFPP,
	GameModeSquad,
	GameModeSquadFPP,
	GameModeNormalSolo,
	GameModeNormalDuo,
	GameModeNormalSquad,
}

func (m GameMode) IsValid() bool {
	if m == GameModeAll {
		return true
	}
	for _, mode := range GameModes {
		if mode == m {
			return true
		}
	}
	return false
}

// Season key used for lifetime snapshots
const LifetimeSeasonKey = "lifetime"

// StatSnapshot holds the raw counters for one (player, season, mode, statsType) key.
// All counters are non-negative.
type StatSnapshot struct {
	Matches         int
	Wins            int
	Top10s          int
	Kills           int
	Deaths          int
	DamageDealt     float64
	HeadshotKills   int
	LongestKill     float64
	RoadKills       int
	VehicleDestroys int
	Assists         int
	Knockdowns      int
	Revives         int
	Heals           int
	Boosts          int
	TimeSurvived    float64
	WalkDistance    float64
	RideDistance    float64
	SwimDistance    float64

	StatsType StatsType
	GameMode  GameMode
}

// MaxCounter is the largest value a snapshot counter can hold in storage
const MaxCounter = math.MaxInt32

func addCounter(a, b int) int {
	return min(a+b, MaxCounter)
}

// Add sums the counters of other into s, saturating at MaxCounter. LongestKill keeps the maximum.
func (s StatSnapshot) Add(other StatSnapshot) StatSnapshot {
	s.Matches = addCounter(s.Matches, other.Matches)
	s.Wins = addCounter(s.Wins, other.Wins)
	s.Top10s = addCounter(s.Top10s, other.Top10s)
	s.Kills = addCounter(s.Kills, other.Kills)
	s.Deaths = addCounter(s.Deaths, other.Deaths)
	s.DamageDealt += other.DamageDealt
	s.HeadshotKills = addCounter(s.HeadshotKills, other.HeadshotKills)
	s.LongestKill = max(s.LongestKill, other.LongestKill)
	s.RoadKills = addCounter(s.RoadKills, other.RoadKills)
	s.VehicleDestroys = addCounter(s.VehicleDestroys, other.VehicleDestroys)
	s.Assists = addCounter(s.Assists, other.Assists)
	s.Knockdowns = addCounter(s.Knockdowns, other.Knockdowns)
	s.Revives = addCounter(s.Revives, other.Revives)
	s.Heals = addCounter(s.Heals, other.Heals)
	s.Boosts = addCounter(s.Boosts, other.Boosts)
	s.TimeSurvived += other.TimeSurvived
	s.WalkDistance += other.WalkDistance
	s.RideDistance += other.RideDistance
	s.SwimDistance += other.SwimDistance
	return s
}

// StatsKey uniquely identifies a stored snapshot
type StatsKey struct {
	PlayerDBID int64
	// Season id or LifetimeSeasonKey
	Season    string
	GameMode  GameMode
	StatsType StatsType
}

// PlayerStats is a snapshot together with everything derived from it at ingestion time
type PlayerStats struct {
	Key         StatsKey
	Snapshot    StatSnapshot
	Metrics     DerivedMetrics
	Rating      RatingBreakdown
	LastUpdated time.Time
}

// NewPlayerStats derives metrics and ratings for a freshly ingested snapshot
func NewPlayerStats(key StatsKey, snapshot StatSnapshot, updatedAt time.Time) PlayerStats {
	snapshot.StatsType = key.StatsType
	snapshot.GameMode = key.GameMode
	metrics := ComputeDerivedMetrics(snapshot)
	return PlayerStats{
		Key:         key,
		Snapshot:    snapshot,
		Metrics:     metrics,
		Rating:      CalculateRatings(snapshot, metrics),
		LastUpdated: updatedAt,
	}
}
