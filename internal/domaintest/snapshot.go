package domaintest

import "github.com/pochinki/pochinki/internal/domain"

type snapshotBuilder struct {
	snapshot domain.StatSnapshot
}

func (sb *snapshotBuilder) WithStatsType(statsType domain.StatsType) *snapshotBuilder {
	sb.snapshot.StatsType = statsType
	return sb
}

func (sb *snapshotBuilder) WithGameMode(gameMode domain.GameMode) *snapshotBuilder {
	sb.snapshot.GameMode = gameMode
	return sb
}

func (sb *snapshotBuilder) WithMatches(matches int) *snapshotBuilder {
	sb.snapshot.Matches = matches
	return sb
}

func (sb *snapshotBuilder) WithWins(wins int) *snapshotBuilder {
	sb.snapshot.Wins = wins
	return sb
}

func (sb *snapshotBuilder) WithTop10s(top10s int) *snapshotBuilder {
	sb.snapshot.Top10s = top10s
	return sb
}

func (sb *snapshotBuilder) WithKills(kills int) *snapshotBuilder {
	sb.snapshot.Kills = kills
	return sb
}

func (sb *snapshotBuilder) WithDeaths(deaths int) *snapshotBuilder {
	sb.snapshot.Deaths = deaths
	return sb
}

func (sb *snapshotBuilder) WithDamageDealt(damage float64) *snapshotBuilder {
	sb.snapshot.DamageDealt = damage
	return sb
}

func (sb *snapshotBuilder) WithHeadshotKills(headshotKills int) *snapshotBuilder {
	sb.snapshot.HeadshotKills = headshotKills
	return sb
}

func (sb *snapshotBuilder) WithLongestKill(longestKill float64) *snapshotBuilder {
	sb.snapshot.LongestKill = longestKill
	return sb
}

func (sb *snapshotBuilder) WithAssists(assists int) *snapshotBuilder {
	sb.snapshot.Assists = assists
	return sb
}

func (sb *snapshotBuilder) WithRevives(revives int) *snapshotBuilder {
	sb.snapshot.Revives = revives
	return sb
}

func (sb *snapshotBuilder) Build() domain.StatSnapshot {
	return sb.snapshot
}

func NewSnapshotBuilder() *snapshotBuilder {
	return &snapshotBuilder{
		snapshot: domain.StatSnapshot{
			StatsType: domain.StatsTypeSeason,
			GameMode:  domain.GameModeSquadFPP,
		},
	}
}
