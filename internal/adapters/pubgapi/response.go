package pubgapi

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/pochinki/pochinki/internal/domain"
)

type apiEnvelope struct {
	Data     json.RawMessage `json:"data"`
	Included []apiResource   `json:"included,omitempty"`
	Errors   []apiError      `json:"errors,omitempty"`
}

type apiError struct {
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type apiResource struct {
	Type          string           `json:"type"`
	ID            string           `json:"id"`
	Attributes    json.RawMessage  `json:"attributes,omitempty"`
	Relationships apiRelationships `json:"relationships,omitempty"`
}

type apiRelationships struct {
	Player *struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	} `json:"player,omitempty"`
}

type apiSeasonAttributes struct {
	IsCurrentSeason bool `json:"isCurrentSeason"`
	IsOffseason     bool `json:"isOffseason"`
}

type apiPlayerAttributes struct {
	Name    string `json:"name"`
	ShardID string `json:"shardId"`
}

type apiStatsAttributes struct {
	GameModeStats       map[string]apiGameModeStats `json:"gameModeStats,omitempty"`
	RankedGameModeStats map[string]apiGameModeStats `json:"rankedGameModeStats,omitempty"`
	Overall             *apiGameModeStats           `json:"overall,omitempty"`
}

// Counters are decoded as floats since the API is not consistent about integral values
type apiGameModeStats struct {
	RoundsPlayed    float64 `json:"roundsPlayed"`
	Wins            float64 `json:"wins"`
	Top10s          float64 `json:"top10s"`
	Kills           float64 `json:"kills"`
	Losses          float64 `json:"losses"`
	Deaths          float64 `json:"deaths"`
	DamageDealt     float64 `json:"damageDealt"`
	HeadshotKills   float64 `json:"headshotKills"`
	LongestKill     float64 `json:"longestKill"`
	RoadKills       float64 `json:"roadKills"`
	VehicleDestroys float64 `json:"vehicleDestroys"`
	Assists         float64 `json:"assists"`
	DBNOs           float64 `json:"dBNOs"`
	Revives         float64 `json:"revives"`
	Heals           float64 `json:"heals"`
	Boosts          float64 `json:"boosts"`
	TimeSurvived    float64 `json:"timeSurvived"`
	WalkDistance    float64 `json:"walkDistance"`
	RideDistance    float64 `json:"rideDistance"`
	SwimDistance    float64 `json:"swimDistance"`
}

type apiWeaponStats struct {
	Kills         float64 `json:"Kills"`
	DamagePlayer  float64 `json:"DamagePlayer"`
	HeadShots     float64 `json:"HeadShots"`
	Defeats       float64 `json:"Defeats"`
	LongestDefeat float64 `json:"LongestDefeat"`
}

// Older payloads carry the counters next to XPTotal, newer ones nest them in StatsTotal
type apiWeaponSummary struct {
	XPTotal       *float64        `json:"XPTotal"`
	LevelCurrent  float64         `json:"LevelCurrent"`
	Kills         *float64        `json:"Kills"`
	DamagePlayer  *float64        `json:"DamagePlayer"`
	HeadShots     *float64        `json:"HeadShots"`
	Defeats       *float64        `json:"Defeats"`
	LongestDefeat *float64        `json:"LongestDefeat"`
	StatsTotal    *apiWeaponStats `json:"StatsTotal"`
}

type apiLeaderboardPlayerAttributes struct {
	Name  string `json:"name"`
	Rank  int    `json:"rank"`
	Stats struct {
		RankPoints float64 `json:"rankPoints"`
		Games      float64 `json:"games"`
		Wins       float64 `json:"wins"`
		Kills      float64 `json:"kills"`
	} `json:"stats"`
}

func parseEnvelope(data []byte) (apiEnvelope, error) {
	var envelope apiEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return apiEnvelope{}, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}
	return envelope, nil
}

// errorDetail returns errors[0].detail if the body is an error envelope
func errorDetail(data []byte) string {
	var envelope apiEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	if len(envelope.Errors) == 0 {
		return ""
	}
	return envelope.Errors[0].Detail
}

func parseResources(data []byte) ([]apiResource, error) {
	envelope, err := parseEnvelope(data)
	if err != nil {
		return nil, err
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return []apiResource{}, nil
	}

	var resources []apiResource
	if err := json.Unmarshal(envelope.Data, &resources); err != nil {
		return nil, fmt.Errorf("%w: data is not a list: %w", domain.ErrMalformedResponse, err)
	}
	return resources, nil
}

func parseResource(data []byte) (apiResource, error) {
	envelope, err := parseEnvelope(data)
	if err != nil {
		return apiResource{}, err
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return apiResource{}, fmt.Errorf("%w: missing data", domain.ErrMalformedResponse)
	}

	var resource apiResource
	if err := json.Unmarshal(envelope.Data, &resource); err != nil {
		return apiResource{}, fmt.Errorf("%w: data is not an object: %w", domain.ErrMalformedResponse, err)
	}
	return resource, nil
}

func unmarshalAttributes(resource apiResource, target any) error {
	if len(resource.Attributes) == 0 {
		return nil
	}
	if err := json.Unmarshal(resource.Attributes, target); err != nil {
		return fmt.Errorf("%w: attributes of %s %s: %w", domain.ErrMalformedResponse, resource.Type, resource.ID, err)
	}
	return nil
}

func parseSeasons(data []byte) ([]domain.Season, error) {
	resources, err := parseResources(data)
	if err != nil {
		return nil, err
	}

	seasons := make([]domain.Season, 0, len(resources))
	for _, resource := range resources {
		var attributes apiSeasonAttributes
		if err := unmarshalAttributes(resource, &attributes); err != nil {
			return nil, err
		}
		seasons = append(seasons, domain.Season{
			ID:          resource.ID,
			IsCurrent:   attributes.IsCurrentSeason,
			IsOffseason: attributes.IsOffseason,
		})
	}
	return seasons, nil
}

func parsePlayers(data []byte, shard string) ([]domain.PlayerIdentity, error) {
	resources, err := parseResources(data)
	if err != nil {
		return nil, err
	}

	players := make([]domain.PlayerIdentity, 0, len(resources))
	for _, resource := range resources {
		var attributes apiPlayerAttributes
		if err := unmarshalAttributes(resource, &attributes); err != nil {
			return nil, err
		}
		platform := attributes.ShardID
		if platform == "" {
			platform = shard
		}
		players = append(players, domain.PlayerIdentity{
			ID:       resource.ID,
			Name:     attributes.Name,
			Platform: platform,
			Shard:    shard,
		})
	}
	return players, nil
}

func parsePlayerSeason(data []byte, gameMode domain.GameMode, statsType domain.StatsType) (domain.StatSnapshot, error) {
	resource, err := parseResource(data)
	if err != nil {
		return domain.StatSnapshot{}, err
	}
	return snapshotFromResource(resource, gameMode, statsType)
}

// parseBatchSeasonStats keys the snapshots by the player relationship of each resource
func parseBatchSeasonStats(data []byte, gameMode domain.GameMode) (map[string]domain.StatSnapshot, error) {
	resources, err := parseResources(data)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]domain.StatSnapshot, len(resources))
	for _, resource := range resources {
		if resource.Relationships.Player == nil || resource.Relationships.Player.Data.ID == "" {
			return nil, fmt.Errorf("%w: player season without player relationship", domain.ErrMalformedResponse)
		}
		snapshot, err := snapshotFromResource(resource, gameMode, domain.StatsTypeSeason)
		if err != nil {
			return nil, err
		}
		stats[resource.Relationships.Player.Data.ID] = snapshot
	}
	return stats, nil
}

func snapshotFromResource(resource apiResource, gameMode domain.GameMode, statsType domain.StatsType) (domain.StatSnapshot, error) {
	var attributes apiStatsAttributes
	if err := unmarshalAttributes(resource, &attributes); err != nil {
		return domain.StatSnapshot{}, err
	}

	buckets := attributes.GameModeStats
	if statsType == domain.StatsTypeRanked && attributes.RankedGameModeStats != nil {
		buckets = attributes.RankedGameModeStats
	}

	snapshot := selectBucket(buckets, attributes.Overall, gameMode)
	snapshot.GameMode = gameMode
	snapshot.StatsType = statsType
	return snapshot, nil
}

// selectBucket prefers the bucket of the requested mode, then the overall bucket.
// For GameModeAll without an overall bucket every mode bucket is summed.
func selectBucket(buckets map[string]apiGameModeStats, overall *apiGameModeStats, gameMode domain.GameMode) domain.StatSnapshot {
	if bucket, ok := buckets[string(gameMode)]; ok {
		return bucket.toSnapshot()
	}
	if overall != nil {
		return overall.toSnapshot()
	}
	if gameMode != domain.GameModeAll {
		return domain.StatSnapshot{}
	}

	total := domain.StatSnapshot{}
	// Sorted so float sums are reproducible
	for _, mode := range slices.Sorted(maps.Keys(buckets)) {
		total = total.Add(buckets[mode].toSnapshot())
	}
	return total
}

func nonNegative(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, x)
}

// count converts a decoded counter, clamping it to [0, domain.MaxCounter]
func count(x float64) int {
	return int(min(nonNegative(x), domain.MaxCounter))
}

func (s apiGameModeStats) toSnapshot() domain.StatSnapshot {
	// Ranked stats report deaths, regular stats report losses
	deaths := s.Losses
	if deaths == 0 {
		deaths = s.Deaths
	}

	return domain.StatSnapshot{
		Matches:         count(s.RoundsPlayed),
		Wins:            count(s.Wins),
		Top10s:          count(s.Top10s),
		Kills:           count(s.Kills),
		Deaths:          count(deaths),
		DamageDealt:     nonNegative(s.DamageDealt),
		HeadshotKills:   count(s.HeadshotKills),
		LongestKill:     nonNegative(s.LongestKill),
		RoadKills:       count(s.RoadKills),
		VehicleDestroys: count(s.VehicleDestroys),
		Assists:         count(s.Assists),
		Knockdowns:      count(s.DBNOs),
		Revives:         count(s.Revives),
		Heals:           count(s.Heals),
		Boosts:          count(s.Boosts),
		TimeSurvived:    nonNegative(s.TimeSurvived),
		WalkDistance:    nonNegative(s.WalkDistance),
		RideDistance:    nonNegative(s.RideDistance),
		SwimDistance:    nonNegative(s.SwimDistance),
	}
}

// parseWeaponMastery collects every attribute object carrying XPTotal, both at the top level
// and inside weaponSummaries. Sorted by xp, highest first.
func parseWeaponMastery(data []byte) ([]domain.WeaponMastery, error) {
	resource, err := parseResource(data)
	if err != nil {
		return nil, err
	}

	var attributes map[string]json.RawMessage
	if err := unmarshalAttributes(resource, &attributes); err != nil {
		return nil, err
	}

	summaries := map[string]apiWeaponSummary{}
	collect := func(entries map[string]json.RawMessage) {
		for name, raw := range entries {
			var summary apiWeaponSummary
			if err := json.Unmarshal(raw, &summary); err != nil {
				// Not a weapon entry
				continue
			}
			if summary.XPTotal == nil {
				continue
			}
			summaries[name] = summary
		}
	}

	collect(attributes)
	if nested, ok := attributes["weaponSummaries"]; ok {
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(nested, &entries); err != nil {
			return nil, fmt.Errorf("%w: weaponSummaries: %w", domain.ErrMalformedResponse, err)
		}
		collect(entries)
	}

	weapons := make([]domain.WeaponMastery, 0, len(summaries))
	for name, summary := range summaries {
		weapons = append(weapons, summary.toWeaponMastery(name))
	}
	slices.SortFunc(weapons, func(a, b domain.WeaponMastery) int {
		if a.XP != b.XP {
			return cmp.Compare(b.XP, a.XP)
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return weapons, nil
}

func (s apiWeaponSummary) toWeaponMastery(name string) domain.WeaponMastery {
	total := apiWeaponStats{}
	if s.StatsTotal != nil {
		total = *s.StatsTotal
	}
	pick := func(flat *float64, nested float64) float64 {
		if flat != nil {
			return nonNegative(*flat)
		}
		return nonNegative(nested)
	}

	return domain.WeaponMastery{
		Name:          name,
		Category:      domain.WeaponCategory(name),
		XP:            count(*s.XPTotal),
		Level:         count(s.LevelCurrent),
		Kills:         count(pick(s.Kills, total.Kills)),
		Damage:        pick(s.DamagePlayer, total.DamagePlayer),
		Headshots:     count(pick(s.HeadShots, total.HeadShots)),
		Defeats:       count(pick(s.Defeats, total.Defeats)),
		LongestDefeat: pick(s.LongestDefeat, total.LongestDefeat),
	}
}

// parseLeaderboard reads the players included next to the leaderboard resource, ordered by rank
func parseLeaderboard(data []byte) ([]LeaderboardEntry, error) {
	envelope, err := parseEnvelope(data)
	if err != nil {
		return nil, err
	}

	entries := []LeaderboardEntry{}
	for _, resource := range envelope.Included {
		if resource.Type != "player" {
			continue
		}
		var attributes apiLeaderboardPlayerAttributes
		if err := unmarshalAttributes(resource, &attributes); err != nil {
			return nil, err
		}
		entries = append(entries, LeaderboardEntry{
			Rank:       attributes.Rank,
			PlayerID:   resource.ID,
			Name:       attributes.Name,
			RankPoints: nonNegative(attributes.Stats.RankPoints),
			Games:      count(attributes.Stats.Games),
			Wins:       count(attributes.Stats.Wins),
			Kills:      count(attributes.Stats.Kills),
		})
	}
	slices.SortFunc(entries, func(a, b LeaderboardEntry) int {
		return cmp.Compare(a.Rank, b.Rank)
	})
	return entries, nil
}
