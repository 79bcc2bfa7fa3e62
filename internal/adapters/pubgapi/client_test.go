package pubgapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pochinki/pochinki/internal/adapters/cache"
	"github.com/pochinki/pochinki/internal/adapters/calllog"
	"github.com/pochinki/pochinki/internal/config"
	"github.com/pochinki/pochinki/internal/domain"
)

const (
	apiKey  = "key"
	baseURL = "https://api.pubg.com"
	season  = "division.bro.official.pc-2018-31"
)

var expectedHeaders = http.Header{
	// NOTE: go's http.Header automatically camelcases the keys
	"User-Agent":    {"pochinki/0.1.0 (+https://github.com/pochinki/pochinki)"},
	"Authorization": {"Bearer " + apiKey},
	"Accept":        {"application/vnd.api+json"},
}

type mockedResponse struct {
	statusCode int
	body       string
	bodyReader io.ReadCloser
	err        error
}

type mockedHttpClient struct {
	t *testing.T

	handle func(req *http.Request) mockedResponse

	requests []*http.Request
	mutex    sync.Mutex
}

func (m *mockedHttpClient) Do(req *http.Request) (*http.Response, error) {
	require.Equal(m.t, expectedHeaders, req.Header)
	require.Equal(m.t, http.MethodGet, req.Method)

	m.mutex.Lock()
	m.requests = append(m.requests, req)
	m.mutex.Unlock()

	response := m.handle(req)
	if response.err != nil {
		return nil, response.err
	}

	body := response.bodyReader
	if body == nil {
		body = io.NopCloser(bytes.NewBufferString(response.body))
	}
	return &http.Response{
		StatusCode: response.statusCode,
		Body:       body,
	}, nil
}

func (m *mockedHttpClient) urls() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	urls := make([]string, 0, len(m.requests))
	for _, req := range m.requests {
		urls = append(urls, req.URL.String())
	}
	return urls
}

type cantRead struct{}

func (c cantRead) Read(p []byte) (n int, err error) {
	return 0, assert.AnError
}

func (c cantRead) Close() error {
	return nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type testClient struct {
	client     *Client
	httpClient *mockedHttpClient
	callLog    interface {
		calllog.CallLog
		Calls() []domain.APICall
	}
}

func newTestClient(t *testing.T, limit int, handle func(req *http.Request) mockedResponse) testClient {
	t.Helper()

	now := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)
	nowFunc := func() time.Time { return now }

	httpClient := &mockedHttpClient{t: t, handle: handle}
	callLog := calllog.NewMemory(limit, time.Minute, nowFunc)
	responseCache := cache.NewBasicCache[json.RawMessage](nowFunc)

	client, err := NewClient(httpClient, apiKey, "steam", baseURL, config.DefaultCacheTTLs(), responseCache, callLog, nowFunc)
	require.NoError(t, err)

	return testClient{client: client, httpClient: httpClient, callLog: callLog}
}

func respond(statusCode int, body string) func(req *http.Request) mockedResponse {
	return func(req *http.Request) mockedResponse {
		return mockedResponse{statusCode: statusCode, body: body}
	}
}

const seasonsBody = `{"data":[
	{"type":"season","id":"division.bro.official.pc-2018-30","attributes":{"isCurrentSeason":false,"isOffseason":false}},
	{"type":"season","id":"division.bro.official.pc-2018-31","attributes":{"isCurrentSeason":true,"isOffseason":false}}
]}`

func TestGetSeasons(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(200, seasonsBody))

		seasons, err := tc.client.GetSeasons(t.Context())
		require.NoError(t, err)
		require.Equal(t, []domain.Season{
			{ID: "division.bro.official.pc-2018-30"},
			{ID: "division.bro.official.pc-2018-31", IsCurrent: true},
		}, seasons)

		require.Equal(t, []string{"https://api.pubg.com/shards/steam/seasons"}, tc.httpClient.urls())

		calls := tc.callLog.Calls()
		require.Len(t, calls, 1)
		require.Equal(t, "/shards/steam/seasons", calls[0].Endpoint)
		require.Equal(t, "GET", calls[0].Method)
		require.Equal(t, 200, calls[0].StatusCode)
		require.Empty(t, calls[0].ErrorMessage)
	})

	t.Run("current season", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(200, seasonsBody))

		current, err := tc.client.GetCurrentSeason(t.Context())
		require.NoError(t, err)
		require.Equal(t, season, current.ID)
	})

	t.Run("no current season", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(200, `{"data":[{"type":"season","id":"a","attributes":{"isCurrentSeason":false}}]}`))

		_, err := tc.client.GetCurrentSeason(t.Context())
		require.ErrorIs(t, err, domain.ErrNoCurrentSeason)
	})

	t.Run("cache hit skips admission and network", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 1, respond(200, seasonsBody))

		first, err := tc.client.GetSeasons(t.Context())
		require.NoError(t, err)

		// The budget of 1 is used up, a miss would be denied
		for range 5 {
			seasons, err := tc.client.GetSeasons(t.Context())
			require.NoError(t, err)
			require.Equal(t, first, seasons)
		}

		require.Len(t, tc.httpClient.urls(), 1)
		require.Len(t, tc.callLog.Calls(), 1)
	})
}

func TestAdmission(t *testing.T) {
	t.Parallel()

	t.Run("denied without network io", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 1, respond(200, `{"data":{"type":"weaponMasterySummary","id":"x","attributes":{}}}`))

		_, err := tc.client.GetWeaponMastery(t.Context(), "account.1")
		require.NoError(t, err)

		_, err = tc.client.GetWeaponMastery(t.Context(), "account.2")
		require.ErrorIs(t, err, domain.ErrRateLimitExceeded)

		require.Equal(t, []string{"https://api.pubg.com/shards/steam/players/account.1/weapon_mastery"}, tc.httpClient.urls())
		require.Len(t, tc.callLog.Calls(), 1)
	})

	t.Run("every sent request counts", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(500, `{"errors":[{"title":"Internal Server Error"}]}`))

		for i := range 10 {
			_, err := tc.client.GetLifetimeStats(t.Context(), fmt.Sprintf("account.%d", i), domain.GameModeAll)
			require.Error(t, err)
			require.NotErrorIs(t, err, domain.ErrRateLimitExceeded)
		}

		_, err := tc.client.GetLifetimeStats(t.Context(), "account.10", domain.GameModeAll)
		require.ErrorIs(t, err, domain.ErrRateLimitExceeded)
		require.Len(t, tc.httpClient.urls(), 10)
	})
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	t.Run("upstream error with detail", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(404, `{"errors":[{"title":"Not Found","detail":"No players found matching criteria"}]}`))

		_, err := tc.client.GetPlayerSeasonStats(t.Context(), "account.1", season, domain.GameModeSquadFPP)

		var upstreamErr *domain.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		require.Equal(t, 404, upstreamErr.StatusCode)
		require.Equal(t, "No players found matching criteria", upstreamErr.Detail)
		require.NotErrorIs(t, err, domain.ErrTemporarilyUnavailable)

		calls := tc.callLog.Calls()
		require.Len(t, calls, 1)
		require.Equal(t, 404, calls[0].StatusCode)
		require.Equal(t, "upstream error: HTTP 404 - No players found matching criteria", calls[0].ErrorMessage)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(503, ``))

		for range 2 {
			_, err := tc.client.GetPlayerSeasonStats(t.Context(), "account.1", season, domain.GameModeSquadFPP)
			require.ErrorIs(t, err, domain.ErrTemporarilyUnavailable)
		}
		require.Len(t, tc.httpClient.urls(), 2)
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, func(req *http.Request) mockedResponse {
			return mockedResponse{err: &url.Error{Op: "Get", URL: req.URL.String(), Err: assert.AnError}}
		})

		_, err := tc.client.GetSeasons(t.Context())
		require.ErrorIs(t, err, domain.ErrTransport)
		require.ErrorIs(t, err, assert.AnError)
		require.NotErrorIs(t, err, domain.ErrTimeout)

		calls := tc.callLog.Calls()
		require.Len(t, calls, 1)
		require.Equal(t, 0, calls[0].StatusCode)
		require.Contains(t, calls[0].ErrorMessage, assert.AnError.Error())
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, func(req *http.Request) mockedResponse {
			return mockedResponse{err: &url.Error{Op: "Get", URL: req.URL.String(), Err: context.DeadlineExceeded}}
		})

		_, err := tc.client.GetSeasons(t.Context())
		require.ErrorIs(t, err, domain.ErrTimeout)
		require.NotErrorIs(t, err, domain.ErrTransport)
	})

	t.Run("net timeout", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, func(req *http.Request) mockedResponse {
			return mockedResponse{err: &url.Error{Op: "Get", URL: req.URL.String(), Err: timeoutError{}}}
		})

		_, err := tc.client.GetSeasons(t.Context())
		require.ErrorIs(t, err, domain.ErrTimeout)
	})

	t.Run("request carries a deadline", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, func(req *http.Request) mockedResponse {
			deadline, ok := req.Context().Deadline()
			require.True(t, ok)
			require.WithinDuration(t, time.Now().Add(RequestTimeout), deadline, 5*time.Second)
			return mockedResponse{statusCode: 200, body: seasonsBody}
		})

		_, err := tc.client.GetSeasons(t.Context())
		require.NoError(t, err)
	})

	t.Run("body read error", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, func(req *http.Request) mockedResponse {
			return mockedResponse{statusCode: 200, bodyReader: cantRead{}}
		})

		_, err := tc.client.GetSeasons(t.Context())
		require.ErrorIs(t, err, domain.ErrTransport)
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(200, `<html>Bad gateway</html>`))

		for range 2 {
			_, err := tc.client.GetSeasons(t.Context())
			require.ErrorIs(t, err, domain.ErrMalformedResponse)
		}

		// Unparsable bodies are never cached
		require.Len(t, tc.httpClient.urls(), 2)

		calls := tc.callLog.Calls()
		require.Len(t, calls, 2)
		for _, call := range calls {
			require.Equal(t, 200, call.StatusCode)
			require.Contains(t, call.ErrorMessage, "failed to parse seasons response")
			require.Contains(t, call.ErrorMessage, domain.ErrMalformedResponse.Error())
		}
	})

	t.Run("parsed body is recorded without error text", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(200, seasonsBody))

		_, err := tc.client.GetSeasons(t.Context())
		require.NoError(t, err)

		calls := tc.callLog.Calls()
		require.Len(t, calls, 1)
		require.Equal(t, 200, calls[0].StatusCode)
		require.Empty(t, calls[0].ErrorMessage)
	})
}

func batchBody(ids []string) string {
	resources := make([]string, 0, len(ids))
	for i, id := range ids {
		resources = append(resources, fmt.Sprintf(
			`{"type":"playerSeason","attributes":{"gameModeStats":{"squad-fpp":{"roundsPlayed":%d,"kills":%d,"losses":%d}}},"relationships":{"player":{"data":{"type":"player","id":"%s"}}}}`,
			10+i, 20+i, 9+i, id,
		))
	}
	return fmt.Sprintf(`{"data":[%s]}`, strings.Join(resources, ","))
}

func idsFromRequest(t *testing.T, req *http.Request) []string {
	t.Helper()

	ids := req.URL.Query().Get("filter[playerIds]")
	require.NotEmpty(t, ids)
	return strings.Split(ids, ",")
}

func accountIDs(n int) []string {
	ids := make([]string, 0, n)
	for i := range n {
		ids = append(ids, fmt.Sprintf("account.%032d", i))
	}
	return ids
}

func TestBatchGetSeasonStats(t *testing.T) {
	t.Parallel()

	t.Run("23 ids are sent as 10, 10 and 3", func(t *testing.T) {
		t.Parallel()

		var sizes []int
		var sizesMutex sync.Mutex
		tc := newTestClient(t, 10, func(req *http.Request) mockedResponse {
			ids := idsFromRequest(t, req)
			sizesMutex.Lock()
			sizes = append(sizes, len(ids))
			sizesMutex.Unlock()
			return mockedResponse{statusCode: 200, body: batchBody(ids)}
		})

		ids := accountIDs(23)
		stats, err := tc.client.BatchGetSeasonStats(t.Context(), ids, season, domain.GameModeSquadFPP)
		require.NoError(t, err)

		require.Equal(t, []int{10, 10, 3}, sizes)
		require.Len(t, stats, 23)

		for _, requestURL := range tc.httpClient.urls() {
			require.True(t, strings.HasPrefix(requestURL, "https://api.pubg.com/shards/steam/seasons/"+season+"/gameMode/squad-fpp/players?filter[playerIds]="), requestURL)
		}

		first := stats[ids[0]]
		require.Equal(t, 10, first.Matches)
		require.Equal(t, 20, first.Kills)
		require.Equal(t, 9, first.Deaths)
		require.Equal(t, domain.StatsTypeSeason, first.StatsType)
		require.Equal(t, domain.GameModeSquadFPP, first.GameMode)
	})

	t.Run("failed chunk does not abort its siblings", func(t *testing.T) {
		t.Parallel()

		requests := 0
		tc := newTestClient(t, 10, func(req *http.Request) mockedResponse {
			requests++
			if requests == 2 {
				return mockedResponse{statusCode: 502, body: `{"errors":[{"detail":"bad gateway"}]}`}
			}
			return mockedResponse{statusCode: 200, body: batchBody(idsFromRequest(t, req))}
		})

		ids := accountIDs(25)
		stats, err := tc.client.BatchGetSeasonStats(t.Context(), ids, season, domain.GameModeSquadFPP)

		var upstreamErr *domain.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		require.Equal(t, 502, upstreamErr.StatusCode)

		require.Len(t, stats, 15)
		require.Contains(t, stats, ids[0])
		require.NotContains(t, stats, ids[10])
		require.Contains(t, stats, ids[24])
		require.Len(t, tc.httpClient.urls(), 3)
	})

	t.Run("identical chunks share the cache", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, func(req *http.Request) mockedResponse {
			return mockedResponse{statusCode: 200, body: batchBody(idsFromRequest(t, req))}
		})

		ids := accountIDs(7)
		first, err := tc.client.BatchGetSeasonStats(t.Context(), ids, season, domain.GameModeSquadFPP)
		require.NoError(t, err)
		second, err := tc.client.BatchGetSeasonStats(t.Context(), ids, season, domain.GameModeSquadFPP)
		require.NoError(t, err)

		require.Equal(t, first, second)
		require.Len(t, tc.httpClient.urls(), 1)

		// Another mode is another cache key
		_, err = tc.client.BatchGetSeasonStats(t.Context(), ids, season, domain.GameModeSoloFPP)
		require.NoError(t, err)
		require.Len(t, tc.httpClient.urls(), 2)
	})

	t.Run("admission denial is reported per chunk", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 1, func(req *http.Request) mockedResponse {
			return mockedResponse{statusCode: 200, body: batchBody(idsFromRequest(t, req))}
		})

		stats, err := tc.client.BatchGetSeasonStats(t.Context(), accountIDs(12), season, domain.GameModeSquadFPP)
		require.ErrorIs(t, err, domain.ErrRateLimitExceeded)
		require.Len(t, stats, 10)
	})

	t.Run("no ids", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(200, `{"data":[]}`))

		stats, err := tc.client.BatchGetSeasonStats(t.Context(), []string{}, season, domain.GameModeSquadFPP)
		require.NoError(t, err)
		require.Empty(t, stats)
		require.Empty(t, tc.httpClient.urls())
	})
}

func TestLookupPlayersByNames(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(200, `{"data":[
			{"type":"player","id":"account.0123456789abcdef0123456789abcdef","attributes":{"name":"shroud","shardId":"steam"}},
			{"type":"player","id":"account.fedcba9876543210fedcba9876543210","attributes":{"name":"chocoTaco","shardId":"steam"}}
		]}`))

		players, err := tc.client.LookupPlayersByNames(t.Context(), []string{"shroud", "chocoTaco"})
		require.NoError(t, err)
		require.Equal(t, []domain.PlayerIdentity{
			{ID: "account.0123456789abcdef0123456789abcdef", Name: "shroud", Platform: "steam", Shard: "steam"},
			{ID: "account.fedcba9876543210fedcba9876543210", Name: "chocoTaco", Platform: "steam", Shard: "steam"},
		}, players)

		require.Equal(t, []string{"https://api.pubg.com/shards/steam/players?filter[playerNames]=shroud,chocoTaco"}, tc.httpClient.urls())
	})

	t.Run("not found is an empty result", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(404, `{"errors":[{"title":"Not Found","detail":"No Players Found Matching Criteria"}]}`))

		players, err := tc.client.LookupPlayersByNames(t.Context(), []string{"nobody"})
		require.NoError(t, err)
		require.Empty(t, players)
	})

	t.Run("chunks of ten", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(200, `{"data":[]}`))

		names := make([]string, 0, 11)
		for i := range 11 {
			names = append(names, fmt.Sprintf("player%d", i))
		}

		_, err := tc.client.LookupPlayersByNames(t.Context(), names)
		require.NoError(t, err)
		require.Len(t, tc.httpClient.urls(), 2)
	})
}

func TestSingleEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("lifetime sums modes", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(200, `{"data":{"type":"playerSeason","attributes":{"gameModeStats":{
			"solo":{"roundsPlayed":5,"kills":3,"losses":5,"longestKill":120.5},
			"squad-fpp":{"roundsPlayed":15,"kills":12,"losses":14,"longestKill":80}
		}}}}`))

		snapshot, err := tc.client.GetLifetimeStats(t.Context(), "account.1", domain.GameModeAll)
		require.NoError(t, err)
		require.Equal(t, 20, snapshot.Matches)
		require.Equal(t, 15, snapshot.Kills)
		require.Equal(t, 19, snapshot.Deaths)
		require.Equal(t, 120.5, snapshot.LongestKill)
		require.Equal(t, domain.StatsTypeLifetime, snapshot.StatsType)

		require.Equal(t, []string{"https://api.pubg.com/shards/steam/players/account.1/seasons/lifetime"}, tc.httpClient.urls())
	})

	t.Run("ranked", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(200, `{"data":{"type":"rankedplayerstats","attributes":{"rankedGameModeStats":{
			"squad-fpp":{"roundsPlayed":30,"wins":3,"kills":45,"deaths":27,"assists":11}
		}}}}`))

		snapshot, err := tc.client.GetRankedStats(t.Context(), "account.1", season, domain.GameModeSquadFPP)
		require.NoError(t, err)
		require.Equal(t, 30, snapshot.Matches)
		require.Equal(t, 27, snapshot.Deaths)
		require.Equal(t, 11, snapshot.Assists)
		require.Equal(t, domain.StatsTypeRanked, snapshot.StatsType)

		require.Equal(t, []string{"https://api.pubg.com/shards/steam/players/account.1/seasons/" + season + "/ranked"}, tc.httpClient.urls())
	})

	t.Run("leaderboard", func(t *testing.T) {
		t.Parallel()

		tc := newTestClient(t, 10, respond(200, `{"data":{"type":"leaderboard","id":"x"},"included":[
			{"type":"player","id":"account.2","attributes":{"name":"second","rank":2,"stats":{"rankPoints":4100,"games":80,"wins":12,"kills":190}}},
			{"type":"player","id":"account.1","attributes":{"name":"first","rank":1,"stats":{"rankPoints":4500.5,"games":90,"wins":20,"kills":240}}}
		]}`))

		entries, err := tc.client.GetLeaderboard(t.Context(), season, domain.GameModeSquadFPP)
		require.NoError(t, err)
		require.Equal(t, []LeaderboardEntry{
			{Rank: 1, PlayerID: "account.1", Name: "first", RankPoints: 4500.5, Games: 90, Wins: 20, Kills: 240},
			{Rank: 2, PlayerID: "account.2", Name: "second", RankPoints: 4100, Games: 80, Wins: 12, Kills: 190},
		}, entries)

		require.Equal(t, []string{"https://api.pubg.com/shards/steam/leaderboards/" + season + "/squad-fpp"}, tc.httpClient.urls())
	})
}
