package ports

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pochinki/pochinki/internal/app"
	"github.com/pochinki/pochinki/internal/domain"
	"github.com/pochinki/pochinki/internal/logging"
	"github.com/pochinki/pochinki/internal/reporting"
)

type leaderboardEntryResponse struct {
	Rank   int            `json:"rank"`
	Player playerResponse `json:"player"`
	statsResponse
}

type leaderboardResponse struct {
	Success       bool                       `json:"success"`
	Season        string                     `json:"season"`
	GameMode      string                     `json:"gameMode"`
	StatsType     string                     `json:"statsType"`
	Sort          string                     `json:"sort"`
	Limit         int                        `json:"limit"`
	MinConfidence string                     `json:"minConfidence"`
	Entries       []leaderboardEntryResponse `json:"entries"`
}

// parseLeaderboardQuery reads the query string. Missing values are left for the use case to default.
func parseLeaderboardQuery(r *http.Request) (domain.LeaderboardQuery, error) {
	values := r.URL.Query()

	sort, err := domain.ParseLeaderboardSort(values.Get("sort"))
	if err != nil {
		return domain.LeaderboardQuery{}, err
	}

	query := domain.LeaderboardQuery{
		Season:    values.Get("season"),
		GameMode:  domain.GameMode(values.Get("mode")),
		StatsType: domain.StatsType(values.Get("type")),
		Sort:      sort,
	}

	if rawLimit := values.Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 1 || limit > domain.MaxLeaderboardLimit {
			return domain.LeaderboardQuery{}, fmt.Errorf("%w: limit %q", domain.ErrInvalidInput, rawLimit)
		}
		query.Limit = limit
	}

	if rawConfidence := values.Get("minConfidence"); rawConfidence != "" {
		tier, ok := domain.ParseConfidenceTier(rawConfidence)
		if !ok {
			return domain.LeaderboardQuery{}, fmt.Errorf("%w: minConfidence %q", domain.ErrInvalidInput, rawConfidence)
		}
		query.MinConfidence = tier
	}

	return query, nil
}

func MakeGetLeaderboardHandler(
	getLeaderboard app.GetLeaderboard,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("leaderboard", allowedOrigins, rootLogger, sentryMiddleware, 4, 240)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		query, err := parseLeaderboardQuery(r)
		if err != nil {
			statusCode, cause := statusForError(err)
			writeError(w, statusCode, cause)
			return
		}

		query, entries, err := getLeaderboard(ctx, query)
		if err != nil {
			statusCode, cause := statusForError(err)
			if statusCode == http.StatusInternalServerError {
				// NOTE: StatsRepository implementations handle their own error reporting
				logging.FromContext(ctx).ErrorContext(ctx, "failed to get leaderboard", "error", err.Error())
			}
			writeError(w, statusCode, cause)
			return
		}

		response := leaderboardResponse{
			Success:       true,
			Season:        query.Season,
			GameMode:      string(query.GameMode),
			StatsType:     string(query.StatsType),
			Sort:          string(query.Sort),
			Limit:         query.Limit,
			MinConfidence: query.MinConfidence.String(),
			Entries:       make([]leaderboardEntryResponse, 0, len(entries)),
		}
		for _, entry := range entries {
			response.Entries = append(response.Entries, leaderboardEntryResponse{
				Rank:          entry.Rank,
				Player:        newPlayerResponse(entry.Player),
				statsResponse: newStatsResponse(entry.Stats),
			})
		}

		err = writeJSON(w, http.StatusOK, response)
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to write leaderboard response: %w", err))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}

	return middleware(handler)
}
