package ports

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pochinki/pochinki/internal/app"
	"github.com/pochinki/pochinki/internal/domain"
	"github.com/pochinki/pochinki/internal/logging"
	"github.com/pochinki/pochinki/internal/reporting"
)

type playerStatsResponse struct {
	Success bool           `json:"success"`
	Player  playerResponse `json:"player"`
	statsResponse
}

type weaponMasteryResponse struct {
	Success bool             `json:"success"`
	Player  playerResponse   `json:"player"`
	Weapons []weaponResponse `json:"weapons"`
}

type addPlayerResponse struct {
	Success bool           `json:"success"`
	Player  playerResponse `json:"player"`
}

func MakeGetPlayerStatsHandler(
	getPlayerStats app.GetPlayerStats,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("player_stats", allowedOrigins, rootLogger, sentryMiddleware, 8, 480)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		playerID := r.PathValue("playerID")
		ctx = reporting.SetPlayerIDInContext(ctx, playerID)

		values := r.URL.Query()
		player, stats, err := getPlayerStats(ctx, playerID, app.PlayerStatsQuery{
			Season:    values.Get("season"),
			GameMode:  domain.GameMode(values.Get("mode")),
			StatsType: domain.StatsType(values.Get("type")),
		})
		if err != nil {
			statusCode, cause := statusForError(err)
			if statusCode == http.StatusInternalServerError {
				logging.FromContext(ctx).ErrorContext(ctx, "failed to get player stats", "error", err.Error())
			}
			writeError(w, statusCode, cause)
			return
		}

		err = writeJSON(w, http.StatusOK, playerStatsResponse{
			Success:       true,
			Player:        newPlayerResponse(player),
			statsResponse: newStatsResponse(stats),
		})
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to write player stats response: %w", err))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}

	return middleware(handler)
}

func MakeGetWeaponMasteryHandler(
	getWeaponMastery app.GetWeaponMastery,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("weapon_mastery", allowedOrigins, rootLogger, sentryMiddleware, 8, 480)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		playerID := r.PathValue("playerID")
		ctx = reporting.SetPlayerIDInContext(ctx, playerID)

		player, weapons, err := getWeaponMastery(ctx, playerID)
		if err != nil {
			statusCode, cause := statusForError(err)
			if statusCode == http.StatusInternalServerError {
				logging.FromContext(ctx).ErrorContext(ctx, "failed to get weapon mastery", "error", err.Error())
			}
			writeError(w, statusCode, cause)
			return
		}

		response := weaponMasteryResponse{
			Success: true,
			Player:  newPlayerResponse(player),
			Weapons: make([]weaponResponse, 0, len(weapons)),
		}
		for _, weapon := range weapons {
			response.Weapons = append(response.Weapons, newWeaponResponse(weapon))
		}

		err = writeJSON(w, http.StatusOK, response)
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to write weapon mastery response: %w", err))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}

	return middleware(handler)
}

func MakeAddPlayerHandler(
	addPlayer app.AddPlayer,
	adminToken string,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildHandlerMiddleware("add_player", allowedOrigins, rootLogger, sentryMiddleware, 1, 30),
		NewAdminAuthMiddleware(adminToken),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		request := struct {
			Name string `json:"name"`
		}{}
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&request)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ctx = logging.AddMetaToContext(ctx, slog.String("name", request.Name))

		player, err := addPlayer(ctx, request.Name)
		if err != nil {
			statusCode, cause := statusForError(err)
			logging.FromContext(ctx).WarnContext(ctx, "failed to add player", "error", err.Error(), "statusCode", statusCode)
			writeError(w, statusCode, cause)
			return
		}

		err = writeJSON(w, http.StatusCreated, addPlayerResponse{
			Success: true,
			Player:  newPlayerResponse(player),
		})
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to write add player response: %w", err))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}

	return middleware(handler)
}

func MakeDeactivatePlayerHandler(
	deactivatePlayer app.DeactivatePlayer,
	adminToken string,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildHandlerMiddleware("deactivate_player", allowedOrigins, rootLogger, sentryMiddleware, 1, 30),
		NewAdminAuthMiddleware(adminToken),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		playerID := r.PathValue("playerID")
		ctx = reporting.SetPlayerIDInContext(ctx, playerID)

		err := deactivatePlayer(ctx, playerID)
		if err != nil {
			statusCode, cause := statusForError(err)
			writeError(w, statusCode, cause)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}

	return middleware(handler)
}
