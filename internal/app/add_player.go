package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pochinki/pochinki/internal/domain"
	"github.com/pochinki/pochinki/internal/logging"
)

const maxPlayerNameLength = 64

type AddPlayer func(ctx context.Context, name string) (domain.Player, error)

type playerLookup interface {
	LookupPlayersByNames(ctx context.Context, names []string) ([]domain.PlayerIdentity, error)
}

type playerAdder interface {
	AddPlayer(ctx context.Context, identity domain.PlayerIdentity) (domain.Player, error)
}

// BuildAddPlayer resolves the name upstream and starts tracking the player.
// A name the stats API does not know returns domain.ErrPlayerNotFound.
func BuildAddPlayer(provider playerLookup, repo playerAdder) AddPlayer {
	return func(ctx context.Context, name string) (domain.Player, error) {
		name = strings.TrimSpace(name)
		nameLength := utf8.RuneCountInString(name)
		if nameLength == 0 || nameLength > maxPlayerNameLength {
			return domain.Player{}, fmt.Errorf("%w: player name length %d", domain.ErrInvalidInput, nameLength)
		}

		identities, err := provider.LookupPlayersByNames(ctx, []string{name})
		if err != nil {
			// NOTE: StatsProvider implementations handle their own error reporting
			return domain.Player{}, fmt.Errorf("failed to look up player: %w", err)
		}

		identity, ok := matchIdentity(identities, name)
		if !ok {
			logging.FromContext(ctx).InfoContext(ctx, "player not found in lookup", "name", name)
			return domain.Player{}, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, name)
		}

		player, err := repo.AddPlayer(ctx, identity)
		if err != nil {
			// NOTE: PlayerRepository implementations handle their own error reporting
			return domain.Player{}, fmt.Errorf("failed to store player: %w", err)
		}

		logging.FromContext(ctx).InfoContext(ctx, "added player", "name", player.Name, "playerID", player.ID)

		return player, nil
	}
}

// Prefer an exact match, then fall back to a case insensitive one
func matchIdentity(identities []domain.PlayerIdentity, name string) (domain.PlayerIdentity, bool) {
	for _, identity := range identities {
		if identity.Name == name {
			return identity, true
		}
	}
	for _, identity := range identities {
		if strings.EqualFold(identity.Name, name) {
			return identity, true
		}
	}
	return domain.PlayerIdentity{}, false
}

type DeactivatePlayer func(ctx context.Context, playerID string) error

type playerDeactivator interface {
	SetActive(ctx context.Context, playerID string, active bool) error
}

// BuildDeactivatePlayer stops ingestion for the player while keeping their history
func BuildDeactivatePlayer(repo playerDeactivator) DeactivatePlayer {
	return func(ctx context.Context, playerID string) error {
		err := repo.SetActive(ctx, playerID, false)
		if err != nil {
			return fmt.Errorf("failed to deactivate player: %w", err)
		}
		return nil
	}
}
