package playerrepository

import (
	"context"

	"github.com/pochinki/pochinki/internal/domain"
)

type PlayerRepository interface {
	// AddPlayer stores the identity, or refreshes and reactivates an existing player with the same id
	AddPlayer(ctx context.Context, identity domain.PlayerIdentity) (domain.Player, error)

	// Ordered by name
	GetActivePlayers(ctx context.Context) ([]domain.Player, error)

	// Returns domain.ErrPlayerNotFound if no player has the given id
	GetPlayer(ctx context.Context, playerID string) (domain.Player, error)

	// Returns domain.ErrPlayerNotFound if no player has the given id
	SetActive(ctx context.Context, playerID string, active bool) error

	// Removes the player together with its stats and weapon mastery.
	// Returns domain.ErrPlayerNotFound if no player has the given id.
	DeletePlayer(ctx context.Context, playerID string) error
}
