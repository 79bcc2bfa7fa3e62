package seasonrepository

import (
	"context"

	"github.com/pochinki/pochinki/internal/domain"
)

type SeasonRepository interface {
	// StoreSeasons replaces the current/offseason flags of every stored season with the given list
	StoreSeasons(ctx context.Context, seasons []domain.Season) error
	GetSeasons(ctx context.Context) ([]domain.Season, error)
	// Returns domain.ErrNoCurrentSeason when no stored season is flagged as current
	GetCurrentSeason(ctx context.Context) (domain.Season, error)
}
