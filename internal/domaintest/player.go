package domaintest

import (
	"fmt"
	"testing"
	"time"

	"github.com/pochinki/pochinki/internal/domain"
)

type playerBuilder struct {
	player *domain.Player
}

func (pb *playerBuilder) WithDBID(id int64) *playerBuilder {
	pb.player.DBID = id
	return pb
}

func (pb *playerBuilder) WithName(name string) *playerBuilder {
	pb.player.Name = name
	return pb
}

func (pb *playerBuilder) WithShard(shard string) *playerBuilder {
	pb.player.Shard = shard
	pb.player.Platform = shard
	return pb
}

func (pb *playerBuilder) Inactive() *playerBuilder {
	pb.player.Active = false
	return pb
}

func (pb *playerBuilder) Build() domain.Player {
	return *pb.player
}

func NewPlayerBuilder(accountID string) *playerBuilder {
	player := &domain.Player{
		PlayerIdentity: domain.PlayerIdentity{
			ID:       accountID,
			Name:     fmt.Sprintf("player-%s", accountID),
			Platform: "steam",
			Shard:    "steam",
		},
		Active: true,
	}
	return &playerBuilder{
		player: player,
	}
}

// Time returns a fixed, UTC timestamp for deterministic tests
func Time(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)
}
