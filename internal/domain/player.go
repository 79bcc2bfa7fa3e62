package domain

import "time"

// PlayerIdentity is assigned by the upstream lookup and never changes afterwards
type PlayerIdentity struct {
	ID       string
	Name     string
	Platform string
	Shard    string
}

type Player struct {
	// Local row id
	DBID int64

	PlayerIdentity

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

var Platforms = []string{"steam", "xbox", "psn", "stadia", "console", "kakao"}

func IsValidPlatform(platform string) bool {
	for _, p := range Platforms {
		if p == platform {
			return true
		}
	}
	return false
}
