package domain

type Season struct {
	ID          string
	IsCurrent   bool
	IsOffseason bool
}

// CurrentSeason returns the first season flagged as current
func CurrentSeason(seasons []Season) (Season, bool) {
	for _, season := range seasons {
		if season.IsCurrent {
			return season, true
		}
	}
	return Season{}, false
}
