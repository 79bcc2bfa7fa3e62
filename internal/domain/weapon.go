package domain

import (
	"strings"
	"time"
)

type WeaponMastery struct {
	// Upstream weapon id, e.g. Item_Weapon_AK47_C
	Name          string
	Category      string
	XP            int
	Level         int
	Kills         int
	Damage        float64
	Headshots     int
	Defeats       int
	LongestDefeat float64
	LastUpdated   time.Time
}

const WeaponCategoryUnknown = "Unknown"

// Checked in order with a case insensitive substring match against the weapon id
var weaponCategories = []struct {
	weapon   string
	category string
}{
	{"AKM", "Assault Rifle"},
	{"AUG", "Assault Rifle"},
	{"Beryl", "Assault Rifle"},
	{"G36C", "Assault Rifle"},
	{"Groza", "Assault Rifle"},
	{"M416", "Assault Rifle"},
	{"M16A4", "Assault Rifle"},
	{"Mk47", "Assault Rifle"},
	{"QBZ", "Assault Rifle"},
	{"SCAR-L", "Assault Rifle"},

	{"Bizon", "SMG"},
	{"MP5K", "SMG"},
	{"Thompson", "SMG"},
	{"UMP", "SMG"},
	{"Uzi", "SMG"},
	{"Vector", "SMG"},

	{"AWM", "Sniper Rifle"},
	{"Kar98k", "Sniper Rifle"},
	{"M24", "Sniper Rifle"},
	{"Mosin", "Sniper Rifle"},
	{"Win94", "Sniper Rifle"},

	{"Mini14", "DMR"},
	{"Mk14", "DMR"},
	{"QBU", "DMR"},
	{"SKS", "DMR"},
	{"SLR", "DMR"},
	{"VSS", "DMR"},

	{"DP28", "LMG"},
	{"M249", "LMG"},

	{"S12K", "Shotgun"},
	{"S1897", "Shotgun"},
	{"S686", "Shotgun"},
	{"DBS", "Shotgun"},

	{"Deagle", "Pistol"},
	{"P18C", "Pistol"},
	{"P1911", "Pistol"},
	{"P92", "Pistol"},
	{"R1895", "Pistol"},
	{"R45", "Pistol"},
	{"Skorpion", "Pistol"},

	{"Crossbow", "Other"},
	{"Sawed-off", "Other"},
}

func WeaponCategory(weaponID string) string {
	lowered := strings.ToLower(weaponID)
	for _, entry := range weaponCategories {
		if strings.Contains(lowered, strings.ToLower(entry.weapon)) {
			return entry.category
		}
	}
	return WeaponCategoryUnknown
}
