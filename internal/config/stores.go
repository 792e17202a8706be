package config

// Default store and category tables for uk.webuy.com. These mirror the
// retailer's own groupings; override lists via the environment where the
// scan should cover a different region.

func defaultStoreGroups() map[string][]string {
	return map[string][]string{
		"south-coast": {
			"Bournemouth",
			"Bournemouth - Castlepoint",
			"Poole",
			"Southampton",
			"Portsmouth",
			"Salisbury",
		},
		"london-central": {
			"London - Tottenham Court Rd",
			"London - Rathbone Place",
			"London - Holloway Road",
			"London - Camden",
			"London - Kilburn",
		},
		"south-west": {
			"Bristol",
			"Bath",
			"Exeter",
			"Plymouth",
			"Taunton",
			"Yeovil",
		},
	}
}

func defaultCategories() map[string][]string {
	return map[string][]string{
		"retro-games": {"1057", "1058", "1059", "1064", "1066"},
		"consoles":    {"1055", "1056", "403"},
		"dvd-bluray":  {"732", "733"},
	}
}

func defaultCategoryNames() map[string]string {
	return map[string]string{
		"403":  "Retro Consoles",
		"732":  "DVD Films",
		"733":  "Blu-ray Films",
		"1055": "PS4 Consoles",
		"1056": "Xbox One Consoles",
		"1057": "Mega Drive Games",
		"1058": "SNES Games",
		"1059": "NES Games",
		"1064": "N64 Games",
		"1066": "Game Boy Games",
	}
}

func defaultStoreNamesByID() map[string]string {
	return map[string]string{
		"1":   "London - Tottenham Court Rd",
		"3":   "London - Rathbone Place",
		"14":  "London - Camden",
		"21":  "London - Holloway Road",
		"28":  "London - Kilburn",
		"59":  "Bristol",
		"64":  "Bath",
		"78":  "Exeter",
		"83":  "Plymouth",
		"91":  "Taunton",
		"102": "Yeovil",
		"117": "Bournemouth",
		"118": "Bournemouth - Castlepoint",
		"121": "Poole",
		"134": "Southampton",
		"141": "Portsmouth",
		"152": "Salisbury",
	}
}
