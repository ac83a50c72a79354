package eligibility

// categoryBand maps an age span to a federation category code.
type categoryBand struct {
	code   string
	minAge int
	maxAge int // -1 = no upper bound
}

// bands are the fixed federation age bands, evaluated against the age at the
// September 1st reference date. Ages below 7 map to no category.
var bands = []categoryBand{
	{"EA", 7, 9},
	{"PO", 10, 11},
	{"BE", 12, 13},
	{"MI", 14, 15},
	{"CA", 16, 17},
	{"JU", 18, 19},
	{"ES", 20, 22},
	{"SE", 23, 34},
	{"M0", 35, 39},
	{"M1", 40, 44},
	{"M2", 45, 49},
	{"M3", 50, 54},
	{"M4", 55, 59},
	{"M5", 60, 64},
	{"M6", 65, 69},
	{"M7", 70, 74},
	{"M8", 75, 79},
	{"M9", 80, 84},
	{"M10", 85, -1},
}

// CategoryForAge classifies an age into a federation category code.
// The second return is false when the age is below the youngest band,
// which makes the athlete ineligible for any federation race.
func CategoryForAge(age int) (string, bool) {
	for _, band := range bands {
		if age < band.minAge {
			break
		}
		if band.maxAge == -1 || age <= band.maxAge {
			return band.code, true
		}
	}
	return "", false
}
