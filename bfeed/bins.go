package bfeed

var (
	ageLevels    = []string{"15-19", "20-22", "23-28"}
	birthLevels  = []string{"1978-1980", "1981-1983", "1984-1986"}
	schoolLevels = []string{"<12", "12", ">12"}
)

// AgeGroup bins the age of the mother in years.
func AgeGroup(age float64) string {
	switch {
	case age < 20:
		return ageLevels[0]
	case age < 23:
		return ageLevels[1]
	default:
		return ageLevels[2]
	}
}

// BirthGroup bins the year of birth.
func BirthGroup(year float64) string {
	switch {
	case year < 1981:
		return birthLevels[0]
	case year < 1984:
		return birthLevels[1]
	default:
		return birthLevels[2]
	}
}

// SchoolGroup bins the years of school completed by the mother, with
// high school completion (12 years) as the middle group.
func SchoolGroup(years float64) string {
	switch {
	case years < 12:
		return schoolLevels[0]
	case years == 12:
		return schoolLevels[1]
	default:
		return schoolLevels[2]
	}
}
