package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"startline/internal/catalog"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAgeAt(t *testing.T) {
	reference := date(2026, time.September, 1)

	tests := []struct {
		name  string
		birth time.Time
		want  int
	}{
		{"birthday before cutoff", date(2000, time.June, 15), 26},
		{"birthday on cutoff", date(2000, time.September, 1), 26},
		{"birthday after cutoff", date(2000, time.September, 2), 25},
		{"december birth", date(2000, time.December, 31), 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgeAt(tt.birth, reference))
		})
	}
}

func TestEvaluate_GenderRestriction(t *testing.T) {
	in := Input{
		BirthDate:         date(1990, time.March, 10),
		Gender:            catalog.GenderMale,
		EventDate:         date(2026, time.May, 17),
		GenderRestriction: catalog.GenderFemale,
	}
	result := Evaluate(in)
	assert.False(t, result.Eligible)
	assert.Contains(t, result.Reason, "gender")
}

func TestEvaluate_NoCategoryRestriction(t *testing.T) {
	in := Input{
		BirthDate:         date(2020, time.January, 1),
		Gender:            catalog.GenderFemale,
		EventDate:         date(2026, time.May, 17),
		GenderRestriction: catalog.GenderAll,
	}
	result := Evaluate(in)
	assert.True(t, result.Eligible)
	assert.Equal(t, -1, result.Age)
}

func TestEvaluate_FederationRaceRequiresCategory(t *testing.T) {
	base := Input{
		Gender:            catalog.GenderFemale,
		EventDate:         date(2026, time.May, 17),
		GenderRestriction: catalog.GenderAll,
		FederationRace:    true,
	}

	t.Run("under 7 maps to no category and is ineligible", func(t *testing.T) {
		in := base
		in.BirthDate = date(2022, time.January, 1) // 4 on 2026-09-01
		result := Evaluate(in)
		assert.False(t, result.Eligible)
		assert.Equal(t, 4, result.Age)
		assert.Contains(t, result.Reason, "category")
	})

	t.Run("youngest category age is eligible without a restriction", func(t *testing.T) {
		in := base
		in.BirthDate = date(2019, time.May, 1) // 7 on 2026-09-01
		result := Evaluate(in)
		assert.True(t, result.Eligible)
		assert.Equal(t, 7, result.Age)
	})

	t.Run("non-federation race has no implicit age floor", func(t *testing.T) {
		in := base
		in.FederationRace = false
		in.BirthDate = date(2022, time.January, 1)
		assert.True(t, Evaluate(in).Eligible)
	})
}

func TestEvaluate_MinAgeBoundary(t *testing.T) {
	// Restriction set: minAge=18, no upper bound.
	categories := []catalog.FederationCategory{
		{Code: "JU", MinAge: 18},
	}
	eventDate := date(2026, time.June, 6)

	t.Run("exactly minAge-1 at reference date is ineligible", func(t *testing.T) {
		// Born 2008-10-01: 17 on 2026-09-01.
		result := Evaluate(Input{
			BirthDate:         date(2008, time.October, 1),
			Gender:            catalog.GenderMale,
			EventDate:         eventDate,
			GenderRestriction: catalog.GenderAll,
			Categories:        categories,
		})
		assert.False(t, result.Eligible)
		assert.Equal(t, 17, result.Age)
		assert.Contains(t, result.Reason, "17")
		assert.Contains(t, result.Reason, "2026")
	})

	t.Run("exactly minAge at reference date is eligible", func(t *testing.T) {
		// Born 2008-08-01: 18 on 2026-09-01.
		result := Evaluate(Input{
			BirthDate:         date(2008, time.August, 1),
			Gender:            catalog.GenderMale,
			EventDate:         eventDate,
			GenderRestriction: catalog.GenderAll,
			Categories:        categories,
		})
		assert.True(t, result.Eligible)
		assert.Equal(t, 18, result.Age)
	})
}

func TestEvaluate_EffectiveWindowUnion(t *testing.T) {
	sixteen := 17
	nineteen := 19
	categories := []catalog.FederationCategory{
		{Code: "CA", MinAge: 16, MaxAge: &sixteen},
		{Code: "JU", MinAge: 18, MaxAge: &nineteen},
	}
	base := Input{
		Gender:            catalog.GenderAll,
		EventDate:         date(2026, time.June, 6),
		GenderRestriction: catalog.GenderAll,
		Categories:        categories,
	}

	t.Run("age inside the union is eligible", func(t *testing.T) {
		in := base
		in.BirthDate = date(2009, time.January, 15) // 17 at reference
		assert.True(t, Evaluate(in).Eligible)
	})

	t.Run("age above the union max is ineligible", func(t *testing.T) {
		in := base
		in.BirthDate = date(2005, time.January, 15) // 21 at reference
		result := Evaluate(in)
		assert.False(t, result.Eligible)
		assert.Contains(t, result.Reason, "maximum of 19")
	})

	t.Run("nil max on any category lifts the upper bound", func(t *testing.T) {
		in := base
		in.Categories = append([]catalog.FederationCategory{{Code: "SE", MinAge: 23}}, categories...)
		in.BirthDate = date(1950, time.January, 15)
		assert.True(t, Evaluate(in).Eligible)
	})
}

func TestCategoryForAge(t *testing.T) {
	tests := []struct {
		age      int
		wantCode string
		wantOK   bool
	}{
		{6, "", false},
		{7, "EA", true},
		{9, "EA", true},
		{10, "PO", true},
		{13, "BE", true},
		{15, "MI", true},
		{17, "CA", true},
		{19, "JU", true},
		{22, "ES", true},
		{23, "SE", true},
		{34, "SE", true},
		{35, "M0", true},
		{44, "M1", true},
		{84, "M9", true},
		{85, "M10", true},
		{101, "M10", true},
	}
	for _, tt := range tests {
		code, ok := CategoryForAge(tt.age)
		assert.Equal(t, tt.wantOK, ok, "age %d", tt.age)
		assert.Equal(t, tt.wantCode, code, "age %d", tt.age)
	}
}
