// Package eligibility decides whether an athlete may start a race. All
// functions are pure domain logic - no I/O, no side effects - so rules stay
// centralized and testable.
package eligibility

import (
	"fmt"
	"time"

	"startline/internal/catalog"
)

// Result is the outcome of an eligibility evaluation.
type Result struct {
	Eligible bool
	Reason   string
	// Age at the federation reference date; -1 when no age rule applied.
	Age int
}

// Input carries everything an evaluation needs.
type Input struct {
	BirthDate time.Time
	Gender    catalog.Gender
	EventDate time.Time
	// Restriction data from the race being evaluated.
	GenderRestriction catalog.Gender
	Categories        []catalog.FederationCategory
	// FederationRace races reject athletes too young to hold any
	// federation category, even without an explicit restriction.
	FederationRace bool
}

// ReferenceDate returns the federation's fixed annual cutoff: September 1st
// of the event's year. Ages are always computed against this date, not the
// event date itself.
func ReferenceDate(eventDate time.Time) time.Time {
	return time.Date(eventDate.Year(), time.September, 1, 0, 0, 0, 0, time.UTC)
}

// AgeAt computes the calendar age at the given reference date, subtracting
// one when the reference (month, day) precedes the birth (month, day).
func AgeAt(birthDate, reference time.Time) int {
	age := reference.Year() - birthDate.Year()
	if reference.Month() < birthDate.Month() ||
		(reference.Month() == birthDate.Month() && reference.Day() < birthDate.Day()) {
		age--
	}
	return age
}

// Evaluate applies the race's restrictions to the applicant.
// Rule order (fail-fast):
//  1. Gender restriction.
//  2. Federation races require the athlete to map to some category.
//  3. Empty category set accepts with no further age rule.
//  4. Age window derived from the union of restricted categories.
func Evaluate(in Input) Result {
	if in.GenderRestriction != catalog.GenderAll && in.Gender != in.GenderRestriction {
		return Result{
			Eligible: false,
			Reason:   "this race is restricted to another gender",
			Age:      -1,
		}
	}

	reference := ReferenceDate(in.EventDate)
	age := AgeAt(in.BirthDate, reference)

	if in.FederationRace {
		if _, ok := CategoryForAge(age); !ok {
			return Result{
				Eligible: false,
				Reason: fmt.Sprintf("age %d on September 1st %d does not map to any federation category",
					age, reference.Year()),
				Age: age,
			}
		}
	}

	if len(in.Categories) == 0 {
		result := Result{Eligible: true, Age: -1}
		if in.FederationRace {
			result.Age = age
		}
		return result
	}

	minAge, maxAge := effectiveWindow(in.Categories)

	if age < minAge {
		return Result{
			Eligible: false,
			Reason: fmt.Sprintf("age %d on September 1st %d is below the minimum of %d for this race",
				age, reference.Year(), minAge),
			Age: age,
		}
	}
	if maxAge != nil && age > *maxAge {
		return Result{
			Eligible: false,
			Reason: fmt.Sprintf("age %d on September 1st %d is above the maximum of %d for this race",
				age, reference.Year(), *maxAge),
			Age: age,
		}
	}
	return Result{Eligible: true, Age: age}
}

// effectiveWindow unions the restricted categories: the lowest minimum and
// the highest maximum. A nil maximum on any category lifts the upper bound.
func effectiveWindow(categories []catalog.FederationCategory) (int, *int) {
	minAge := categories[0].MinAge
	var maxAge *int
	unbounded := false
	for _, c := range categories {
		if c.MinAge < minAge {
			minAge = c.MinAge
		}
		if c.MaxAge == nil {
			unbounded = true
			continue
		}
		if maxAge == nil || *c.MaxAge > *maxAge {
			m := *c.MaxAge
			maxAge = &m
		}
	}
	if unbounded {
		return minAge, nil
	}
	return minAge, maxAge
}
