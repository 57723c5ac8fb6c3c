package model

import (
	"time"
	"unicode/utf8"
)

// Student represents a student record. ID is assigned by the store; a
// Student that has not been created yet carries ID 0.
type Student struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name" validate:"required,max=100"`
	LastName  string    `json:"last_name" validate:"required,max=100"`
	Birthdate time.Time `json:"birthdate" validate:"required"`
}

// Date returns the calendar date y-m-d as a UTC midnight time.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the clock part of t, keeping its calendar date.
func DateOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// AgeAt returns the student's age in whole years on the given date.
func (s Student) AgeAt(asOf time.Time) int {
	age := asOf.Year() - s.Birthdate.Year()
	if asOf.Month() < s.Birthdate.Month() ||
		(asOf.Month() == s.Birthdate.Month() && asOf.Day() < s.Birthdate.Day()) {
		age--
	}
	return age
}

// AnonymizedLastName keeps the first character of a last name followed by
// a period: "Smith" becomes "S.". Applying it twice yields the same result.
func AnonymizedLastName(lastName string) string {
	r, size := utf8.DecodeRuneInString(lastName)
	if size == 0 {
		return "."
	}
	return string(r) + "."
}
