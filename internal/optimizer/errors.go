package optimizer

import "errors"

var (
	// ErrUnsupportedContest is returned for contest shapes without a ruleset
	ErrUnsupportedContest = errors.New("unsupported contest type")
	// ErrInvalidConstraint is returned when a ruleset is malformed
	ErrInvalidConstraint = errors.New("invalid lineup constraint")
	// ErrSlotMismatch is returned when an entity's slot is not part of the contest
	ErrSlotMismatch = errors.New("roster slot not declared by contest")
	// ErrTooManyTeams is returned when a pool spans more teams than the contest allows
	ErrTooManyTeams = errors.New("entity pool spans too many teams")
	// ErrInvalidEntity is returned for malformed entity rows
	ErrInvalidEntity = errors.New("invalid entity")
	// ErrDimensionMismatch is returned when lineups, entities and covariance disagree in shape
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrSearchSpaceTooLarge is returned when enumeration would exceed the candidate ceiling
	ErrSearchSpaceTooLarge = errors.New("lineup search space exceeds candidate ceiling")
)
