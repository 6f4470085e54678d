package types

// Draftable is one raw row from the data provider: a player made available
// in a draft group under one roster slot.
type Draftable struct {
	PlayerID     int64    `json:"player_id" binding:"required"`
	Name         string   `json:"name" binding:"required"`
	Team         string   `json:"team" binding:"required"`
	Opponent     string   `json:"opponent,omitempty"`
	Position     string   `json:"position"`
	RosterSlotID int      `json:"roster_slot_id,omitempty"`
	RosterSlot   string   `json:"roster_slot,omitempty"`
	Salary       int      `json:"salary"`
	Projection   *float64 `json:"projection,omitempty"`
	Variance     *float64 `json:"variance,omitempty"`
	Actual       *float64 `json:"actual,omitempty"`
}

// Entity is one (player, roster slot) row available to a lineup. A player
// eligible for several slot categories appears once per category.
type Entity struct {
	PlayerID     int64  `json:"player_id"`
	Name         string `json:"name"`
	Team         string `json:"team"`
	Opponent     string `json:"opponent"`
	Position     string `json:"position"`
	RosterSlotID int    `json:"roster_slot_id"`
	Slot         string `json:"slot"`
	Salary       int    `json:"salary"`
}

// EntityStats holds the numeric columns of an Entity. Nil means unknown.
type EntityStats struct {
	Projection *float64 `json:"projection,omitempty"`
	Variance   *float64 `json:"variance,omitempty"`
	Actual     *float64 `json:"actual,omitempty"`
}

// HasProjection reports whether the projection is known and strictly positive
func (s EntityStats) HasProjection() bool {
	return s.Projection != nil && *s.Projection > 0
}

// ProjectionOrZero returns the projection, or 0 when unknown
func (s EntityStats) ProjectionOrZero() float64 {
	return valueOrZero(s.Projection)
}

// VarianceOrZero returns the variance, or 0 when unknown
func (s EntityStats) VarianceOrZero() float64 {
	return valueOrZero(s.Variance)
}

// ActualOrZero returns the realized score, or 0 before the contest settles
func (s EntityStats) ActualOrZero() float64 {
	return valueOrZero(s.Actual)
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Float returns a pointer to v, handy for building fixtures and requests
func Float(v float64) *float64 {
	return &v
}
