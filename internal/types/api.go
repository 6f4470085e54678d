package types

import "time"

// HealthStatus represents the health status of a service
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ErrorResponse is the body returned for every failed request
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// SearchSettings tunes lineup enumeration for one request
type SearchSettings struct {
	Limit               int     `json:"limit,omitempty"`
	Random              bool    `json:"random,omitempty"`
	Seed                int64   `json:"seed,omitempty"`
	ProjectionsOnly     bool    `json:"projections_only,omitempty"`
	ProjectionThreshold float64 `json:"projection_threshold,omitempty"`
	Exclude             []int64 `json:"exclude,omitempty"`
}

// GenerateRequest asks for a diversified portfolio of lineups
type GenerateRequest struct {
	RunID         string         `json:"run_id,omitempty"`
	ContestType   string         `json:"contest_type,omitempty"`
	Draftables    []Draftable    `json:"draftables" binding:"required,min=1"`
	Covariance    [][]float64    `json:"covariance,omitempty"`
	Search        SearchSettings `json:"search"`
	MinSalary     int            `json:"min_salary,omitempty"`
	PortfolioSize int            `json:"portfolio_size,omitempty"`
	Strategy      string         `json:"strategy,omitempty"` // "min_abs" (default) or "min_signed"
	Start         string         `json:"start,omitempty"`    // "random" (default) or "max_variance"
}

// LineupStat is one row of the per-lineup statistics table
type LineupStat struct {
	Row        int     `json:"row"`
	Lineup     string  `json:"lineup"`
	Salary     int     `json:"salary"`
	Projection float64 `json:"projection"`
	Actual     float64 `json:"actual"`
	Variance   float64 `json:"variance"`
}

// EntityExposure is how often one entity appears in a portfolio
type EntityExposure struct {
	PlayerID   int64   `json:"player_id"`
	Name       string  `json:"name"`
	Slot       string  `json:"slot"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TeamExposure is the share of roster spots a team fills across a portfolio
type TeamExposure struct {
	Team       string  `json:"team"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ExposureReport summarizes a selected portfolio
type ExposureReport struct {
	TotalLineups      int              `json:"total_lineups"`
	EntityExposures   []EntityExposure `json:"entity_exposures"`
	TeamExposures     []TeamExposure   `json:"team_exposures"`
	MeanProjection    float64          `json:"mean_projection"`
	StdDevProjection  float64          `json:"std_dev_projection"`
	MeanOverlap       float64          `json:"mean_overlap"`
	PortfolioVariance float64          `json:"portfolio_variance"`
}

// GenerateResponse is the result of one generate run
type GenerateResponse struct {
	RunID           string         `json:"run_id"`
	ContestType     string         `json:"contest_type"`
	ValidLineups    int            `json:"valid_lineups"`
	EligibleLineups int            `json:"eligible_lineups"`
	Selected        []LineupStat   `json:"selected"`
	Exposure        ExposureReport `json:"exposure"`
	ElapsedMs       int64          `json:"elapsed_ms"`
}

// ValidateRequest checks one explicit lineup against a contest's rules
type ValidateRequest struct {
	ContestType string      `json:"contest_type,omitempty"`
	Lineup      []Draftable `json:"lineup" binding:"required,min=1"`
}

// ProgressUpdate is pushed to websocket subscribers while a search runs
type ProgressUpdate struct {
	RunID       string    `json:"run_id"`
	Type        string    `json:"type"`
	Progress    float64   `json:"progress"`
	Message     string    `json:"message"`
	ShardsDone  int       `json:"shards_done"`
	ShardsTotal int       `json:"shards_total"`
	Accepted    int       `json:"accepted"`
	Timestamp   time.Time `json:"timestamp"`
}

// ValidateResponse reports whether a lineup satisfies the contest rules
type ValidateResponse struct {
	Valid     bool     `json:"valid"`
	Reason    string   `json:"reason,omitempty"`
	Salary    int      `json:"salary"`
	SalaryCap int      `json:"salary_cap"`
	Teams     []string `json:"teams"`
}
