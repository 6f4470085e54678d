package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/dfs-coverage/pkg/logger"
)

// ctxCheckInterval is how many candidates a worker evaluates between
// cancellation checks
const ctxCheckInterval = 1024

// SearchOptions configures LineupSearch. The zero value runs an exhaustive,
// viability-filtered search on runtime.NumCPU() workers.
type SearchOptions struct {
	// IncludeUnprojected admits entities without a positive projection
	IncludeUnprojected bool
	// Limit stops the search after this many lineups; 0 means unlimited
	Limit int
	// Random samples candidates with Rand instead of enumerating in order
	Random bool
	Rand   *rand.Rand
	// Workers is the exhaustive search parallelism
	Workers int
	// MaxCandidates bounds the candidate space of an unlimited search and
	// the sampling attempts of a random one
	MaxCandidates int
	Progress      func(SearchProgress)
	Logger        *logrus.Entry
}

// SearchProgress is reported after each completed shard
type SearchProgress struct {
	ShardsDone  int
	ShardsTotal int
	Accepted    int
	Evaluated   int64
}

// SearchResult holds accepted lineups as flattened entity indices, grouped by
// slot category in constraint order.
type SearchResult struct {
	Lineups    [][]int
	Candidates int
	Evaluated  int64
	Elapsed    time.Duration
}

type shardResult struct {
	shard   int
	lineups [][]int
	err     error
}

// LineupSearch enumerates the cartesian product of per-slot combinations and
// keeps candidates that use distinct players, span exactly the required number
// of teams and stay strictly under the salary cap. Output order is the
// enumeration order regardless of worker count.
func LineupSearch(ctx context.Context, pool *EntityPool, opts SearchOptions) (*SearchResult, error) {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger().WithField("component", "lineup_search")
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", ErrInvalidConstraint, opts.Limit)
	}

	constraints := pool.Constraints()
	space := newCandidateSpace(pool.IndicesBySlot(!opts.IncludeUnprojected), constraints.slots)
	if space.empty() {
		log.WithField("pool_size", pool.Len()).Warn("No candidate lineups: a slot category has too few eligible entities")
		return &SearchResult{Lineups: [][]int{}, Elapsed: time.Since(start)}, nil
	}

	maxCandidates := opts.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = math.MaxInt
	}

	log.WithFields(logrus.Fields{
		"candidates": space.total,
		"overflow":   space.overflow,
		"limit":      opts.Limit,
		"random":     opts.Random,
	}).Info("Starting lineup search")

	checker := newCandidateChecker(pool)

	var (
		result *SearchResult
		err    error
	)
	if opts.Random {
		result, err = sampleSearch(ctx, space, checker, opts, maxCandidates)
	} else {
		if opts.Limit == 0 && (space.overflow || space.total > maxCandidates) {
			return nil, fmt.Errorf("%w: %d candidates, ceiling %d", ErrSearchSpaceTooLarge, space.total, maxCandidates)
		}
		result, err = shardedSearch(ctx, space, checker, opts)
	}
	if err != nil {
		log.WithError(err).Warn("Lineup search did not complete")
		return nil, err
	}

	result.Candidates = space.total
	result.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"accepted":   len(result.Lineups),
		"evaluated":  result.Evaluated,
		"elapsed_ms": result.Elapsed.Milliseconds(),
	}).Info("Lineup search completed")

	return result, nil
}

// candidateChecker holds flat per-entity columns so the hot loop avoids
// touching entity structs
type candidateChecker struct {
	playerIDs   []int64
	teams       []int
	salaries    []int
	salaryCap   int
	uniqueTeams int
	numTeams    int
}

func newCandidateChecker(pool *EntityPool) *candidateChecker {
	teamIndex := make(map[string]int)
	c := &candidateChecker{
		playerIDs:   make([]int64, pool.Len()),
		teams:       make([]int, pool.Len()),
		salaries:    make([]int, pool.Len()),
		salaryCap:   pool.Constraints().SalaryCap(),
		uniqueTeams: pool.Constraints().UniqueTeams(),
	}
	for i, e := range pool.entities {
		t, ok := teamIndex[e.Team]
		if !ok {
			t = len(teamIndex)
			teamIndex[e.Team] = t
		}
		c.playerIDs[i] = e.PlayerID
		c.teams[i] = t
		c.salaries[i] = e.Salary
	}
	c.numTeams = len(teamIndex)
	return c
}

// accept applies the checks cheapest first: distinct players, exact team
// count, then salary strictly below the cap. seen is scratch of len numTeams.
func (c *candidateChecker) accept(candidate []int, seen []bool) bool {
	for i := 1; i < len(candidate); i++ {
		id := c.playerIDs[candidate[i]]
		for j := 0; j < i; j++ {
			if c.playerIDs[candidate[j]] == id {
				return false
			}
		}
	}

	for t := range seen {
		seen[t] = false
	}
	teams := 0
	for _, e := range candidate {
		if t := c.teams[e]; !seen[t] {
			seen[t] = true
			teams++
		}
	}
	if teams != c.uniqueTeams {
		return false
	}

	salary := 0
	for _, e := range candidate {
		salary += c.salaries[e]
	}
	return salary < c.salaryCap
}

func shardedSearch(ctx context.Context, space *candidateSpace, checker *candidateChecker, opts SearchOptions) (*SearchResult, error) {
	numShards := space.dims[0]
	numWorkers := runtime.NumCPU()
	if opts.Workers > 0 {
		numWorkers = opts.Workers
	}
	if numWorkers > numShards {
		numWorkers = numShards
	}

	// cutoff is the last shard still needed; with a limit it drops once a
	// contiguous prefix of shards holds enough lineups
	var cutoff atomic.Int64
	cutoff.Store(int64(numShards - 1))
	var evaluated atomic.Int64

	shardsChan := make(chan int, numWorkers)
	resultsChan := make(chan shardResult, numWorkers)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for shard := range shardsChan {
				lineups, n, err := searchShard(ctx, space, checker, shard, opts.Limit, &cutoff)
				evaluated.Add(n)
				resultsChan <- shardResult{shard: shard, lineups: lineups, err: err}
			}
		}()
	}

	go func() {
		defer close(shardsChan)
		for shard := 0; shard < numShards; shard++ {
			if int64(shard) > cutoff.Load() || ctx.Err() != nil {
				return
			}
			shardsChan <- shard
		}
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	perShard := make([][][]int, numShards)
	done := make([]bool, numShards)
	shardsDone, prefix, prefixAccepted, accepted := 0, 0, 0, 0
	for res := range resultsChan {
		if res.err != nil {
			continue
		}
		perShard[res.shard] = res.lineups
		done[res.shard] = true
		shardsDone++
		accepted += len(res.lineups)

		for prefix < numShards && done[prefix] {
			prefixAccepted += len(perShard[prefix])
			prefix++
			if opts.Limit > 0 && prefixAccepted >= opts.Limit && int64(prefix-1) < cutoff.Load() {
				cutoff.Store(int64(prefix - 1))
			}
		}

		if opts.Progress != nil {
			opts.Progress(SearchProgress{
				ShardsDone:  shardsDone,
				ShardsTotal: numShards,
				Accepted:    accepted,
				Evaluated:   evaluated.Load(),
			})
		}
	}

	// every shard up to the cutoff must have completed; a deadline that only
	// cut off shards past it does not affect the result
	last := int(cutoff.Load())
	if prefix <= last {
		return nil, fmt.Errorf("lineup search interrupted after %d of %d shards: %w", shardsDone, numShards, ctx.Err())
	}

	lineups := make([][]int, 0, prefixAccepted)
	for shard := 0; shard <= last; shard++ {
		lineups = append(lineups, perShard[shard]...)
	}
	if opts.Limit > 0 && len(lineups) > opts.Limit {
		lineups = lineups[:opts.Limit]
	}

	return &SearchResult{Lineups: lineups, Evaluated: evaluated.Load()}, nil
}

// searchShard enumerates every candidate sharing the shard's first-slot
// combination. It returns early once the shard alone holds limit lineups or
// falls past the cutoff.
func searchShard(ctx context.Context, space *candidateSpace, checker *candidateChecker, shard, limit int, cutoff *atomic.Int64) ([][]int, int64, error) {
	size := space.shardSize()
	from := shard * size
	sub := make([]int, len(space.dims))
	seen := make([]bool, checker.numTeams)
	candidate := make([]int, 0, space.size)
	var lineups [][]int
	var n int64

	for idx := from; idx < from+size; idx++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, n, err
			}
			if int64(shard) > cutoff.Load() {
				return nil, n, nil
			}
		}
		n++
		candidate = space.decode(candidate, sub, idx)
		if !checker.accept(candidate, seen) {
			continue
		}
		lineup := make([]int, len(candidate))
		copy(lineup, candidate)
		lineups = append(lineups, lineup)
		if limit > 0 && len(lineups) >= limit {
			break
		}
	}
	return lineups, n, nil
}

// sampleSearch draws distinct candidates uniformly at random until the limit
// is met or every candidate has been drawn. Attempts, including redraws, are
// bounded by maxCandidates.
func sampleSearch(ctx context.Context, space *candidateSpace, checker *candidateChecker, opts SearchOptions, maxCandidates int) (*SearchResult, error) {
	if space.overflow {
		return nil, fmt.Errorf("%w: candidate space overflows int64", ErrSearchSpaceTooLarge)
	}
	limit := opts.Limit
	if limit == 0 {
		if space.total > maxCandidates {
			return nil, fmt.Errorf("%w: unlimited sampling over %d candidates, ceiling %d", ErrSearchSpaceTooLarge, space.total, maxCandidates)
		}
		limit = space.total
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	sub := make([]int, len(space.dims))
	seen := make([]bool, checker.numTeams)
	candidate := make([]int, 0, space.size)
	drawn := make(map[int]struct{})
	lineups := make([][]int, 0)
	var attempts int64

	for len(lineups) < limit && len(drawn) < space.total {
		if attempts%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("lineup sampling interrupted after %d draws: %w", attempts, err)
			}
		}
		if attempts >= int64(maxCandidates) {
			return nil, fmt.Errorf("%w: %d sampling attempts found %d of %d lineups", ErrSearchSpaceTooLarge, attempts, len(lineups), limit)
		}
		attempts++

		idx := int(rng.Int63n(int64(space.total)))
		if _, ok := drawn[idx]; ok {
			continue
		}
		drawn[idx] = struct{}{}

		candidate = space.decode(candidate, sub, idx)
		if !checker.accept(candidate, seen) {
			continue
		}
		lineup := make([]int, len(candidate))
		copy(lineup, candidate)
		lineups = append(lineups, lineup)

		if opts.Progress != nil && len(lineups)%ctxCheckInterval == 0 {
			opts.Progress(SearchProgress{Accepted: len(lineups), Evaluated: attempts})
		}
	}

	return &SearchResult{Lineups: lineups, Evaluated: attempts}, nil
}
