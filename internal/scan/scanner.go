package scan

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MJE43/pf-slots/internal/engine"
	"github.com/MJE43/pf-slots/internal/games"
)

// TargetOp represents comparison operations for scanning
type TargetOp string

const (
	OpEqual        TargetOp = "eq"
	OpGreater      TargetOp = "gt"
	OpGreaterEqual TargetOp = "ge"
	OpLess         TargetOp = "lt"
	OpLessEqual    TargetOp = "le"
	OpBetween      TargetOp = "between"
	OpOutside      TargetOp = "outside"
)

// Valid reports whether op is a known operator.
func (op TargetOp) Valid() bool {
	switch op {
	case OpEqual, OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpBetween, OpOutside:
		return true
	}
	return false
}

// ScanRequest describes a replay over a nonce range under one seed pair.
type ScanRequest struct {
	Game       string         `json:"game"`
	Seeds      games.Seeds    `json:"seeds"`
	NonceStart uint64         `json:"nonce_start"`
	NonceEnd   uint64         `json:"nonce_end"`
	Stride     uint64         `json:"stride,omitempty"` // defaults to the game's draws per round
	Params     map[string]any `json:"params"`
	TargetOp   TargetOp       `json:"target_op"`
	TargetVal  float64        `json:"target_val"`
	TargetVal2 float64        `json:"target_val2,omitempty"` // for "between" and "outside"
	Tolerance  float64        `json:"tolerance"`
	Limit      int            `json:"limit,omitempty"`
	TimeoutMs  int            `json:"timeout_ms,omitempty"`
}

// Hit represents a single matching result
type Hit struct {
	Nonce  uint64  `json:"nonce"`
	Metric float64 `json:"metric"`
}

// Summary contains aggregate statistics. Min/Max/Mean cover the hits; the
// wager totals and RTP cover every evaluated round.
type Summary struct {
	TotalEvaluated uint64  `json:"total_evaluated"`
	HitsFound      int     `json:"hits_found"`
	MinMetric      float64 `json:"min_metric"`
	MaxMetric      float64 `json:"max_metric"`
	MeanMetric     float64 `json:"mean_metric"`
	TotalBet       float64 `json:"total_bet,omitempty"`
	TotalWon       float64 `json:"total_won,omitempty"`
	RTP            float64 `json:"rtp"`
	TimedOut       bool    `json:"timed_out,omitempty"`
}

// ScanResult contains the complete scan results
type ScanResult struct {
	Hits          []Hit       `json:"hits"`
	Summary       Summary     `json:"summary"`
	EngineVersion string      `json:"engine_version"`
	Echo          ScanRequest `json:"echo"`
}

// ScanJob is a batch of rounds: NonceStart, NonceStart+stride, ... <= NonceEnd.
type ScanJob struct {
	NonceStart uint64
	NonceEnd   uint64
}

// tally accumulates the metric over every evaluated round.
type tally struct {
	mu  sync.Mutex
	sum float64
}

func (t *tally) add(v float64) {
	t.mu.Lock()
	t.sum += v
	t.mu.Unlock()
}

// ScanWorker processes scan jobs and sends hits to result channel
type ScanWorker struct {
	id        int
	jobs      <-chan ScanJob
	hits      chan<- Hit
	game      games.Game
	seeds     games.Seeds
	params    map[string]any
	stride    uint64
	stream    engine.Stream
	evaluator *TargetEvaluator
	floatPool *sync.Pool
	evaluated *uint64
	metrics   *tally
}

// Scanner performs parallel scanning across nonce ranges
type Scanner struct {
	registry    *games.Registry
	stream      engine.Stream
	workerCount int
	floatPool   *sync.Pool
	version     string
}

// TargetEvaluator handles target condition evaluation with tolerance
type TargetEvaluator struct {
	op        TargetOp
	val1      float64
	val2      float64 // for "between" and "outside"
	tolerance float64
}

// NewTargetEvaluator creates a new target evaluator
func NewTargetEvaluator(op TargetOp, val1, val2, tolerance float64) *TargetEvaluator {
	return &TargetEvaluator{
		op:        op,
		val1:      val1,
		val2:      val2,
		tolerance: tolerance,
	}
}

// Matches checks if a metric matches the target criteria
func (te *TargetEvaluator) Matches(metric float64) bool {
	switch te.op {
	case OpEqual:
		return abs(metric-te.val1) <= te.tolerance
	case OpGreater:
		return metric > te.val1+te.tolerance
	case OpGreaterEqual:
		return metric >= te.val1-te.tolerance
	case OpLess:
		return metric < te.val1-te.tolerance
	case OpLessEqual:
		return metric <= te.val1+te.tolerance
	case OpBetween:
		return metric >= te.val1-te.tolerance && metric <= te.val2+te.tolerance
	case OpOutside:
		return metric < te.val1-te.tolerance || metric > te.val2+te.tolerance
	default:
		return false
	}
}

// NewScanner creates a scanner over registry using one worker per CPU. Draws
// are taken from stream, which must match the hasher the games were built with.
func NewScanner(registry *games.Registry, stream engine.Stream, version string) *Scanner {
	floatPool := &sync.Pool{
		New: func() interface{} {
			return make([]float64, 0, 16)
		},
	}

	return &Scanner{
		registry:    registry,
		stream:      stream,
		workerCount: runtime.GOMAXPROCS(0),
		floatPool:   floatPool,
		version:     version,
	}
}

// Validate checks req against the registry without running it.
func (s *Scanner) Validate(req ScanRequest) (games.Game, error) {
	game, exists := s.registry.Get(req.Game)
	if !exists {
		return nil, ErrGameNotFound
	}
	if req.NonceEnd < req.NonceStart {
		return nil, fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, req.NonceEnd, req.NonceStart)
	}
	if !req.TargetOp.Valid() {
		return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidTarget, req.TargetOp)
	}
	if (req.TargetOp == OpBetween || req.TargetOp == OpOutside) && req.TargetVal2 < req.TargetVal {
		return nil, fmt.Errorf("%w: target_val2 below target_val", ErrInvalidTarget)
	}
	if w, ok := game.(games.Wagered); ok {
		if _, err := w.BetAmount(req.Params); err != nil {
			return nil, err
		}
	}
	return game, nil
}

// Scan evaluates every round in the request range in parallel.
func (s *Scanner) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	game, err := s.Validate(req)
	if err != nil {
		return nil, err
	}

	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	stride := req.Stride
	if stride == 0 {
		stride = uint64(game.FloatCount(req.Params))
	}
	if stride == 0 {
		stride = 1
	}

	tolerance := req.Tolerance
	if tolerance == 0 {
		tolerance = 1e-9
	}

	evaluator := NewTargetEvaluator(req.TargetOp, req.TargetVal, req.TargetVal2, tolerance)

	jobs := make(chan ScanJob, s.workerCount*2)
	hits := make(chan Hit, 1000)

	var totalEvaluated uint64
	metrics := &tally{}
	var wg sync.WaitGroup

	for i := 0; i < s.workerCount; i++ {
		worker := &ScanWorker{
			id:        i,
			jobs:      jobs,
			hits:      hits,
			game:      game,
			seeds:     req.Seeds,
			params:    req.Params,
			stride:    stride,
			stream:    s.stream,
			evaluator: evaluator,
			floatPool: s.floatPool,
			evaluated: &totalEvaluated,
			metrics:   metrics,
		}

		wg.Add(1)
		go worker.Run(ctx, &wg)
	}

	go s.generateJobs(ctx, jobs, req.NonceStart, req.NonceEnd, stride)

	collector := &ResultCollector{
		hits:      hits,
		limit:     req.Limit,
		evaluated: &totalEvaluated,
	}
	result := collector.Collect(ctx, &wg)

	evaluated := result.Summary.TotalEvaluated
	if evaluated > 0 {
		metrics.mu.Lock()
		sum := metrics.sum
		metrics.mu.Unlock()
		result.Summary.RTP = sum / float64(evaluated)
		if w, ok := game.(games.Wagered); ok {
			bet, _ := w.BetAmount(req.Params)
			result.Summary.TotalBet = bet * float64(evaluated)
			result.Summary.TotalWon = bet * sum
		}
	}

	result.EngineVersion = s.version
	result.Echo = req
	return result, nil
}

// Run starts the worker processing jobs
func (sw *ScanWorker) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	floatsNeeded := sw.game.FloatCount(sw.params)

	for {
		select {
		case job, ok := <-sw.jobs:
			if !ok {
				return
			}
			sw.processJob(ctx, job, floatsNeeded)
		case <-ctx.Done():
			return
		}
	}
}

func (sw *ScanWorker) processJob(ctx context.Context, job ScanJob, floatsNeeded int) {
	floats := sw.floatPool.Get().([]float64)
	defer func() {
		sw.floatPool.Put(floats[:0])
	}()

	pair := engine.SeedPair{ServerSeed: sw.seeds.Server, ClientSeed: sw.seeds.Client}
	var local float64
	defer func() { sw.metrics.add(local) }()

	for nonce := job.NonceStart; nonce <= job.NonceEnd; nonce += sw.stride {
		select {
		case <-ctx.Done():
			return
		default:
		}

		floats = sw.stream.DrawsInto(floats, pair.WithNonce(nonce), floatsNeeded)

		result, err := sw.game.EvaluateWithFloats(floats, sw.params)
		if err != nil {
			continue
		}

		atomic.AddUint64(sw.evaluated, 1)
		local += result.Metric

		if sw.evaluator.Matches(result.Metric) {
			select {
			case sw.hits <- Hit{Nonce: nonce, Metric: result.Metric}:
			case <-ctx.Done():
				return
			default:
				// Collector is behind; keep evaluating rather than block.
			}
		}

		if job.NonceEnd-nonce < sw.stride {
			break
		}
	}
}

// generateJobs splits [start, end] into batches aligned to stride.
func (s *Scanner) generateJobs(ctx context.Context, jobs chan<- ScanJob, start, end, stride uint64) {
	defer close(jobs)

	const roundsPerBatch = 4096
	span := roundsPerBatch * stride

	for current := start; current <= end; {
		batchEnd := current + span - 1
		if batchEnd > end || batchEnd < current {
			batchEnd = end
		}

		select {
		case jobs <- ScanJob{NonceStart: current, NonceEnd: batchEnd}:
		case <-ctx.Done():
			return
		}

		if batchEnd == end {
			return
		}
		current = batchEnd + 1
	}
}

// ResultCollector aggregates scan results and computes summary statistics
type ResultCollector struct {
	hits      <-chan Hit
	limit     int
	evaluated *uint64
}

func (rc *ResultCollector) add(collected []Hit, hit Hit) []Hit {
	if rc.limit > 0 && len(collected) >= rc.limit {
		return collected
	}
	return append(collected, hit)
}

// Collect gathers hits until the workers finish or ctx ends.
func (rc *ResultCollector) Collect(ctx context.Context, wg *sync.WaitGroup) *ScanResult {
	initialCap := 1000
	if rc.limit > 0 && rc.limit < initialCap {
		initialCap = rc.limit
	}
	collected := make([]Hit, 0, initialCap)
	var timedOut bool

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

loop:
	for {
		select {
		case hit := <-rc.hits:
			collected = rc.add(collected, hit)
		case <-ctx.Done():
			timedOut = true
			break loop
		case <-done:
			for {
				select {
				case hit := <-rc.hits:
					collected = rc.add(collected, hit)
				default:
					break loop
				}
			}
		}
	}

	metrics := make([]float64, len(collected))
	for i, h := range collected {
		metrics[i] = h.Metric
	}

	return &ScanResult{
		Hits:    collected,
		Summary: rc.calculateSummary(metrics, atomic.LoadUint64(rc.evaluated), timedOut),
	}
}

func (rc *ResultCollector) calculateSummary(metrics []float64, totalEvaluated uint64, timedOut bool) Summary {
	summary := Summary{
		TotalEvaluated: totalEvaluated,
		HitsFound:      len(metrics),
		TimedOut:       timedOut,
	}
	if len(metrics) == 0 {
		return summary
	}

	min, max, sum := metrics[0], metrics[0], 0.0
	for _, m := range metrics {
		if m < min {
			min = m
		}
		if m > max {
			max = m
		}
		sum += m
	}
	summary.MinMetric = min
	summary.MaxMetric = max
	summary.MeanMetric = sum / float64(len(metrics))
	return summary
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
