package risk

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// simulationsPerChunk 청크당 시뮬레이션 수
// 청크 분할이 워커 수와 무관해야 같은 시드에서 같은 결과가 나온다
const simulationsPerChunk = 256

// MonteCarloSimulator Monte Carlo 시뮬레이터
// ⭐ SSOT: 난수원은 주입 (테스트에서는 고정 시드)
type MonteCarloSimulator struct {
	config MonteCarloConfig
	mu     sync.Mutex
	rng    *rand.Rand
}

// NewMonteCarloSimulator 새 시뮬레이터 생성
// src가 nil이면 config.Seed로, Seed가 0이면 현재 시각으로 시드
func NewMonteCarloSimulator(config MonteCarloConfig, src rand.Source) *MonteCarloSimulator {
	if src == nil {
		seed := config.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		src = rand.NewSource(seed)
	}
	if config.Horizon == "" {
		config.Horizon = Horizon1M
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}

	return &MonteCarloSimulator{
		config: config,
		rng:    rand.New(src),
	}
}

// Config returns the effective configuration
func (mc *MonteCarloSimulator) Config() MonteCarloConfig {
	return mc.config
}

// Simulate 포트폴리오 가치 경로 시뮬레이션
// startValue: 현재 평가금액
// historicalReturns: 일별 수익률 (평균/표준편차 추정용)
func (mc *MonteCarloSimulator) Simulate(ctx context.Context, startValue float64, historicalReturns []float64) (*MonteCarloResult, error) {
	if err := mc.validate(startValue, historicalReturns); err != nil {
		return nil, err
	}

	n := mc.config.NumSimulations
	days := mc.config.Horizon.Days()
	mean := Mean(historicalReturns)
	std := PopStdDev(historicalReturns)

	// 청크 시드는 고루틴 시작 전에 순서대로 뽑는다
	numChunks := (n + simulationsPerChunk - 1) / simulationsPerChunk
	seeds := mc.chunkSeeds(numChunks)

	finals := make([]float64, n)
	samples := mc.config.SamplePaths
	if samples > n {
		samples = n
	}
	paths := make([][]float64, samples)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mc.config.Workers)

	for c := 0; c < numChunks; c++ {
		c := c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			r := rand.New(rand.NewSource(seeds[c]))
			from := c * simulationsPerChunk
			to := min(from+simulationsPerChunk, n)

			for i := from; i < to; i++ {
				var path []float64
				if i < samples {
					path = make([]float64, 0, days+1)
					path = append(path, startValue)
				}

				value := startValue
				for d := 0; d < days; d++ {
					value *= 1 + mean + std*boxMuller(r)
					// 평가금액은 음수가 될 수 없음
					if value < 0 {
						value = 0
					}
					if path != nil {
						path = append(path, value)
					}
				}

				finals[i] = value
				if path != nil {
					paths[i] = path
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("monte carlo simulation: %w", err)
	}

	return mc.calculateResult(startValue, days, historicalReturns, mean, std, finals, paths), nil
}

// calculateResult 시뮬레이션 결과 통계 계산
func (mc *MonteCarloSimulator) calculateResult(
	startValue float64,
	days int,
	historical []float64,
	mean, std float64,
	finals []float64,
	paths [][]float64,
) *MonteCarloResult {
	sorted := make([]float64, len(finals))
	copy(sorted, finals)
	sort.Float64s(sorted)

	percentiles := make(map[int]float64, len(DefaultPercentiles))
	for _, p := range DefaultPercentiles {
		percentiles[p] = PercentileAt(sorted, p)
	}

	losses := 0
	for _, v := range sorted {
		if v < startValue {
			losses++
		}
	}

	return &MonteCarloResult{
		RunID:             uuid.New().String(),
		Config:            mc.config,
		StartValue:        startValue,
		Days:              days,
		InputSampleCount:  len(historical),
		MeanReturn:        mean,
		StdDev:            std,
		Percentiles:       percentiles,
		ProbabilityOfLoss: float64(losses) / float64(len(sorted)),
		ExpectedValue:     Mean(sorted),
		BestCase:          sorted[len(sorted)-1],
		WorstCase:         sorted[0],
		MostLikely:        sorted[len(sorted)/2],
		VaR95:             math.Max(0, startValue-percentiles[5]),
		SamplePaths:       paths,
		CreatedAt:         time.Now(),
	}
}

func (mc *MonteCarloSimulator) chunkSeeds(numChunks int) []int64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	seeds := make([]int64, numChunks)
	for i := range seeds {
		seeds[i] = mc.rng.Int63()
	}
	return seeds
}

func (mc *MonteCarloSimulator) validate(startValue float64, historical []float64) error {
	if mc.config.NumSimulations < 1 || mc.config.NumSimulations > MaxSimulations {
		return fmt.Errorf("%w: num simulations must be in [1, %d], got %d",
			ErrInvalidInput, MaxSimulations, mc.config.NumSimulations)
	}
	if mc.config.SamplePaths < 0 {
		return fmt.Errorf("%w: sample paths must be >= 0", ErrInvalidInput)
	}
	if _, err := ParseTimeHorizon(string(mc.config.Horizon)); err != nil {
		return err
	}
	if !(startValue > 0) || !isFinite(startValue) {
		return fmt.Errorf("%w: portfolio value must be positive, got %v", ErrInvalidInput, startValue)
	}
	return validateReturns(historical)
}

// boxMuller 균등분포 두 개로 표준정규 표본 하나 생성
func boxMuller(r *rand.Rand) float64 {
	u1 := 1 - r.Float64() // (0, 1]
	u2 := r.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
