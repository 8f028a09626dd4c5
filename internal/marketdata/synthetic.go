package marketdata

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

// 합성 데이터 파라미터
const (
	syntheticMinVol       = 0.10
	syntheticVolRange     = 0.50
	syntheticMinVolume    = 1e6
	syntheticVolumeRange  = 5e8
	syntheticMinCorr      = 0.05
	syntheticCorrRange    = 0.75
	syntheticRiskFreeRate = 0.035
	syntheticBenchmark    = 0.08
	syntheticMarketDrift  = 0.0003
	syntheticMarketVol    = 0.011
)

// SyntheticProvider generates plausible market statistics without network access
// 종목별 통계는 심볼 해시로 결정(호출마다 동일), 시장 수익률만 시드 RNG 사용
type SyntheticProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSyntheticProvider creates a provider; seed 0 = 시각 기반
func NewSyntheticProvider(seed int64) *SyntheticProvider {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SyntheticProvider{rng: rand.New(rand.NewSource(seed))}
}

// GetVolatility returns a stable pseudo-volatility per symbol
func (p *SyntheticProvider) GetVolatility(ctx context.Context, symbols []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vols := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		vols[s] = syntheticMinVol + unit(s)*syntheticVolRange
	}
	return vols, nil
}

// GetCorrelations returns a stable coefficient for every unordered pair
func (p *SyntheticProvider) GetCorrelations(ctx context.Context, symbols []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	corr := make(map[string]float64)
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			a, b := symbols[i], symbols[j]
			if b < a {
				a, b = b, a
			}
			corr[PairKey(symbols[i], symbols[j])] = syntheticMinCorr + unit(a+"|"+b)*syntheticCorrRange
		}
	}
	return corr, nil
}

// GetVolume returns a stable pseudo average daily volume per symbol
func (p *SyntheticProvider) GetVolume(ctx context.Context, symbols []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	volumes := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		volumes[s] = syntheticMinVolume + unit("adv:"+s)*syntheticVolumeRange
	}
	return volumes, nil
}

// GetRiskFreeRate returns a fixed annual rate
func (p *SyntheticProvider) GetRiskFreeRate(ctx context.Context) (float64, error) {
	return syntheticRiskFreeRate, ctx.Err()
}

// GetBenchmarkReturn returns a fixed annual benchmark return
func (p *SyntheticProvider) GetBenchmarkReturn(ctx context.Context) (float64, error) {
	return syntheticBenchmark, ctx.Err()
}

// GetMarketReturns draws normally distributed daily returns
func (p *SyntheticProvider) GetMarketReturns(ctx context.Context, days int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	returns := make([]float64, days)
	for i := range returns {
		returns[i] = syntheticMarketDrift + syntheticMarketVol*p.rng.NormFloat64()
	}
	return returns, nil
}

// unit maps a key to [0, 1)
func unit(key string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return float64(h.Sum64()>>11) / float64(1<<53)
}
