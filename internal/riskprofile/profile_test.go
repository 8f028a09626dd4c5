package riskprofile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/internal/contracts"
)

const sampleProfile = `
meta:
  profile_id: kr_equity_default
  description: 국내 주식 기본 프로파일
scenarios:
  - name: KOSPI Crash
    market_change_pct: -25
    volatility_multiplier: 2.0
    correlation_shock: 0.3
    duration: 1 month
  - name: Won Depreciation
    market_change_pct: -12
    volatility_multiplier: 1.5
    correlation_shock: 0.1
default_limits:
  max_drawdown_pct: 20
  max_concentration_pct: 35
  min_sharpe: 0.5
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	require.NoError(t, err)

	assert.Equal(t, "kr_equity_default", p.Meta.ProfileID)

	scenarios := p.StressScenarios()
	require.Len(t, scenarios, 2)
	assert.Equal(t, "KOSPI Crash", scenarios[0].Name)
	assert.Equal(t, -25.0, scenarios[0].MarketChange)
	assert.Equal(t, "1 month", scenarios[0].Duration)

	limits := p.Limits()
	require.NotNil(t, limits)
	require.NotNil(t, limits.MaxDrawdown)
	assert.Equal(t, 20.0, *limits.MaxDrawdown)
	assert.Equal(t, 35.0, *limits.MaxConcentration)
	assert.Nil(t, limits.MaxVaR)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{
			name:  "missing profile id",
			yaml:  "meta: {}\n",
			field: "meta.profile_id",
		},
		{
			name: "bad volatility multiplier",
			yaml: `meta: {profile_id: p}
scenarios:
  - {name: x, market_change_pct: -10, volatility_multiplier: 0}
`,
			field: "scenarios[0]",
		},
		{
			name: "duplicate scenario",
			yaml: `meta: {profile_id: p}
scenarios:
  - {name: x, market_change_pct: -10, volatility_multiplier: 1}
  - {name: x, market_change_pct: -20, volatility_multiplier: 1}
`,
			field: "scenarios[1].name",
		},
		{
			name: "limit out of range",
			yaml: `meta: {profile_id: p}
default_limits: {max_drawdown_pct: 150}
`,
			field: "default_limits",
		},
		{
			name:  "empty limits",
			yaml:  "meta: {profile_id: p}\ndefault_limits: {}\n",
			field: "default_limits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)
			assert.NotContains(t, verr.Message, "invalid")
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("meta: {profile_id: p}\nscenarioz: []\n"))
	assert.ErrorContains(t, err, "scenarioz")
}

func TestNoScenariosMeansDefaults(t *testing.T) {
	p, err := Parse([]byte("meta: {profile_id: p}\n"))
	require.NoError(t, err)
	assert.Nil(t, p.StressScenarios())
	assert.Nil(t, p.Limits())
}

func TestLoadAndHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleProfile), 0o600))

	p, data, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sampleProfile, string(data))

	hash, err := Hash(p)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	again, err := Parse(data)
	require.NoError(t, err)
	hash2, err := Hash(again)
	require.NoError(t, err)
	assert.Equal(t, hash, hash2)

	snap, err := NewSnapshot(p, data)
	require.NoError(t, err)
	assert.Equal(t, "kr_equity_default", snap.ProfileID)
	assert.Equal(t, hash, snap.Hash)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
