package riskprofile

import (
	"fmt"
	"strings"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/risk"
)

// ValidationError 프로파일 검증 실패 (기동 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap errors.Is(err, contracts.ErrInvalidConfiguration) 지원
func (e ValidationError) Unwrap() error {
	return contracts.ErrInvalidConfiguration
}

// Validate checks required fields, scenario ranges and limit ranges
func Validate(p *Profile) error {
	if p.Meta.ProfileID == "" {
		return ValidationError{"meta.profile_id", "required"}
	}

	seen := make(map[string]bool, len(p.Scenarios))
	for i, s := range p.StressScenarios() {
		field := fmt.Sprintf("scenarios[%d]", i)
		if seen[s.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate scenario %q", s.Name)}
		}
		seen[s.Name] = true

		if err := risk.ValidateScenario(s); err != nil {
			return ValidationError{field, message(err)}
		}
	}

	if limits := p.Limits(); limits != nil {
		if limits.IsEmpty() {
			return ValidationError{"default_limits", "at least one limit is required"}
		}
		if err := risk.ValidateLimits(*limits); err != nil {
			return ValidationError{"default_limits", message(err)}
		}
	}

	return nil
}

// message strips the sentinel prefix from engine validation errors
func message(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{contracts.ErrInvalidInput, contracts.ErrInvalidConfiguration} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}
