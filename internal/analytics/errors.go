package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// 오류 분류 라벨 (risk_computation_errors_total{kind})
const (
	KindNotFound      = "not_found"
	KindInvalidInput  = "invalid_input"
	KindInvalidConfig = "invalid_configuration"
	KindDependency    = "dependency_failure"
	KindCanceled      = "canceled"
	KindInternal      = "internal"
)

// ErrorKind classifies an error for metrics and logs
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, contracts.ErrNotFound):
		return KindNotFound
	case errors.Is(err, contracts.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, contracts.ErrInvalidConfiguration):
		return KindInvalidConfig
	case errors.Is(err, contracts.ErrDependencyFailure):
		return KindDependency
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

// dependency wraps a collaborator failure as ErrDependencyFailure
// NotFound와 context 취소는 그대로 전달
func dependency(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, contracts.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%w: %s: %w", contracts.ErrDependencyFailure, what, err)
}
