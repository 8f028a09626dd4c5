package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// maxBodyBytes 요청 본문 최대 크기
const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// StatusFor maps a service error to an HTTP status
// NotFound→404, InvalidInput/InvalidConfiguration→400, DependencyFailure→502
func StatusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrInvalidInput), errors.Is(err, contracts.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrDependencyFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes the mapped status with a client-safe message
func respondServiceError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	respondError(w, status, clientMessage(status, err))
}

// clientMessage 클라이언트에 보낼 오류 메시지
// 4xx는 원문, 5xx는 내부/의존성 정보를 숨기고 상태 문구만
func clientMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}

// decodeJSON reads an optional JSON body into dest
// 본문이 비어 있으면 (false, nil)
func decodeJSON(r *http.Request, dest interface{}) (bool, error) {
	if r.Body == nil {
		return false, nil
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("%w: invalid request body: %v", contracts.ErrInvalidInput, err)
	}
	return true, nil
}
