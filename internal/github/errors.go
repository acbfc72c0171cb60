package github

import (
	"errors"
	"fmt"
)

// Ошибки клиента GitHub API.
var (
	// ErrRequest — запрос не дошёл до API (сеть, таймаут, DNS).
	ErrRequest = errors.New("github request failed")

	// ErrRejected — API ответил неожиданным HTTP-статусом.
	ErrRejected = errors.New("github rejected request")

	// ErrDecode — тело ответа не удалось разобрать.
	ErrDecode = errors.New("github response decode failed")
)

// APIError — ответ GitHub с неожиданным статусом.
type APIError struct {
	StatusCode int    // HTTP-код ответа
	Message    string // поле message из тела ответа или само тело
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("github api: HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap возвращает ErrRejected.
func (e *APIError) Unwrap() error {
	return ErrRejected
}
