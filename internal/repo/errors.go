package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrNoDatabase — DB_URL не задан, история отчётов отключена.
	ErrNoDatabase = errors.New("database is not configured (DB_URL)")
)
