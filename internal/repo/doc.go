// Package repo хранит историю отчётов оркестрации в Postgres (pgx).
//
// История опциональна: без DB_URL отчёты только печатаются.
package repo
