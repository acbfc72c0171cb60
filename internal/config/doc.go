// Package config загружает конфигурацию mrot.
//
//   - config.go — переменные окружения (caarlos0/env)
//   - spec.go — файл оркестрации orchestration.yml (yaml.v3)
package config
