package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/mrot/internal/domain"
)

// DefaultSpecPath — файл оркестрации по умолчанию.
const DefaultSpecPath = "orchestration.yml"

// ErrEmptySpecFile — файл оркестрации пуст.
var ErrEmptySpecFile = errors.New("orchestration file is empty")

// LoadSpec читает файл оркестрации.
//
// Файл разбирается строго: неизвестные поля считаются ошибкой.
// Валидация графа выполняется позже (engine.Plan).
func LoadSpec(path string) (*domain.OrchestrationSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read orchestration file: %w", err)
	}

	spec, err := ParseSpec(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// ParseSpec разбирает YAML оркестрации.
func ParseSpec(r io.Reader) (*domain.OrchestrationSpec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var spec domain.OrchestrationSpec
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptySpecFile
		}
		return nil, fmt.Errorf("parse orchestration: %w", err)
	}

	return &spec, nil
}
