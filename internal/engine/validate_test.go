package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/mrot/internal/domain"
)

func TestValidate_Valid(t *testing.T) {
	spec := &domain.OrchestrationSpec{
		Name: "release",
		Steps: []domain.Step{
			step("libs"),
			{
				Name:       "api",
				Owner:      "acme",
				Repo:       "api",
				WorkflowID: "42",
				Args:       []string{"version=1.2.3", "dry_run="},
				DependsOn:  []string{"libs"},
			},
		},
	}

	if err := Validate(spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		spec  *domain.OrchestrationSpec
		want  error
		field string
	}{
		{
			name: "nil spec",
			spec: nil,
			want: ErrEmptySteps,
		},
		{
			name: "no steps",
			spec: &domain.OrchestrationSpec{Name: "empty"},
			want: ErrEmptySteps,
		},
		{
			name: "empty name",
			spec: &domain.OrchestrationSpec{Steps: []domain.Step{step(" ")}},
			want: ErrEmptyStepName,
		},
		{
			name: "duplicate name",
			spec: &domain.OrchestrationSpec{Steps: []domain.Step{step("A"), step("A")}},
			want: ErrDuplicateStep,
		},
		{
			name: "missing owner",
			spec: &domain.OrchestrationSpec{Steps: []domain.Step{
				{Name: "A", Repo: "r", WorkflowID: "w"},
			}},
			want:  ErrMissingField,
			field: "owner",
		},
		{
			name: "missing workflow id",
			spec: &domain.OrchestrationSpec{Steps: []domain.Step{
				{Name: "A", Owner: "o", Repo: "r"},
			}},
			want:  ErrMissingField,
			field: "workflow_id",
		},
		{
			name: "bad arg",
			spec: &domain.OrchestrationSpec{Steps: []domain.Step{
				{Name: "A", Owner: "o", Repo: "r", WorkflowID: "w", Args: []string{"--force"}},
			}},
			want:  ErrInvalidArg,
			field: "args",
		},
		{
			name: "self dependency",
			spec: &domain.OrchestrationSpec{Steps: []domain.Step{step("A", "A")}},
			want: ErrSelfDependency,
		},
		{
			name: "unknown dependency",
			spec: &domain.OrchestrationSpec{Steps: []domain.Step{step("A"), step("B", "C")}},
			want: ErrUnknownDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}

			if tt.field != "" {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected *ValidationError, got %T", err)
				}
				if vErr.Field != tt.field {
					t.Errorf("expected field %q, got %q", tt.field, vErr.Field)
				}
			}
		})
	}
}

func TestStepInputs(t *testing.T) {
	s := domain.Step{Args: []string{"version=1.2.3", "note=a=b"}}

	inputs := s.Inputs()
	if inputs["version"] != "1.2.3" {
		t.Errorf("expected version=1.2.3, got %q", inputs["version"])
	}
	if inputs["note"] != "a=b" {
		t.Errorf("value should keep everything after the first '=', got %q", inputs["note"])
	}
}
