package validation

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/ylai/autoplatform/errors"
)

type node struct {
	ID       string `json:"id" validate:"required,node_id"`
	Script   string `json:"script" validate:"required"`
	Category string `json:"category" validate:"omitempty,oneof=spider ai process data"`
}

type document struct {
	Nodes []node `json:"nodes" validate:"required,min=1,dive"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name   string
		doc    document
		fields []string
	}{
		{"valid", document{Nodes: []node{{ID: "n1", Script: "crawl.py", Category: "ai"}}}, nil},
		{"empty nodes", document{}, []string{"nodes"}},
		{"missing script", document{Nodes: []node{{ID: "n1"}}}, []string{"nodes[0].script"}},
		{"bad category and id", document{Nodes: []node{{ID: "bad id!", Script: "x", Category: "video"}}},
			[]string{"nodes[0].id", "nodes[0].category"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.doc)
			if tc.fields == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			appErr, ok := errors.AsAppError(err)
			if !ok {
				t.Fatalf("expected *AppError, got %T", err)
			}
			if appErr.Code != errors.ErrCodeInvalidInput {
				t.Errorf("code = %s", appErr.Code)
			}
			fields, _ := appErr.Details["fields"].([]FieldError)
			if len(fields) != len(tc.fields) {
				t.Fatalf("fields = %+v, want %v", fields, tc.fields)
			}
			for i, want := range tc.fields {
				if fields[i].Field != want {
					t.Errorf("field %d = %q, want %q", i, fields[i].Field, want)
				}
			}
		})
	}
}

func TestVar(t *testing.T) {
	if err := Var("engine", "ws", "oneof=ws simple"); err != nil {
		t.Errorf("ws should be accepted: %v", err)
	}
	err := Var("engine", "grpc", "oneof=ws simple")
	if err == nil || !strings.Contains(err.Error(), "engine: must be one of: ws simple") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestValidatorChecks(t *testing.T) {
	v := New().
		Required("script", " ").
		MaxLength("title", "abcdef", 3).
		Range("max_concurrency", 0, 1, 64).
		OneOf("engine", "grpc", "ws", "simple").
		OneOf("category", "", "spider").
		NodeID("id", "ok-1").
		Unique("ids", []string{"a", "b", "a"})

	got := v.Errors()
	want := []string{"script", "title", "max_concurrency", "engine", "ids"}
	if len(got) != len(want) {
		t.Fatalf("errors = %+v", got)
	}
	for i := range want {
		if got[i].Field != want[i] {
			t.Errorf("error %d field = %q, want %q", i, got[i].Field, want[i])
		}
	}

	err := v.Validate()
	if !stderrors.Is(err, errors.Validation("")) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestValidatorNoErrors(t *testing.T) {
	if err := New().Required("name", "x").Validate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{"DependsOn": "depends_on", "ID": "i_d", "script": "script"}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
