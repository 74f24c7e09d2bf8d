package download

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err      error
		expected ErrorKind
	}{
		{nil, KindUnknown},
		{NewTaskError(KindNetwork, "fetch", errors.New("timeout")), KindNetwork},
		{NewTaskError(KindExtraction, "probe", errors.New("no formats")), KindExtraction},
		{NewTaskError(KindFilesystem, "fetch", errors.New("disk full")), KindFilesystem},
		{fmt.Errorf("attempt 2: %w", NewTaskError(KindNetwork, "fetch", errors.New("reset"))), KindNetwork},
		{context.Canceled, KindCanceled},
		{fmt.Errorf("run: %w", context.Canceled), KindCanceled},
		{errors.New("something else"), KindUnknown},
	}

	for _, test := range tests {
		result := Classify(test.err)
		if result != test.expected {
			t.Errorf("Classify(%v) = %s, expected %s", test.err, result, test.expected)
		}
	}
}

func TestTaskErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTaskError(KindNetwork, "fetch", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected TaskError to unwrap to its cause")
	}

	var te *TaskError
	if !errors.As(err, &te) {
		t.Fatal("Expected errors.As to find TaskError")
	}
	if te.Kind != KindNetwork {
		t.Errorf("Expected KindNetwork, got %s", te.Kind)
	}
}
