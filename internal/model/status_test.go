package model

import "testing"

func TestStatus_IsActive(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusQueued, true},
		{StatusRunning, true},
		{StatusPaused, true},
		{StatusCanceled, false},
		{StatusFailed, false},
		{StatusCompleted, false},
	}

	for _, test := range tests {
		result := test.status.IsActive()
		if result != test.expected {
			t.Errorf("Status(%s).IsActive() = %v, expected %v", test.status, result, test.expected)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusPaused, false},
		{StatusCanceled, true},
		{StatusFailed, true},
		{StatusCompleted, true},
	}

	for _, test := range tests {
		result := test.status.IsTerminal()
		if result != test.expected {
			t.Errorf("Status(%s).IsTerminal() = %v, expected %v", test.status, result, test.expected)
		}
	}
}

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from     Status
		to       Status
		expected bool
	}{
		{StatusQueued, StatusRunning, true},
		{StatusQueued, StatusCanceled, true},
		{StatusQueued, StatusPaused, false},
		{StatusQueued, StatusCompleted, false},
		{StatusRunning, StatusPaused, true},
		{StatusRunning, StatusCanceled, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusQueued, false},
		{StatusPaused, StatusRunning, true},
		{StatusPaused, StatusCanceled, true},
		{StatusPaused, StatusCompleted, false},
		{StatusCanceled, StatusRunning, false},
		{StatusCanceled, StatusCanceled, false},
		{StatusFailed, StatusRunning, false},
		{StatusCompleted, StatusCanceled, false},
	}

	for _, test := range tests {
		result := test.from.CanTransition(test.to)
		if result != test.expected {
			t.Errorf("CanTransition(%s -> %s) = %v, expected %v", test.from, test.to, result, test.expected)
		}
	}
}

func TestStatus_String(t *testing.T) {
	status := StatusRunning
	expected := "Running"
	result := status.String()

	if result != expected {
		t.Errorf("Status.String() = %s, expected %s", result, expected)
	}
}

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"Queued", "Running", "Paused", "Canceled", "Failed", "Completed"} {
		status, err := ParseStatus(valid)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned error: %v", valid, err)
		}
		if status.String() != valid {
			t.Errorf("ParseStatus(%q) = %s, expected %s", valid, status, valid)
		}
	}

	if _, err := ParseStatus("Downloading"); err == nil {
		t.Error("Expected error for unknown status, got nil")
	}
}
