package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestFastPathNoTelemetry(t *testing.T) {
	t.Parallel()

	// Ensure no telemetry is attached
	SetTelemetryReporter(nil)

	// Create an error - should use fast path
	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.GetComponent() != "unknown" {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestBuilderSetsExplicitFields(t *testing.T) {
	t.Parallel()

	ee := Newf("detector returned status %d", 503).
		Component("detector").
		Category(CategoryImageDetection).
		Context("status_code", 503).
		Build()

	if ee.GetComponent() != "detector" {
		t.Errorf("Expected component 'detector', got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryImageDetection {
		t.Errorf("Expected category 'image-detection', got '%s'", ee.Category)
	}
	if got := ee.GetContext()["status_code"]; got != 503 {
		t.Errorf("Expected status_code context 503, got %v", got)
	}
}

func TestIsCategoryMatching(t *testing.T) {
	t.Parallel()

	inner := NewStd("query blocked")
	ee := New(inner).Category(CategoryValidation).Build()
	wrapped := fmt.Errorf("validate stage: %w", ee)

	if !IsCategory(wrapped, CategoryValidation) {
		t.Error("Expected wrapped error to match CategoryValidation")
	}
	if IsCategory(wrapped, CategoryDatabase) {
		t.Error("Did not expect wrapped error to match CategoryDatabase")
	}
	if !Is(wrapped, inner) {
		t.Error("Expected errors.Is to find the inner error through the wrap chain")
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		category  ErrorCategory
		retryable bool
	}{
		{CategoryImageDetection, true},
		{CategoryGeneration, true},
		{CategoryQueryExecution, true},
		{CategoryDatabase, true},
		{CategoryTimeout, true},
		{CategoryValidation, false},
		{CategoryWorkflow, false},
		{CategoryConfiguration, false},
	}

	for _, tc := range cases {
		ee := New(NewStd("boom")).Category(tc.category).Build()
		if got := IsRetryable(ee); got != tc.retryable {
			t.Errorf("IsRetryable(%s) = %v, want %v", tc.category, got, tc.retryable)
		}
	}

	if IsRetryable(NewStd("plain error")) {
		t.Error("Plain errors should never be retryable")
	}
}

func TestNotFoundHelper(t *testing.T) {
	t.Parallel()

	ee := NotFoundError("assessment", "a1b2c3")
	if !IsNotFound(ee) {
		t.Error("Expected NotFoundError to satisfy IsNotFound")
	}
	if !strings.Contains(ee.Error(), "assessment not found") {
		t.Errorf("Unexpected message: %s", ee.Error())
	}
}

func TestBasicScrub(t *testing.T) {
	t.Parallel()

	// URL query parameters
	testMessage1 := "Error at https://api.example.com?api_key=secret123&token=abc"
	scrubbed1 := basicScrub(testMessage1)
	expected1 := "Error at https://api.example.com?[REDACTED]"
	if scrubbed1 != expected1 {
		t.Errorf("URL scrubbing failed. Expected: %s, got: %s", expected1, scrubbed1)
	}

	// API keys in non-URL context
	testMessage2 := "Config error: api_key=secret123 is invalid"
	scrubbed2 := basicScrub(testMessage2)
	if !strings.Contains(scrubbed2, "[API_KEY_REDACTED]") {
		t.Errorf("API key scrubbing failed. Expected to contain '[API_KEY_REDACTED]', got: %s", scrubbed2)
	}

	// DSN credentials
	testMessage3 := "dial failed for paveuser:hunter2@tcp(localhost:3306)/pavewatch"
	scrubbed3 := basicScrub(testMessage3)
	if strings.Contains(scrubbed3, "hunter2") {
		t.Errorf("DSN scrubbing failed. Credentials still present: %s", scrubbed3)
	}
}
