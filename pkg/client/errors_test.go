package client

import (
	"errors"
	"fmt"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{
			name:       "client error should not retry",
			errorClass: ErrorClassClient,
			expected:   false,
		},
		{
			name:       "server error should retry",
			errorClass: ErrorClassServer,
			expected:   true,
		},
		{
			name:       "rate limit should retry",
			errorClass: ErrorClassRateLimit,
			expected:   true,
		},
		{
			name:       "network error should retry",
			errorClass: ErrorClassNetwork,
			expected:   true,
		},
		{
			name:       "empty error class should not retry",
			errorClass: "",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shouldRetry(tt.errorClass)
			if result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestRemoteError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *RemoteError
		expected string
	}{
		{
			name: "single descriptor",
			err: &RemoteError{
				URL:        "https://api.test/api/v2/song/x",
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Errors:     []ErrorDetail{{Code: 404, Message: "Song not found"}},
			},
			expected: "soundcharts client error (status 404) from https://api.test/api/v2/song/x: Song not found",
		},
		{
			name: "several descriptors",
			err: &RemoteError{
				URL:        "https://api.test/a",
				StatusCode: 400,
				ErrorClass: ErrorClassClient,
				Errors: []ErrorDetail{
					{Code: 400, Message: "Invalid startDate"},
					{Code: 400, Message: "Invalid endDate"},
				},
			},
			expected: "soundcharts client error (status 400) from https://api.test/a: Invalid startDate; Invalid endDate",
		},
		{
			name: "no descriptors",
			err: &RemoteError{
				URL:        "https://api.test/a",
				StatusCode: 502,
				ErrorClass: ErrorClassServer,
				Errors:     []ErrorDetail{},
			},
			expected: "soundcharts server error (status 502) from https://api.test/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsNoSocialAccount(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil",
			err:      nil,
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("no social account"),
			expected: false,
		},
		{
			name: "remote no social account",
			err: &RemoteError{StatusCode: 404, Errors: []ErrorDetail{
				{Code: 404, Message: "No social account found for this artist on instagram"},
			}},
			expected: true,
		},
		{
			name: "remote social account not found",
			err: &RemoteError{StatusCode: 404, Errors: []ErrorDetail{
				{Code: 404, Message: "Social account for platform tiktok not found"},
			}},
			expected: true,
		},
		{
			name: "wrapped remote",
			err: fmt.Errorf("fetch window: %w", &RemoteError{StatusCode: 404, Errors: []ErrorDetail{
				{Message: "no social account"},
			}}),
			expected: true,
		},
		{
			name: "other remote error",
			err: &RemoteError{StatusCode: 404, Errors: []ErrorDetail{
				{Code: 404, Message: "Artist not found"},
			}},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNoSocialAccount(tt.err); got != tt.expected {
				t.Errorf("IsNoSocialAccount() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAsAbsence(t *testing.T) {
	remote := &RemoteError{StatusCode: 404, Errors: []ErrorDetail{{Message: "No social account"}}}

	err := AsAbsence(remote)
	if !errors.Is(err, ErrNoSocialAccount) {
		t.Fatalf("AsAbsence() = %v, want ErrNoSocialAccount", err)
	}

	var absent *NoSocialAccountError
	if !errors.As(err, &absent) {
		t.Fatal("expected *NoSocialAccountError")
	}
	if absent.Remote != remote {
		t.Error("NoSocialAccountError should keep the original RemoteError")
	}
	if !IsRemote(err) {
		t.Error("NoSocialAccountError should unwrap to the RemoteError")
	}

	if again := AsAbsence(err); again != err {
		t.Error("AsAbsence should be idempotent")
	}

	other := &RemoteError{StatusCode: 500, Errors: []ErrorDetail{}}
	if got := AsAbsence(other); got != error(other) {
		t.Errorf("AsAbsence(other) = %v, want unchanged", got)
	}
}
