package handlers

import (
	"net/http"
	"testing"

	"github.com/HammerMeetNail/nearby/internal/services"
)

func TestStatusForCode(t *testing.T) {
	tests := map[string]int{
		services.CodeInvalidInput:        http.StatusBadRequest,
		services.CodeSelfTarget:          http.StatusBadRequest,
		services.CodeNotFound:            http.StatusNotFound,
		services.CodeForbidden:           http.StatusForbidden,
		services.CodeBlocked:             http.StatusForbidden,
		services.CodeDuplicateActive:     http.StatusConflict,
		services.CodeAlreadyResolved:     http.StatusConflict,
		services.CodeConflict:            http.StatusConflict,
		services.CodeExpired:             http.StatusGone,
		services.CodeLocationUnavailable: http.StatusUnprocessableEntity,
		services.CodeInternal:            http.StatusInternalServerError,
		"":                               http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := statusForCode(code); got != want {
			t.Errorf("statusForCode(%q) = %d, want %d", code, got, want)
		}
	}
}
