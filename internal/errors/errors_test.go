package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/defi-health-scanner/internal/types"
)

func TestCategorize_ServiceErrorCodes(t *testing.T) {
	tests := []struct {
		code       string
		wantStatus int
		wantCat    ErrorCategory
	}{
		{"INVALID_INPUT", http.StatusBadRequest, CategoryValidation},
		{"FLOW_NOT_FOUND", http.StatusNotFound, CategoryNotFound},
		{"PAYMENT_REQUIRED", http.StatusPaymentRequired, CategoryPayment},
		{CodeAlreadyMeetsTarget, http.StatusConflict, CategoryRebalance},
		{CodeZeroTotalScore, http.StatusUnprocessableEntity, CategoryRebalance},
		{CodeSwapFailed, http.StatusBadGateway, CategoryRebalance},
		{"SOMETHING_ELSE", http.StatusInternalServerError, CategorySystem},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := Categorize(&types.ServiceError{Code: tt.code, Message: "m"})
			if got.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", got.StatusCode, tt.wantStatus)
			}
			if got.Category != tt.wantCat {
				t.Errorf("category = %s, want %s", got.Category, tt.wantCat)
			}
		})
	}
}

func TestCategorize_PlainErrorIsInternal(t *testing.T) {
	cause := stderrors.New("boom")
	got := Categorize(cause)
	if got.Code != "INTERNAL_ERROR" {
		t.Fatalf("code = %s", got.Code)
	}
	if !stderrors.Is(got, cause) {
		t.Error("cause should be unwrappable")
	}
	if Categorize(nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewProviderError("coinmarketcap", nil)) {
		t.Error("provider errors are retryable")
	}
	if IsRetryable(NewRebalanceOutcomeError(CodeSwapFailed, "swap failed", nil, nil)) {
		t.Error("swap failures must not be retried")
	}
	if IsRetryable(NewInvalidParameterError("topN", "must be >= 1")) {
		t.Error("validation errors are not retryable")
	}
}

func TestUserVersusSystem(t *testing.T) {
	if !IsUserError(NewPaymentRequiredError("0xabc")) {
		t.Error("payment required is a user error")
	}
	if !IsSystemError(NewDatabaseError("insert flow", nil)) {
		t.Error("database errors are system errors")
	}
}
