package middleware

import "testing"

type testCloneItem struct {
	CfgID int64 `validate:"required"`
}

func TestValidateStructRejectsMissingRequiredField(t *testing.T) {
	err := ValidateStruct(testCloneItem{})
	if err == nil {
		t.Fatal("expected a validation error for a zero-value required field")
	}

	details := FormatValidationErrors(err)
	if len(details) != 1 {
		t.Fatalf("expected one field error, got %d", len(details))
	}
	if details[0].Field != "CfgID" || details[0].Issue != "required" {
		t.Errorf("unexpected validation error: %+v", details[0])
	}
}

func TestValidateStructPassesWhenSatisfied(t *testing.T) {
	if err := ValidateStruct(testCloneItem{CfgID: 1}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestFormatValidationErrorsIgnoresNonValidatorErrors(t *testing.T) {
	if got := FormatValidationErrors(nil); got != nil {
		t.Errorf("expected nil for nil error, got %v", got)
	}
}
