package httpapi

import (
	"errors"
	"fmt"
	"testing"

	"qms-data/internal/backup"
	"qms-data/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestFailErr(t *testing.T) {
	cases := []struct {
		err      error
		wantType string
		expected bool
	}{
		{fmt.Errorf("%w: title is required", domain.ErrValidation), "warning", true},
		{fmt.Errorf("%w: DRAFT -> APPROVED", domain.ErrInvalidTransition), "warning", true},
		{backup.ErrInvalidFile, "warning", true},
		{fmt.Errorf("%w: documents id=x", domain.ErrNotFound), "error", true},
		{fmt.Errorf("%w: QA_MANAGER required", domain.ErrForbidden), "error", true},
		{errors.New("connection reset"), "error", false},
	}
	for _, c := range cases {
		t.Run(c.err.Error(), func(t *testing.T) {
			res := FailErr(c.err)
			assert.Equal(t, ResultError, res.Code)
			assert.Equal(t, c.err.Error(), res.Message)
			assert.Equal(t, c.wantType, res.Type)
			assert.Equal(t, c.expected, expectedError(c.err))
		})
	}
}
