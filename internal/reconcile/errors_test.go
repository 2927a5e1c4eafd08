package reconcile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	cases := map[string]struct {
		err  error
		code string
	}{
		"nil":              {nil, ""},
		"missing ids":      {ErrMissingIdentifiers, "missing_identifiers"},
		"access":           {ErrAccessDenied, "access_denied"},
		"not found":        {ErrOrderNotFound, "order_not_found"},
		"checkout missing": {ErrCheckoutDataMissing, "checkout_data_missing"},
		"wrapped":          {fmt.Errorf("%w: db down", ErrOrderCreationFailed), "order_creation_failed"},
		"unknown":          {errBoom, "internal_error"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.code, ErrorCode(tc.err))
		})
	}
}
