package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampLimit(t *testing.T) {
	testCases := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "negative", limit: -5, want: DefaultCommandLimit},
		{name: "zero", limit: 0, want: DefaultCommandLimit},
		{name: "in_range", limit: 10, want: 10},
		{name: "max", limit: MaxCommandLimit, want: MaxCommandLimit},
		{name: "oversized", limit: 9999, want: MaxCommandLimit},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClampLimit(tc.limit))
		})
	}
}
