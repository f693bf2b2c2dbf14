package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/lightldap/internal/directory/domain"
	apperrors "github.com/allisson/lightldap/internal/errors"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *domain.Filter
	}{
		{
			name:     "empty matches all",
			input:    "",
			expected: nil,
		},
		{
			name:     "empty and",
			input:    `{"and":[]}`,
			expected: domain.And(),
		},
		{
			name:     "empty or",
			input:    `{"or":[]}`,
			expected: domain.Or(),
		},
		{
			name:     "equality",
			input:    `{"equality":{"attribute":"member_of","value":"eng"}}`,
			expected: domain.Eq("member_of", "eng"),
		},
		{
			name:     "present",
			input:    `{"present":"email"}`,
			expected: domain.Present("email"),
		},
		{
			name:  "nested",
			input: `{"and":[{"not":{"equality":{"attribute":"user_id","value":"bob"}}},{"substring":{"attribute":"display_name","initial":"al","any":["i"],"final":"e"}}]}`,
			expected: domain.And(
				domain.Not(domain.Eq("user_id", "bob")),
				domain.Substring("display_name", "al", []string{"i"}, "e"),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := ParseFilter(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, filter)
		})
	}
}

func TestParseFilter_Errors(t *testing.T) {
	inputs := map[string]string{
		"malformed json":    `{"and":`,
		"no operator":       `{}`,
		"two operators":     `{"present":"email","equality":{"attribute":"email","value":"x"}}`,
		"unknown operator":  `{"xor":[]}`,
		"null child":        `{"and":[null]}`,
		"deeply nested not": strings.Repeat(`{"not":`, 40) + `{"present":"email"}` + strings.Repeat(`}`, 40),
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFilter(input)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
		})
	}
}
