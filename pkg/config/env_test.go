package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvironment(t *testing.T) {
	tests := []struct {
		envValue string
		want     string
	}{
		{"development", "development"},
		{"STAGING", "staging"},
		{"Production", "production"},
		{"", "development"},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv("BRAKES_APP_ENVIRONMENT", tt.envValue)
			assert.Equal(t, tt.want, GetEnvironment())
		})
	}
}

func TestIsProductionLike(t *testing.T) {
	assert.True(t, IsProductionLike("production"))
	assert.True(t, IsProductionLike("Staging"))
	assert.False(t, IsProductionLike("development"))
	assert.False(t, IsProductionLike(""))
}
