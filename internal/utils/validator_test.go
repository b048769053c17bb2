package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidators(t *testing.T) {
	assert.True(t, IsValidEmail("fan@example.com"))
	assert.False(t, IsValidEmail("fan@example"))
	assert.False(t, IsValidEmail("fan example.com"))

	assert.True(t, IsValidUsername("green.fan_01"))
	assert.False(t, IsValidUsername("ab"))
	assert.False(t, IsValidUsername("has space"))

	assert.True(t, IsValidPassword("12345678"))
	assert.False(t, IsValidPassword("1234567"))

	assert.True(t, IsValidRating(1))
	assert.False(t, IsValidRating(6))
	assert.True(t, IsValidScore(0))
	assert.False(t, IsValidScore(5.1))

	assert.Equal(t, "fan@example.com", NormalizeEmail("  Fan@Example.COM "))
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Home & Kitchen":     "home-kitchen",
		"  Zero Waste  ":     "zero-waste",
		"Fair-Trade/Organic": "fair-trade-organic",
		"!!!":                "",
	}
	for input, want := range cases {
		assert.Equal(t, want, Slugify(input), input)
	}
}
