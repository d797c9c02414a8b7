package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNames(t *testing.T) {
	assert.Empty(t, Names(nil))

	names := Names([]Record{
		{Name: "Oats", MealTime: "breakfast"},
		{Name: "Soup", MealTime: "lunch"},
		{Name: "Oats", MealTime: "dinner"},
	})
	assert.Equal(t, map[string]struct{}{"Oats": {}, "Soup": {}}, names)
}
