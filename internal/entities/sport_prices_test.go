package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSportPricesMapShape(t *testing.T) {
	p, err := ParseSportPrices(json.RawMessage(`{"Cricket": 1000, "Football": 800}`))
	require.NoError(t, err)
	assert.Equal(t, SportPrices{"Cricket": 1000, "Football": 800}, p)
}

func TestParseSportPricesListShape(t *testing.T) {
	p, err := ParseSportPrices(json.RawMessage(`[{"sport":"Cricket","price":1000},{"sport":"Badminton","price":400}]`))
	require.NoError(t, err)
	assert.Equal(t, SportPrices{"Cricket": 1000, "Badminton": 400}, p)
}

func TestParseSportPricesEmptyAndNull(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage(``), json.RawMessage(`null`)} {
		p, err := ParseSportPrices(raw)
		require.NoError(t, err)
		assert.Empty(t, p)
	}
}

func TestParseSportPricesRejectsOtherShapes(t *testing.T) {
	_, err := ParseSportPrices(json.RawMessage(`"Cricket"`))
	require.Error(t, err)

	_, err = ParseSportPrices(json.RawMessage(`[1,2,3]`))
	require.Error(t, err)
}

func TestPriceFor(t *testing.T) {
	p := SportPrices{"Cricket": 1000}

	price, ok := p.PriceFor("Cricket")
	assert.True(t, ok)
	assert.Equal(t, int64(1000), price)

	_, ok = p.PriceFor("Tennis")
	assert.False(t, ok)
}
