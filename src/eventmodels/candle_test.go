package eventmodels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Candle_Update(t *testing.T) {
	t.Run("extends high and low", func(t *testing.T) {
		// arrange
		c := &Candle{Timestamp: 0, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.1}

		// act
		c.Update(1.3)
		c.Update(0.9)
		c.Update(1.05)

		// assert
		assert.Equal(t, Candle{Timestamp: 0, Open: 1.1, High: 1.3, Low: 0.9, Close: 1.05}, *c)
	})
}

func Test_Candle_Roll(t *testing.T) {
	c := &Candle{Timestamp: 60000, Open: 1.1, High: 1.3, Low: 1.0, Close: 1.2}

	c.Roll(60000)

	assert.Equal(t, Candle{Timestamp: 120000, Open: 1.2, High: 1.2, Low: 1.2, Close: 1.2}, *c)
}
