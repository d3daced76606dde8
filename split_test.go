package seriesbench

import (
	"testing"
	"time"

	"github.com/seriesbench/seriesbench/timedataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAt(t *testing.T) {
	n := 20
	tSlice := timedataset.GenerateT(n, time.Hour, time.Now)
	y := make([]float64, n)
	for i := range y {
		y[i] = float64(i)
	}
	td, err := timedataset.NewUnivariateDataset(tSlice, y)
	require.Nil(t, err)

	testData := map[string]struct {
		index int
		err   error
	}{
		"zero index":      {index: 0, err: ErrInvalidSplit},
		"negative index":  {index: -3, err: ErrInvalidSplit},
		"index at length": {index: n, err: ErrInvalidSplit},
		"index past end":  {index: n + 5, err: ErrInvalidSplit},
		"first valid":     {index: 1},
		"middle":          {index: 13},
		"last valid":      {index: n - 1},
	}

	for name, tc := range testData {
		t.Run(name, func(t *testing.T) {
			split, err := SplitAt(td, tc.index)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.Nil(t, err)

			assert.Equal(t, tc.index, split.Train.Len())
			assert.Equal(t, n-tc.index, split.Test.Len())

			// concatenating the segments reproduces the input
			assert.Equal(t, td.Y[:tc.index], split.Train.Y)
			assert.Equal(t, td.Y[tc.index:], split.Test.Y)
			assert.Equal(t, td.T[tc.index-1], split.Train.T[tc.index-1])
			assert.Equal(t, td.T[tc.index], split.Test.T[0])
		})
	}
}

func TestSplitAtPreservesOrder(t *testing.T) {
	td := timedataset.Lynx()
	split, err := SplitAt(td, 80)
	require.Nil(t, err)

	require.Equal(t, 80, split.Train.Len())
	require.Equal(t, 34, split.Test.Len())
	assert.True(t, split.Train.T[79].Before(split.Test.T[0]))
}
