package seriesbench

import (
	"fmt"

	"github.com/seriesbench/seriesbench/timedataset"
)

// Split is a time series partitioned into a training prefix and a held out
// suffix. The index is fixed for an evaluation run so every candidate model
// is compared on the same partition.
type Split struct {
	Train *timedataset.TimeDataset
	Test  *timedataset.TimeDataset
}

// SplitAt partitions the dataset at the given index: the first index
// observations become the training segment and the remainder the test
// segment, order and timestamps unmodified. The index must satisfy
// 1 <= index < len.
func SplitAt(td *timedataset.TimeDataset, index int) (Split, error) {
	n := td.Len()
	if index < 1 || index >= n {
		return Split{}, fmt.Errorf("index %d with %d samples, %w", index, n, ErrInvalidSplit)
	}

	train, err := timedataset.NewUnivariateDataset(td.T[:index], td.Y[:index])
	if err != nil {
		return Split{}, fmt.Errorf("building train segment, %w", err)
	}
	test, err := timedataset.NewUnivariateDataset(td.T[index:], td.Y[index:])
	if err != nil {
		return Split{}, fmt.Errorf("building test segment, %w", err)
	}
	return Split{Train: train, Test: test}, nil
}
