package timedataset

import (
	"math"
	"time"
)

type TimeSlice []time.Time

func (t TimeSlice) StartTime() time.Time {
	var startTime time.Time
	if len(t) < 1 {
		return startTime
	}
	return t[0]
}

func (t TimeSlice) EndTime() time.Time {
	var lastTime time.Time
	if len(t) < 1 {
		return lastTime
	}

	lastTime = t[len(t)-1]
	return lastTime
}

// EstimateFreq returns the most common delta between consecutive time points.
// Ties resolve to the smaller delta.
func (t TimeSlice) EstimateFreq() (time.Duration, error) {
	if len(t) < 2 {
		return 0, ErrCannotInferFreq
	}

	frequencies := make(map[time.Duration]int)
	for i := 1; i < len(t); i++ {
		delta := t[i].Sub(t[i-1])
		frequencies[delta] += 1
	}

	var maxCnt int
	maxDelta := time.Duration(math.MaxInt64)
	for delta, cnt := range frequencies {
		if cnt > maxCnt || (cnt == maxCnt && delta < maxDelta) {
			maxCnt = cnt
			maxDelta = delta
		}
	}
	return maxDelta, nil
}

// Extend generates cnt additional time points continuing past the end of the
// slice at the estimated frequency.
func (t TimeSlice) Extend(cnt int) ([]time.Time, error) {
	freq, err := t.EstimateFreq()
	if err != nil {
		return nil, err
	}
	last := t.EndTime()
	horizon := make([]time.Time, 0, cnt)
	for i := 0; i < cnt; i++ {
		horizon = append(horizon, last.Add(time.Duration(i+1)*freq))
	}
	return horizon, nil
}
