package timedataset

import "time"

// LynxStartYear is the first year of the annual Canadian lynx trappings record.
const LynxStartYear = 1821

// lynxCounts holds the annual number of lynx trapped in the Mackenzie River
// district of north-west Canada, 1821-1934.
var lynxCounts = []float64{
	269, 321, 585, 871, 1475, 2821, 3928, 5943, 4950, 2577,
	523, 98, 184, 279, 409, 2285, 2685, 3409, 1824, 409,
	151, 45, 68, 213, 546, 1033, 2129, 2536, 957, 361,
	377, 225, 360, 731, 1638, 2725, 2871, 2119, 684, 299,
	236, 245, 552, 1623, 3311, 6721, 4254, 687, 255, 473,
	358, 784, 1594, 1676, 2251, 1426, 756, 299, 201, 229,
	469, 736, 2042, 2811, 4431, 2511, 389, 73, 39, 49,
	59, 188, 377, 1292, 4031, 3495, 587, 105, 153, 387,
	758, 1307, 3465, 6991, 6313, 3794, 1836, 345, 382, 808,
	1388, 2713, 3800, 3091, 2985, 3790, 674, 81, 80, 108,
	229, 399, 1132, 2432, 3574, 2935, 1537, 529, 485, 662,
	1000, 1590, 2657, 3396,
}

// Lynx returns the 114 year annual lynx trappings series with each observation
// stamped at January 1 UTC of its year.
func Lynx() *TimeDataset {
	t := make([]time.Time, 0, len(lynxCounts))
	for i := range lynxCounts {
		t = append(t, time.Date(LynxStartYear+i, time.January, 1, 0, 0, 0, 0, time.UTC))
	}
	y := make([]float64, len(lynxCounts))
	copy(y, lynxCounts)
	return &TimeDataset{T: t, Y: y}
}
