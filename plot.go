package seriesbench

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/seriesbench/seriesbench/timedataset"
)

// LineForecast renders the held out actuals against a forecast with its
// uncertainty band.
func LineForecast(title string, actual *timedataset.TimeDataset, eval *Evaluation) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
	)

	fc := eval.Forecast
	lineDataActual := make([]opts.LineData, 0, actual.Len())
	lineDataForecast := make([]opts.LineData, 0, len(fc.Point))
	lineDataUpper := make([]opts.LineData, 0, len(fc.Upper))
	lineDataLower := make([]opts.LineData, 0, len(fc.Lower))

	for i := 0; i < len(fc.Point); i++ {
		if i < actual.Len() {
			lineDataActual = append(lineDataActual, opts.LineData{Value: actual.Y[i]})
		}
		lineDataForecast = append(lineDataForecast, opts.LineData{Value: fc.Point[i]})
		lineDataUpper = append(lineDataUpper, opts.LineData{Value: fc.Upper[i]})
		lineDataLower = append(lineDataLower, opts.LineData{Value: fc.Lower[i]})
	}

	line.SetXAxis(fc.T).
		AddSeries("Actual", lineDataActual).
		AddSeries("Forecast", lineDataForecast).
		AddSeries("Upper", lineDataUpper).
		AddSeries("Lower", lineDataLower)
	return line
}

// LineSweep renders score and coverage curves across a hyperparameter grid.
// The x labels align positionally with the sweep results.
func LineSweep(title string, xLabels []string, results []SweepResult) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
	)

	lineDataMSE := make([]opts.LineData, 0, len(results))
	lineDataCoverage := make([]opts.LineData, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			// keep the grid position, leave a gap in the curve
			lineDataMSE = append(lineDataMSE, opts.LineData{Value: "-"})
			lineDataCoverage = append(lineDataCoverage, opts.LineData{Value: "-"})
			continue
		}
		lineDataMSE = append(lineDataMSE, opts.LineData{Value: res.Scores.MSE})
		lineDataCoverage = append(lineDataCoverage, opts.LineData{Value: res.Coverage})
	}

	line.SetXAxis(xLabels).
		AddSeries("MSE", lineDataMSE).
		AddSeries("Coverage", lineDataCoverage)
	return line
}

// PlotEvaluation writes an HTML report of a single evaluation to path.
func PlotEvaluation(path string, split Split, eval *Evaluation) error {
	page := components.NewPage()
	page.AddCharts(
		LineForecast(fmt.Sprintf("%s forecast", eval.Backend), split.Test, eval),
	)

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return page.Render(io.MultiWriter(file))
}

// PlotSweep writes an HTML report of a sensitivity sweep to path.
func PlotSweep(path, title string, xLabels []string, results []SweepResult) error {
	page := components.NewPage()
	page.AddCharts(
		LineSweep(title, xLabels, results),
	)

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return page.Render(io.MultiWriter(file))
}
