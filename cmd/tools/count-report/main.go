// Command count-report replays a recorded detection log through the
// counting pipeline without pacing and produces an offline summary:
// directional counts, crossing rate and traffic level, a per-minute
// table, inter-crossing gap statistics, and a counts-per-minute PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/roadtally/carcount/internal/config"
	"github.com/roadtally/carcount/internal/detect"
	"github.com/roadtally/carcount/internal/linecount"
	"github.com/roadtally/carcount/internal/monitor"
	"github.com/roadtally/carcount/internal/units"
)

var (
	input     = flag.String("i", "", "detection log to analyse (NDJSON, .gz supported)")
	lineFlag  = flag.String("line", "", "counting line as x1,y1,x2,y2 (default: config default)")
	cooldown  = flag.Duration("cooldown", config.DefaultCooldown, "crossing cooldown")
	width     = flag.Int("width", 1920, "frame width for relative line resolution")
	height    = flag.Int("height", 1080, "frame height for relative line resolution")
	chartOut  = flag.String("chart", "", "write a counts-per-minute PNG to this path")
	rateUnits = flag.String("units", units.PerMinute, "rate units for the summary (per_minute, per_hour)")
)

func main() {
	flag.Parse()
	if *input == "" {
		log.Fatal("-i is required")
	}
	if !units.IsValid(*rateUnits) {
		log.Fatalf("invalid -units %q: valid units are %s", *rateUnits, units.GetValidUnitsString())
	}

	lineSpec := config.DefaultLine
	if *lineFlag != "" {
		var err error
		lineSpec, err = config.ParseLineSpec(*lineFlag)
		if err != nil {
			log.Fatalf("invalid -line: %v", err)
		}
	}
	line := lineSpec.Resolve(*width, *height)

	src, err := detect.OpenFile(*input, detect.FileOptions{})
	if err != nil {
		log.Fatalf("failed to open detection log: %v", err)
	}
	defer src.Close()

	history := monitor.NewHistory(24 * time.Hour)
	var crossings []linecount.Crossing
	tracker := linecount.New(linecount.Config{
		Line:     line,
		Cooldown: *cooldown,
		OnCrossing: func(c linecount.Crossing) {
			history.Add(c)
			crossings = append(crossings, c)
		},
	})

	var first, last time.Time
	var frames int
	ctx := context.Background()
	for {
		frame, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("failed to read detection log: %v", err)
		}
		frames++
		ts := frame.Time()
		if first.IsZero() {
			first = ts
		}
		last = ts
		for _, d := range detect.FilterDetections(frame.Detections, config.DefaultClasses, config.DefaultMinConfidence) {
			tracker.Update(d.TrackID, d.Box.Centroid(), ts)
		}
	}
	if frames == 0 {
		log.Fatal("detection log contains no frames")
	}

	stats := tracker.Statistics()
	span := last.Sub(first)
	rate := units.RateOf(stats.Total, span)

	fmt.Printf("Detection log: %s\n", *input)
	fmt.Printf("Footage: %d frames spanning %v (%s to %s)\n",
		frames, span.Truncate(time.Second),
		first.Format("15:04:05"), last.Format("15:04:05"))
	fmt.Printf("Line: %s, cooldown %v\n\n", line, *cooldown)
	fmt.Printf("In:    %d\n", stats.CountIn)
	fmt.Printf("Out:   %d\n", stats.CountOut)
	fmt.Printf("Total: %d\n", stats.Total)
	fmt.Printf("Rate:  %.1f %s, traffic %s\n\n",
		rate.Convert(*rateUnits), *rateUnits, units.LevelFor(rate))

	printPerMinuteTable(history, last)
	printGapStats(crossings)

	if *chartOut != "" {
		if err := writeChart(history, first, last, *chartOut); err != nil {
			log.Fatalf("failed to write chart: %v", err)
		}
		fmt.Printf("\nChart written to %s\n", *chartOut)
	}
}

func printPerMinuteTable(history *monitor.History, last time.Time) {
	series := history.Series(last)
	fmt.Println("Per minute:")
	printed := false
	for i := range series.Minutes {
		if series.In[i] == 0 && series.Out[i] == 0 {
			continue
		}
		fmt.Printf("  %s  in=%-4d out=%-4d total=%d\n",
			series.Minutes[i].Format("15:04"), series.In[i], series.Out[i],
			series.In[i]+series.Out[i])
		printed = true
	}
	if !printed {
		fmt.Println("  (no crossings)")
	}
}

// printGapStats summarises the intervals between consecutive counted
// crossings.
func printGapStats(crossings []linecount.Crossing) {
	if len(crossings) < 2 {
		return
	}
	gaps := make([]float64, 0, len(crossings)-1)
	for i := 1; i < len(crossings); i++ {
		gaps = append(gaps, crossings[i].Timestamp.Sub(crossings[i-1].Timestamp).Seconds())
	}
	sort.Float64s(gaps)

	fmt.Printf("\nInter-crossing gaps (s): mean %.1f, median %.1f, p90 %.1f\n",
		stat.Mean(gaps, nil),
		stat.Quantile(0.5, stat.Empirical, gaps, nil),
		stat.Quantile(0.9, stat.Empirical, gaps, nil))
}

func writeChart(history *monitor.History, first, last time.Time, path string) error {
	series := history.Series(last)

	// Trim leading minutes before the footage started.
	start := 0
	for i := range series.Minutes {
		if !series.Minutes[i].Before(first.Truncate(time.Minute)) {
			start = i
			break
		}
	}

	inPts := make(plotter.XYs, 0, len(series.Minutes)-start)
	outPts := make(plotter.XYs, 0, len(series.Minutes)-start)
	for i := start; i < len(series.Minutes); i++ {
		x := series.Minutes[i].Sub(series.Minutes[start]).Minutes()
		inPts = append(inPts, plotter.XY{X: x, Y: float64(series.In[i])})
		outPts = append(outPts, plotter.XY{X: x, Y: float64(series.Out[i])})
	}

	p := plot.New()
	p.Title.Text = "Crossings per minute"
	p.X.Label.Text = "minute of recording"
	p.Y.Label.Text = "crossings"

	inLine, err := plotter.NewLine(inPts)
	if err != nil {
		return err
	}
	inLine.Width = vg.Points(1)
	outLine, err := plotter.NewLine(outPts)
	if err != nil {
		return err
	}
	outLine.Width = vg.Points(1)
	outLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(inLine, outLine)
	p.Legend.Add("in", inLine)
	p.Legend.Add("out", outLine)

	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}

func init() {
	// Keep the default logger terse for a CLI tool.
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
}
