// Package report renders fitting results as terminal tables.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"tracerfit/pkg/fitting"
)

// Options controls table rendering
type Options struct {
	// Color highlights efficiency scores and convergence
	Color bool

	// Precision is the number of decimals shown for parameters
	Precision int
}

// DefaultOptions returns colored output with two decimals
func DefaultOptions() Options { return Options{Color: true, Precision: 2} }

func (o Options) withDefaults() Options {
	if o.Precision <= 0 {
		o.Precision = 2
	}
	return o
}

// palette holds the colorizers used in a table; plain fmt.Sprint when color is off
type palette struct {
	good, fair, poor func(...any) string
}

func newPalette(enabled bool) palette {
	if !enabled {
		return palette{good: fmt.Sprint, fair: fmt.Sprint, poor: fmt.Sprint}
	}
	return palette{
		good: color.New(color.FgGreen).SprintFunc(),
		fair: color.New(color.FgYellow).SprintFunc(),
		poor: color.New(color.FgRed, color.Bold).SprintFunc(),
	}
}

// efficiency colors a model efficiency score by how well the model explains
// the observations.
func (p palette) efficiency(me float64) string {
	s := strconv.FormatFloat(me, 'f', 3, 64)
	switch {
	case me >= 0.9:
		return p.good(s)
	case me >= 0.5:
		return p.fair(s)
	default:
		return p.poor(s)
	}
}

// WriteResults writes one row per fitted model: kind, mixing fraction,
// parameters, MSE, model efficiency and optimizer status.
func WriteResults(w io.Writer, results []*fitting.FittingResult, opts Options) error {
	opts = opts.withDefaults()
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"#", "Model", "Beta", "Parameters", "MSE", "ME", "Converged"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	pal := newPalette(opts.Color)
	var data [][]string
	for i, r := range results {
		converged := pal.good("yes")
		if !r.Converged {
			converged = pal.fair("no: " + r.Status)
		}
		data = append(data, []string{
			strconv.Itoa(i + 1),
			string(r.Kind),
			strconv.FormatFloat(r.Mixing, 'f', 2, 64),
			formatParams(r, opts.Precision),
			strconv.FormatFloat(r.MSE, 'f', 3, 64),
			pal.efficiency(r.ModelEfficiency),
			converged,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Fitted %d model(s)\n", len(results))
	return err
}

// WriteAccuracy writes the confidence interval of every fitted parameter.
// Results without accuracy are skipped.
func WriteAccuracy(w io.Writer, results []*fitting.FittingResult, opts Options) error {
	opts = opts.withDefaults()
	pal := newPalette(opts.Color)
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', opts.Precision, 64) }

	var data [][]string
	for _, r := range results {
		names := r.ParamNames()
		for j, acc := range r.Accuracy {
			level := strconv.FormatFloat(acc.Level, 'f', 2, 64)
			if acc.Level < 0.95 {
				level = pal.fair(level)
			}
			data = append(data, []string{
				string(r.Kind),
				names[j],
				f(r.Params[j]),
				level,
				f(acc.Lower),
				f(acc.Upper),
				strconv.FormatFloat(acc.StdDev, 'f', 4, 64),
			})
		}
	}
	if len(data) == 0 {
		_, err := fmt.Fprintln(w, "No parameter accuracy computed")
		return err
	}

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Model", "Parameter", "Value", "Level", "Lower", "Upper", "Std Dev"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func formatParams(r *fitting.FittingResult, precision int) string {
	names := r.ParamNames()
	parts := make([]string, len(r.Params))
	for i, v := range r.Params {
		parts[i] = fmt.Sprintf("%s=%.*f", names[i], precision, v)
	}
	return strings.Join(parts, " ")
}
