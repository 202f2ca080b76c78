// Package confidence attaches uncertainty to fitted parameters by refitting
// the model against resampled observation sets.
//
// Each replicate perturbs every observed concentration by a uniform draw
// within one population standard deviation of the observations and is refitted
// independently. The spread of the refitted parameters is reduced to a
// confidence level and interval per parameter.
package confidence

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"tracerfit/internal/logger"
	"tracerfit/internal/models"
	"tracerfit/pkg/fitting"
	"tracerfit/pkg/model"
)

// Defaults used when Options leaves a field zero
const (
	DefaultReplicates = 100
	DefaultBand       = 0.10
	DefaultZ          = 1.96
	DefaultLevel      = 0.95
)

// Options configures an Estimator
type Options struct {
	// Replicates is the number of resampled observation sets
	Replicates int

	// Workers bounds how many refits run at once. 0 uses GOMAXPROCS.
	Workers int

	// Seed makes the resampling reproducible
	Seed uint64

	// Band is the relative half-width of the band around each fitted value
	Band float64

	// Z is the normal quantile used for the fallback interval
	Z float64

	// Level is reported when every refit lies inside the band
	Level float64

	// TightenBounds refits within the band instead of the original bounds
	TightenBounds bool

	// Logger receives pass diagnostics. Defaults to logger.L().
	Logger *slog.Logger
}

// DefaultOptions returns the settings used by the command line tool
func DefaultOptions() Options {
	return Options{
		Replicates:    DefaultReplicates,
		Band:          DefaultBand,
		Z:             DefaultZ,
		Level:         DefaultLevel,
		TightenBounds: true,
	}
}

func (o Options) withDefaults() Options {
	if o.Replicates <= 0 {
		o.Replicates = DefaultReplicates
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Band <= 0 {
		o.Band = DefaultBand
	}
	if o.Z <= 0 {
		o.Z = DefaultZ
	}
	if o.Level <= 0 || o.Level > 1 {
		o.Level = DefaultLevel
	}
	if o.Logger == nil {
		o.Logger = logger.L()
	}
	return o
}

// Estimator runs confidence passes
type Estimator struct {
	opts Options
	fit  fitting.Options
}

// NewEstimator builds an estimator. fit is used for every refit.
func NewEstimator(opts Options, fit fitting.Options) *Estimator {
	return &Estimator{opts: opts.withDefaults(), fit: fit}
}

// Workers returns the effective worker bound
func (e *Estimator) Workers() int { return e.opts.Workers }

// Estimate refits space against Replicates resampled copies of obs and
// reduces the refitted parameters around fitted.
//
// Replicates run on at most Workers goroutines; each owns private copies of
// the input and its observation set. The first failing replicate cancels the
// remaining ones and its error is returned.
func (e *Estimator) Estimate(ctx context.Context, input models.InputSeries, obs models.ObservationSet,
	space *model.ParameterSpace, fitted []float64) ([]fitting.ParamAccuracy, error) {
	if len(fitted) != space.NumParams() {
		return nil, models.NewOpError("confidence", models.ErrConfiguration,
			fmt.Errorf("%d fitted values for %d parameters", len(fitted), space.NumParams()))
	}

	refitSpace := space
	if e.opts.TightenBounds {
		var err error
		refitSpace, err = space.Tightened(fitted, e.opts.Band)
		if err != nil {
			return nil, err
		}
	}

	sets := Resample(obs, e.opts.Replicates, e.opts.Seed)
	samples := make([][]float64, len(sets))

	log := e.opts.Logger.With("model", space.Kind())
	log.Debug("confidence.start", "replicates", len(sets), "workers", e.opts.Workers, "bounds", refitSpace.Bounds())
	started := time.Now()

	var notConverged atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, set := range sets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fitter, err := fitting.NewFitter(input.Clone(), set, refitSpace, e.fit)
			if err != nil {
				return fmt.Errorf("replicate %d: %w", i, err)
			}
			params, ok, err := fitter.FitParams()
			if err != nil {
				return fmt.Errorf("replicate %d: %w", i, err)
			}
			if !ok {
				notConverged.Add(1)
			}
			samples[i] = params
			return nil
		})
	}
	// TODO: isolate failing replicates and reduce over the successful ones
	// once a minimum replicate count for a usable interval is agreed.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// one record per pass, however many refits hit a limit
	if n := notConverged.Load(); n > 0 {
		log.Warn("confidence.not_converged", "refits", n, "replicates", len(sets))
	}
	log.Debug("confidence.done", "elapsed", time.Since(started), "not_converged", notConverged.Load())
	return Reduce(fitted, samples, e.opts.Band, e.opts.Z, e.opts.Level), nil
}

// Resample draws n synthetic observation sets. Each concentration c becomes
// a uniform draw from [c-s, c+s] where s is the population standard deviation
// of all observed concentrations. Observation times are copied unchanged.
func Resample(obs models.ObservationSet, n int, seed uint64) []models.ObservationSet {
	s := 0.0
	if obs.Len() > 1 {
		s = stat.PopStdDev(obs.Concentration, nil)
	}

	src := rand.NewSource(seed)
	sets := make([]models.ObservationSet, n)
	for i := range sets {
		set := obs.Clone()
		for j, c := range obs.Concentration {
			if s == 0 {
				continue
			}
			u := distuv.Uniform{Min: c - s, Max: c + s, Src: src}
			set.Concentration[j] = u.Rand()
		}
		sets[i] = set
	}
	return sets
}

// Reduce turns the refitted parameter samples into one ParamAccuracy per
// fitted parameter.
//
// With a band of fitted*(1-band) .. fitted*(1+band): if every sample lies in
// the band the result is (level, band). Otherwise the level is the share of
// samples inside the band and the interval is fitted -/+ z*sd, sd being the
// sample standard deviation of the refits. Either interval contains fitted.
func Reduce(fitted []float64, samples [][]float64, band, z, level float64) []fitting.ParamAccuracy {
	out := make([]fitting.ParamAccuracy, len(fitted))
	values := make([]float64, len(samples))

	for j, p := range fitted {
		for i, s := range samples {
			values[i] = s[j]
		}

		lo, hi := p*(1-band), p*(1+band)
		if lo > hi {
			lo, hi = hi, lo
		}
		outside := 0
		for _, v := range values {
			if v < lo || v > hi {
				outside++
			}
		}

		sd := 0.0
		if len(values) > 1 {
			sd = stat.StdDev(values, nil)
		}

		acc := fitting.ParamAccuracy{Level: level, Lower: lo, Upper: hi, StdDev: sd}
		if outside > 0 {
			acc.Level = 1 - float64(outside)/float64(len(values))
			acc.Lower = p - z*sd
			acc.Upper = p + z*sd
		}
		if math.IsNaN(acc.Lower) || math.IsNaN(acc.Upper) {
			acc.Lower, acc.Upper = p, p
		}
		out[j] = acc
	}
	return out
}
