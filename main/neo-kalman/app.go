package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/machbase/neo-kalman/mods"
	"github.com/machbase/neo-kalman/mods/logging"
	"github.com/machbase/neo-kalman/mods/modelconf"
	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"github.com/machbase/neo-kalman/mods/nums/kalman/rng"
	"github.com/machbase/neo-kalman/mods/seriesio"
)

type app struct {
	log    logging.Log
	slog   *slog.Logger
	cli    *Cli
	runId  string
	output io.Writer
	closer io.Closer
	policy kalman.Policy
}

func newApp(cli *Cli, stdout io.Writer) (*app, error) {
	ret := &app{
		log:    logging.GetLog("neo-kalman"),
		cli:    cli,
		output: stdout,
	}
	if id, err := uuid.NewV4(); err == nil {
		ret.runId = id.String()
	}
	ret.slog = logging.Wrap(ret.log, nil).With("run", ret.runId)
	policy, err := kalman.ParsePolicy(cli.Policy)
	if err != nil {
		return nil, err
	}
	ret.policy = policy
	if cli.Output != "" && cli.Output != "-" {
		f, err := os.Create(cli.Output)
		if err != nil {
			return nil, err
		}
		ret.output, ret.closer = f, f
	}
	return ret, nil
}

func (a *app) Close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

func (a *app) loadModel(path string) (*kalman.Model, error) {
	ld := modelconf.NewLoader()
	for k, v := range a.cli.Vars {
		var err error
		if f, perr := strconv.ParseFloat(v, 64); perr == nil {
			err = ld.SetVariable(k, f)
		} else {
			err = ld.SetVariable(k, v)
		}
		if err != nil {
			return nil, err
		}
	}
	m, err := ld.Load(path)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	n, k := m.Dims()
	a.log.Debugf("run %s model %s state=%d obs=%d steps=%d batch=%d", a.runId, path, n, k, m.Steps(), m.Batch())
	return m, nil
}

func (a *app) engineOptions(in *InputFlags) ([]kalman.Option, error) {
	opts := []kalman.Option{
		kalman.WithPolicy(a.policy),
		kalman.WithWorkers(a.cli.Workers),
		kalman.WithLogger(logging.GetLog("kalman")),
	}
	if in != nil && in.Missing != "" {
		v, err := strconv.ParseFloat(in.Missing, 64)
		if err != nil {
			return nil, fmt.Errorf("missing value %q: %w", in.Missing, err)
		}
		opts = append(opts, kalman.WithMissingValue(v))
	}
	return opts, nil
}

func (a *app) readObservations(in *InputFlags, m *kalman.Model) (*kalman.Observations, error) {
	var r io.Reader = os.Stdin
	if in.Input != "" && in.Input != "-" {
		f, err := os.Open(in.Input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	format := in.InputFormat
	if format == "auto" || format == "" {
		format = "csv"
		if strings.EqualFold(filepath.Ext(in.Input), ".json") {
			format = "json"
		}
	}
	var shape kalman.Shape
	if m.Batch() > 0 {
		shape = kalman.Shape{m.Batch()}
	}
	_, k := m.Dims()

	var obs *kalman.Observations
	var err error
	if format == "json" {
		dec := seriesio.NewJSONDecoder()
		dec.Input, dec.ObsDim, dec.Shape = r, k, shape
		obs, err = dec.Decode()
	} else {
		dec := seriesio.NewDecoder()
		dec.Input, dec.ObsDim, dec.Shape = r, k, shape
		obs, err = dec.Decode()
	}
	if err != nil {
		return nil, fmt.Errorf("observations %s: %w", in.Input, err)
	}
	a.log.Debugf("run %s observations steps=%d batch=%d", a.runId, obs.Len(), obs.Batch())
	return obs, nil
}

func (a *app) write(tbl *seriesio.Table, meta map[string]any) error {
	enc, err := seriesio.NewEncoder(a.cli.Format, a.output)
	if err != nil {
		return err
	}
	if je, ok := enc.(*seriesio.JSONEncoder); ok {
		je.Meta = meta
	}
	return seriesio.WriteTable(enc, tbl)
}

func (a *app) meta(extra map[string]any) map[string]any {
	ret := map[string]any{"run_id": a.runId, "version": mods.GetVersion()}
	for k, v := range extra {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			continue
		}
		ret[k] = v
	}
	return ret
}

func (a *app) reportFaults(faults []kalman.Fault) {
	for _, f := range faults {
		a.log.Warnf("run %s %s", a.runId, f.String())
	}
}

func (a *app) doFilter(cmd *FilterCmd, smooth bool) error {
	m, err := a.loadModel(cmd.Model)
	if err != nil {
		return err
	}
	obs, err := a.readObservations(&cmd.InputFlags, m)
	if err != nil {
		return err
	}
	opts, err := a.engineOptions(&cmd.InputFlags)
	if err != nil {
		return err
	}

	fr, err := m.Filter(nil, obs, opts...)
	if err != nil {
		return err
	}
	a.reportFaults(fr.Faults)
	a.slog.Info("filtered", "steps", fr.Len(), "batch", fr.Batch(), "loglik", fr.TotalLogLikelihood())
	meta := a.meta(map[string]any{"loglik": fr.TotalLogLikelihood(), "faults": len(fr.Faults)})

	if cmd.Loglik {
		return a.write(seriesio.LogLikelihoodTable(fr), meta)
	}
	if !smooth {
		return a.write(seriesio.BeliefTable(fr.Posteriors), meta)
	}
	sr, err := m.Smooth(fr, opts...)
	if err != nil {
		return err
	}
	if len(sr.Faults) > len(fr.Faults) {
		a.reportFaults(sr.Faults[len(fr.Faults):])
	}
	meta["faults"] = len(sr.Faults)
	return a.write(seriesio.BeliefTable(sr.Beliefs), meta)
}

func (a *app) doSample(cmd *SampleCmd) error {
	m, err := a.loadModel(cmd.Model)
	if err != nil {
		return err
	}
	opts, err := a.engineOptions(nil)
	if err != nil {
		return err
	}
	batch := cmd.Batch
	if m.Batch() > 0 {
		batch = m.Batch()
	}
	if batch < 1 {
		return fmt.Errorf("batch must be positive, got %d", batch)
	}
	tr, err := m.Sample(rng.NewKey(cmd.Seed), cmd.Horizon, kalman.Shape{batch}, nil, opts...)
	if err != nil {
		return err
	}
	a.slog.Info("sampled", "horizon", cmd.Horizon, "batch", batch, "seed", cmd.Seed)
	return a.write(seriesio.TrajectoryTable(tr), a.meta(map[string]any{"seed": cmd.Seed}))
}

func (a *app) doPosterior(cmd *PosteriorCmd) error {
	m, err := a.loadModel(cmd.Model)
	if err != nil {
		return err
	}
	obs, err := a.readObservations(&cmd.InputFlags, m)
	if err != nil {
		return err
	}
	opts, err := a.engineOptions(&cmd.InputFlags)
	if err != nil {
		return err
	}
	fr, err := m.Filter(nil, obs, opts...)
	if err != nil {
		return err
	}
	a.reportFaults(fr.Faults)
	tr, err := m.SamplePosterior(rng.NewKey(cmd.Seed), fr, opts...)
	if err != nil {
		return err
	}
	a.slog.Info("posterior", "steps", tr.Len(), "batch", fr.Batch(), "seed", cmd.Seed)
	return a.write(seriesio.TrajectoryTable(tr), a.meta(map[string]any{"seed": cmd.Seed, "loglik": fr.TotalLogLikelihood()}))
}
