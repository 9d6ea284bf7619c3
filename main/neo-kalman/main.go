package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/machbase/neo-kalman/mods"
	"github.com/machbase/neo-kalman/mods/logging"
)

type Cli struct {
	Filter    FilterCmd    `cmd:"" name:"filter" help:"filter observations, prints the posterior beliefs"`
	Smooth    FilterCmd    `cmd:"" name:"smooth" help:"filter and smooth observations, prints the smoothed beliefs"`
	Sample    SampleCmd    `cmd:"" name:"sample" help:"simulate state and observation trajectories from the model"`
	Posterior PosteriorCmd `cmd:"" name:"posterior" help:"draw state trajectories from the posterior of the observations"`
	Version   struct{}     `cmd:"" name:"version" help:"show version"`

	Format  string            `name:"format" short:"f" default:"csv" enum:"csv,json,box" help:"output format (csv, json, box)"`
	Output  string            `name:"output" short:"o" default:"-" help:"output file, - for stdout"`
	Policy  string            `name:"policy" default:"strict" enum:"strict,isolated" help:"fault policy (strict, isolated)"`
	Workers int               `name:"workers" default:"1" help:"number of goroutines the batch is split over"`
	Vars    map[string]string `name:"var" help:"variables of HCL model files, name=value"`

	LogLevel    string `name:"log-level" default:"WARN" help:"TRACE, DEBUG, INFO, WARN, ERROR"`
	LogFilename string `name:"log-filename" default:"-" help:"log file path, - for stderr, . to discard"`
	LogRotate   string `name:"log-rotate" help:"cron schedule of log file rotation, e.g. '@daily'"`
	LogMaxSize  int    `name:"log-max-size" default:"10" help:"megabytes of a log file before it is rotated"`
}

type ModelFlags struct {
	Model string `name:"model" short:"m" required:"" help:"model definition file (.hcl, .yaml, .json)"`
}

type InputFlags struct {
	Input       string `name:"input" short:"i" default:"-" help:"observation file, - for stdin"`
	InputFormat string `name:"input-format" default:"auto" enum:"auto,csv,json" help:"observation format (auto, csv, json)"`
	Missing     string `name:"missing" help:"value that marks a missing observation, in addition to NaN; use --missing=-999 for negative values"`
}

type FilterCmd struct {
	ModelFlags `embed:""`
	InputFlags `embed:""`
	Loglik     bool `name:"loglik" help:"print the log-likelihood of every series instead of the beliefs"`
}

type SampleCmd struct {
	ModelFlags `embed:""`
	Horizon    int    `name:"horizon" default:"10" help:"number of steps to simulate"`
	Batch      int    `name:"batch" default:"1" help:"number of series, a per-series model fixes it"`
	Seed       uint64 `name:"seed" default:"0" help:"random seed"`
}

type PosteriorCmd struct {
	ModelFlags `embed:""`
	InputFlags `embed:""`
	Seed       uint64 `name:"seed" default:"0" help:"random seed"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "ERR", err.Error())
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var cli Cli
	parser, err := kong.New(&cli,
		kong.Name("neo-kalman"),
		kong.Description("linear-Gaussian state space filter, smoother and sampler"),
		kong.HelpOptions{NoAppSummary: false, Compact: true, FlagsLast: true},
		kong.UsageOnError(),
		kong.Writers(stdout, os.Stderr),
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if err := logging.Configure(&logging.Config{
		Filename:       cli.LogFilename,
		Append:         true,
		RotateSchedule: cli.LogRotate,
		MaxSize:        cli.LogMaxSize,
		MaxBackups:     3,
		DefaultLevel:   cli.LogLevel,
	}); err != nil {
		return err
	}

	app, err := newApp(&cli, stdout)
	if err != nil {
		return err
	}
	defer app.Close()

	switch ctx.Command() {
	case "filter":
		return app.doFilter(&cli.Filter, false)
	case "smooth":
		return app.doFilter(&cli.Smooth, true)
	case "sample":
		return app.doSample(&cli.Sample)
	case "posterior":
		return app.doPosterior(&cli.Posterior)
	case "version":
		v := mods.GetVersion()
		fmt.Fprintf(stdout, "neo-kalman %s\n", mods.VersionString())
		fmt.Fprintf(stdout, "semver %d.%d.%d", v.Major, v.Minor, v.Patch)
		if v.Prerelease != "" {
			fmt.Fprintf(stdout, "-%s", v.Prerelease)
		}
		fmt.Fprintln(stdout)
		return nil
	default:
		return fmt.Errorf("unhandled command %s", ctx.Command())
	}
}
