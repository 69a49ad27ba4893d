// Package main provides the dissect-report command line tool. It reads a
// pcap capture, drives every record through the filter and dissection
// pipeline, and renders a text, PDML, PSML or field-list report.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/banshee-data/dissect.report/internal/config"
	"github.com/banshee-data/dissect.report/internal/dissect"
	"github.com/banshee-data/dissect.report/internal/monitoring"
	"github.com/banshee-data/dissect.report/internal/output"
	"github.com/banshee-data/dissect.report/internal/pipeline"
	"github.com/banshee-data/dissect.report/internal/rundb"
	"github.com/banshee-data/dissect.report/internal/source"
	"github.com/banshee-data/dissect.report/internal/version"
)

// Config holds the command line configuration for one analysis run.
type Config struct {
	CaptureFile   string
	TwoPass       bool
	ReadFilter    string
	DisplayFilter string
	Format        string
	Detail        bool
	Hex           bool
	Fields        multiFlag
	FieldOpts     multiFlag
	Limit         int
	DBPath        string
	OptionsFile   string
	Stats         bool
	Verbose       bool
	Quiet         bool
	ShowVersion   bool
}

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string { return fmt.Sprint([]string(*m)) }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.CaptureFile, "r", "", "Path to capture file to read (required)")
	flag.BoolVar(&cfg.TwoPass, "2", false, "Two-pass analysis: read filter first, then render")
	flag.StringVar(&cfg.ReadFilter, "R", "", "Read filter (pass 1, requires -2)")
	flag.StringVar(&cfg.DisplayFilter, "Y", "", "Display filter")
	flag.StringVar(&cfg.Format, "T", "", "Output format: text, pdml, psml or fields (default text)")
	flag.BoolVar(&cfg.Detail, "V", false, "Print the field tree detail for each frame")
	flag.BoolVar(&cfg.Hex, "x", false, "Print a hex/ASCII dump of each frame")
	flag.Var(&cfg.Fields, "e", "Field to print with -T fields (repeatable)")
	flag.Var(&cfg.FieldOpts, "E", "Field output option: separator=CH, quote=CH, header=y|n (repeatable)")
	flag.IntVar(&cfg.Limit, "c", 0, "Stop after this many frames (0 = no limit)")
	flag.StringVar(&cfg.DBPath, "db", "", "SQLite database path (optional, persists run summary)")
	flag.StringVar(&cfg.OptionsFile, "config", "", "JSON options file overlaying defaults")
	flag.BoolVar(&cfg.Stats, "z", false, "Print protocol statistics after the report")
	flag.BoolVar(&cfg.Verbose, "v", false, "Verbose diagnostics on stderr")
	flag.BoolVar(&cfg.Quiet, "q", false, "Suppress diagnostics")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -r capture.pcap [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Record analysis and reporting tool\n\n")
		fmt.Fprintf(os.Stderr, "Reads a pcap capture (optionally gzip-compressed), filters each record,\n")
		fmt.Fprintf(os.Stderr, "and renders a report:\n")
		fmt.Fprintf(os.Stderr, "  text    summary lines, optionally with -V detail and -x hex dumps\n")
		fmt.Fprintf(os.Stderr, "  pdml    XML field tree per frame\n")
		fmt.Fprintf(os.Stderr, "  psml    XML summary columns per frame\n")
		fmt.Fprintf(os.Stderr, "  fields  values of the -e fields, layout via -E options\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -r capture.pcap -Y 'udp.dstport == 80'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -r capture.pcap -2 -R udp -Y 'ip.src == 10.0.0.1'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -r capture.pcap -T fields -e ip.src -e udp.dstport -E separator=,\n", os.Args[0])
	}

	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()

	if cfg.ShowVersion {
		fmt.Printf("dissect-report %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	setupLogging(cfg)

	code, err := run(cfg)
	if err != nil {
		monitoring.Logf("%v", err)
	}
	os.Exit(code)
}

// setupLogging routes diagnostics to stderr through a leveled tint handler,
// keeping stdout clean for the report itself.
func setupLogging(cfg Config) {
	if cfg.Quiet {
		monitoring.SetLogger(nil)
		return
	}
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
		monitoring.SetDebug(true)
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logger.Warn(fmt.Sprintf(format, v...))
	})
}

func run(cfg Config) (int, error) {
	runCfg, err := buildRunConfig(&cfg)
	if err != nil {
		return pipeline.FailureConfig.ExitCode(), err
	}

	if cfg.CaptureFile == "" {
		flag.Usage()
		return pipeline.FailureConfig.ExitCode(), fmt.Errorf("no capture file given (-r)")
	}

	// Open once up front to learn the link type; the pipeline reopens per
	// pass through the same path.
	probe, err := source.OpenPcap(cfg.CaptureFile)
	if err != nil {
		return pipeline.FailureConfig.ExitCode(), err
	}
	linkType := probe.LinkType()
	probe.Close()

	open := func() (source.Source, error) {
		return source.OpenPcap(cfg.CaptureFile)
	}
	eng := dissect.NewGoPacketEngine(linkType)

	var taps []pipeline.Tap
	stats := pipeline.NewProtoStats()
	if cfg.Stats || cfg.DBPath != "" {
		taps = append(taps, stats)
	}

	ctl, err := pipeline.New(open, eng, os.Stdout, runCfg, taps...)
	if err != nil {
		return pipeline.Classify(err).ExitCode(), err
	}

	sum, runErr := ctl.Run()
	monitoring.Debugf("run summary: read=%d accepted=%d rendered=%d bytes=%d elapsed=%s",
		sum.RecordsRead, sum.Accepted, sum.Rendered, sum.Bytes, sum.Elapsed)

	if cfg.Stats && runErr == nil {
		if err := stats.Report(os.Stdout); err != nil {
			runErr = err
		}
	}

	if cfg.DBPath != "" {
		persistErr := persistRun(cfg, runCfg, sum, stats)
		if persistErr != nil {
			monitoring.Logf("persist run: %v", persistErr)
			if runErr == nil {
				runErr = persistErr
			}
		}
	}

	return pipeline.Classify(runErr).ExitCode(), runErr
}

// buildRunConfig folds the options file and the command line into one run
// configuration. Flags win over the options file; the options file wins over
// built-in defaults.
func buildRunConfig(cfg *Config) (pipeline.Config, error) {
	opts := config.EmptyOptions()
	if cfg.OptionsFile != "" {
		loaded, err := config.LoadOptions(cfg.OptionsFile)
		if err != nil {
			return pipeline.Config{}, err
		}
		opts = loaded
	}

	if !cfg.TwoPass {
		cfg.TwoPass = opts.GetTwoPass()
	}
	if cfg.ReadFilter == "" {
		cfg.ReadFilter = opts.GetReadFilter()
	}
	if cfg.DisplayFilter == "" {
		cfg.DisplayFilter = opts.GetDisplayFilter()
	}
	if cfg.Format == "" {
		cfg.Format = opts.GetFormat()
	}
	if !cfg.Detail {
		cfg.Detail = opts.GetDetail()
	}
	if !cfg.Hex {
		cfg.Hex = opts.GetHex()
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = opts.Fields
	}
	if cfg.Limit == 0 {
		cfg.Limit = opts.GetLimit()
	}
	if cfg.DBPath == "" {
		cfg.DBPath = opts.GetDatabasePath()
	}

	out := output.Config{}
	switch cfg.Format {
	case "text":
		out.Kind = output.ActionText
		out.Summary = true
		out.Detail = cfg.Detail
		out.Hex = cfg.Hex
	case "pdml":
		out.Kind = output.ActionMarkup
		out.MarkupDetail = true
	case "psml":
		out.Kind = output.ActionMarkup
	case "fields":
		out.Kind = output.ActionFields
		out.Fields = cfg.Fields
		layout := output.FieldLayout{
			Separator: opts.GetFieldSeparator(),
			Quote:     opts.GetFieldQuote(),
			Header:    opts.GetFieldHeader(),
		}
		if err := applyFieldOpts(&layout, cfg.FieldOpts); err != nil {
			return pipeline.Config{}, err
		}
		out.FieldLayout = layout
	default:
		return pipeline.Config{}, fmt.Errorf("unknown output format %q (-T)", cfg.Format)
	}

	return pipeline.Config{
		TwoPass:       cfg.TwoPass,
		ReadFilter:    cfg.ReadFilter,
		DisplayFilter: cfg.DisplayFilter,
		Output:        out,
		Limit:         cfg.Limit,
	}, nil
}

// applyFieldOpts parses -E options of the form key=value.
func applyFieldOpts(layout *output.FieldLayout, opts []string) error {
	for _, opt := range opts {
		key, value, ok := strings.Cut(opt, "=")
		if !ok {
			return fmt.Errorf("invalid -E option %q, want key=value", opt)
		}
		switch key {
		case "separator":
			layout.Separator = value
		case "quote":
			if len(value) > 1 {
				return fmt.Errorf("-E quote must be a single character, got %q", value)
			}
			layout.Quote = value
		case "header":
			layout.Header = value == "y"
		default:
			return fmt.Errorf("unknown -E option %q", key)
		}
	}
	return nil
}

func persistRun(cfg Config, runCfg pipeline.Config, sum *pipeline.Summary, stats *pipeline.ProtoStats) error {
	var protos []rundb.ProtoCount
	for name, count := range stats.Counts() {
		protos = append(protos, rundb.ProtoCount{
			Protocol: name,
			Frames:   count,
			Bytes:    stats.Bytes(name),
		})
	}
	runID, err := rundb.Persist(cfg.DBPath, rundb.RunRecord{
		SourcePath:    cfg.CaptureFile,
		TwoPass:       runCfg.TwoPass,
		ReadFilter:    runCfg.ReadFilter,
		DisplayFilter: runCfg.DisplayFilter,
		Summary:       *sum,
	}, protos)
	if err != nil {
		return err
	}
	monitoring.Debugf("persisted run %s to %s", runID, cfg.DBPath)
	return nil
}
