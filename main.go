package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line flags
type AppOptions struct {
	ConfigFile   string
	DataDir      string
	FramePattern string
	OutputDir    string
	RenderFormat string
	Projection   string
	ResultCache  string
	Workers      int
	HttpPort     int
	ProcessOnly  bool
	CheckConfig  bool
	MqttMode     bool
	HttpMode     bool
	Verbose      bool
}

// Runner is the set of modes the CLI can dispatch to
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunCheckConfig() error
	RunProcess() error
	RunService() error
}

func main() {
	app := NewApp(os.Stdout)
	if err := run(os.Args[1:], os.Stdout, app); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args, applies them to app and dispatches to the selected mode
func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("surfacemesh", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.DataDir, "data-dir", ".", "Directory containing frame JSON files for --process mode")
	fs.StringVar(&opts.FramePattern, "frames", "frame-*.json", "Glob pattern of frame files inside --data-dir")
	fs.StringVar(&opts.OutputDir, "output", "", "Directory for per-frame GeoJSON and renders (empty disables)")
	fs.StringVar(&opts.RenderFormat, "format", "svg", "Render format for --output: svg, png, both or none")
	fs.StringVar(&opts.Projection, "projection", "topdown", "Projection for GeoJSON and renders: topdown (x/z) or xy")
	fs.StringVar(&opts.ResultCache, "result-cache", "", "Path to persist the latest frame result (empty disables)")
	fs.IntVar(&opts.Workers, "workers", 0, "Polygons filtered concurrently (overrides config when > 0)")
	fs.IntVar(&opts.HttpPort, "http-port", 0, "HTTP server port (overrides config when > 0)")
	fs.BoolVar(&opts.ProcessOnly, "process", false, "Process frame files and exit")
	fs.BoolVar(&opts.CheckConfig, "check-config", false, "Validate the configuration file and exit")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode: process frames from the frame topic")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for results, renders and timings")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Log per-stage timings at debug level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "surfacemesh version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.CheckConfig:
		return app.RunCheckConfig()
	case opts.ProcessOnly:
		return app.RunProcess()
	case opts.MqttMode || opts.HttpMode:
		return app.RunService()
	}

	fmt.Fprintln(out, "surfacemesh service starting...")
	fmt.Fprintln(out, "Use --process to filter frame files in --data-dir")
	fmt.Fprintln(out, "Use --check-config to validate the configuration")
	fmt.Fprintln(out, "Use --mqtt to process frames from MQTT")
	fmt.Fprintln(out, "Use --http to serve the latest result over HTTP")
	fmt.Fprintln(out, "Use --mqtt --http to run both together")
	fmt.Fprintln(out, "\nConfiguration:")
	fmt.Fprintln(out, "  config.yaml - MQTT settings and polygon post-processing thresholds")
	return nil
}
