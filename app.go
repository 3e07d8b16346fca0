package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/surfacemesh/surface"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *surface.Config
	Processor  *surface.Processor
	Tracker    *surface.ResultTracker
	MQTTClient *surface.MQTTClient
	Publisher  *surface.Publisher
	Logger     *zap.Logger
	Out        io.Writer

	// CLI Flags (effectively dependencies)
	ConfigFile   string
	DataDir      string
	FramePattern string
	OutputDir    string
	RenderFormat string
	Projection   surface.Projection
	ResultCache  string
	Workers      int
	HttpPort     int
	MqttMode     bool
	HttpMode     bool
}

// NewApp creates a new App instance writing reports to out
func NewApp(out io.Writer) *App {
	return &App{
		Logger:       zap.NewNop(),
		Out:          out,
		ConfigFile:   "config.yaml",
		DataDir:      ".",
		FramePattern: "frame-*.json",
		RenderFormat: "svg",
		Projection:   surface.ProjectTopDown,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.DataDir = opts.DataDir
	a.FramePattern = opts.FramePattern
	a.OutputDir = opts.OutputDir
	a.RenderFormat = opts.RenderFormat
	a.Projection = parseProjection(opts.Projection)
	a.ResultCache = opts.ResultCache
	a.Workers = opts.Workers
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
	a.Logger = newLogger(opts.Verbose)
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func parseProjection(name string) surface.Projection {
	if strings.EqualFold(name, "xy") {
		return surface.ProjectXY
	}
	return surface.ProjectTopDown
}

// loadConfig loads the config file, falling back to defaults when the
// default path does not exist, and applies CLI overrides
func (a *App) loadConfig() error {
	log := a.Logger.Sugar()

	configPath := a.ConfigFile
	if a.DataDir != "." && configPath == "config.yaml" {
		configPath = filepath.Join(a.DataDir, "config.yaml")
	}

	var config *surface.Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) && a.ConfigFile == "config.yaml" {
		defaults := surface.DefaultConfig()
		config = &defaults
		log.Infof("No config at %s, using defaults", configPath)
	} else {
		config, err = surface.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		log.Infof("Loaded config from %s", configPath)
	}

	if a.Workers > 0 {
		config.Workers = a.Workers
	}
	if a.HttpPort > 0 {
		config.HTTP.Port = a.HttpPort
	}
	a.Config = config
	return nil
}

// setup loads configuration and builds the processing pipeline
func (a *App) setup() error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	a.Processor = surface.NewProcessor(*a.Config, surface.WithLogger(a.Logger))
	a.Tracker = surface.NewResultTrackerWithCache(a.Processor.Stats(), a.ResultCache)
	return nil
}

// RunCheckConfig validates the configuration and prints the effective settings
func (a *App) RunCheckConfig() error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	pp := a.Config.Polygon.Postprocess
	fmt.Fprintln(a.Out, "Configuration OK")
	fmt.Fprintf(a.Out, "  simplify: %g  positiveBuffer: %g  negativeBuffer: %g\n",
		pp.Simplify, pp.PositiveBuffer, pp.NegativeBuffer)
	fmt.Fprintf(a.Out, "  planeArea.min: %g  holeArea: [%g, %g)  holeVertices.min: %d\n",
		pp.Filter.PlaneArea.Min, pp.Filter.HoleArea.Min, pp.Filter.HoleArea.Max, pp.Filter.HoleVertices.Min)
	return nil
}

// RunProcess filters every frame file in the data directory, prints a line
// per frame and the mean timings at the end. A frame that fails is reported
// and skipped.
func (a *App) RunProcess() error {
	if err := a.setup(); err != nil {
		return err
	}
	log := a.Logger.Sugar()

	files, err := filepath.Glob(filepath.Join(a.DataDir, a.FramePattern))
	if err != nil {
		return fmt.Errorf("finding frame files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no frame files matching %s in %s", a.FramePattern, a.DataDir)
	}
	fmt.Fprintf(a.Out, "Found %d frame file(s)\n\n", len(files))

	for _, file := range files {
		frame, err := surface.ParseFrameFile(file)
		if err != nil {
			log.Errorf("Error loading %s: %v", file, err)
			a.recordFailure(err)
			continue
		}
		if frame.ID == "" {
			frame.ID = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}

		result, err := a.processFrame(frame)
		if err != nil {
			fmt.Fprintf(a.Out, "%s: %v\n", frame.ID, err)
			continue
		}
		s := surface.Summarize(result)
		fmt.Fprintf(a.Out, "%s: %d planes (%.2f m²), %d obstacles, %d rejected, %.2fms\n",
			s.FrameID, s.Planes, s.PlaneArea, s.Obstacles, s.Rejections, s.Timings["frame"])

		if a.OutputDir != "" {
			if err := a.writeOutputs(result); err != nil {
				log.Errorf("Error writing outputs for %s: %v", frame.ID, err)
			}
		}
	}

	a.printTimings()
	return nil
}

// processFrame runs one frame through the pipeline and records the outcome
func (a *App) processFrame(frame *surface.Frame) (*surface.FrameResult, error) {
	result, err := a.Processor.ProcessFrame(frame)
	if trackErr := a.Tracker.Update(result, err); trackErr != nil {
		a.Logger.Sugar().Warnf("Warning: %v", trackErr)
	}
	if err != nil {
		if errors.Is(err, surface.ErrFrameSkipped) {
			a.Logger.Sugar().Debugf("Skipping frame %s: %v", frame.ID, err)
		} else {
			a.Logger.Sugar().Errorf("Error processing frame %s: %v", frame.ID, err)
		}
		return nil, err
	}
	return result, nil
}

func (a *App) recordFailure(err error) {
	if trackErr := a.Tracker.Update(nil, err); trackErr != nil {
		a.Logger.Sugar().Warnf("Warning: %v", trackErr)
	}
}

// handleFrame is the MQTT frame callback: process, track and publish
func (a *App) handleFrame(frame *surface.Frame, err error) {
	if err != nil {
		a.recordFailure(err)
		return
	}
	result, err := a.processFrame(frame)
	if err != nil || a.Publisher == nil {
		return
	}
	if err := a.Publisher.PublishResult(result); err != nil {
		a.Logger.Sugar().Warnf("[MQTT] Failed to publish frame %s: %v", result.FrameID, err)
	}
}

// writeOutputs writes the frame's GeoJSON and renders into OutputDir
func (a *App) writeOutputs(result *surface.FrameResult) error {
	if err := os.MkdirAll(a.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	base := filepath.Join(a.OutputDir, result.FrameID)

	fc := surface.ResultToFeatureCollection(result, a.Projection)
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling GeoJSON: %w", err)
	}
	if err := os.WriteFile(base+".geojson", data, 0o644); err != nil {
		return fmt.Errorf("writing GeoJSON: %w", err)
	}

	renderer := surface.NewResultRenderer(result)
	renderer.Projection = a.Projection
	format := strings.ToLower(a.RenderFormat)
	if format == "svg" || format == "both" {
		if err := writeRender(base+".svg", renderer.RenderToSVG); err != nil {
			return err
		}
	}
	if format == "png" || format == "both" {
		if err := writeRender(base+".png", renderer.RenderToPNG); err != nil {
			return err
		}
	}
	return nil
}

func writeRender(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := render(f); err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	return nil
}

// printTimings prints the mean of every timing metric over processed frames
func (a *App) printTimings() {
	stats := a.Processor.Stats()
	if stats.Frames() == 0 {
		return
	}
	mean := stats.Mean()
	fmt.Fprintf(a.Out, "\nMean timings over %d frame(s) (ms):\n", stats.Frames())
	for _, k := range stats.Keys() {
		fmt.Fprintf(a.Out, "  %-16s %8.2f\n", k, mean[k])
	}
}

// startMQTT creates the MQTT client and its publisher, then connects. The
// publisher is in place before the frame subscription can deliver anything.
// MQTTClient stays nil when no broker is configured.
func (a *App) startMQTT() error {
	client, err := surface.InitMQTT(a.Config, a.handleFrame, surface.WithLogger(a.Logger))
	if err != nil {
		return fmt.Errorf("initializing MQTT: %w", err)
	}
	if client == nil {
		return nil
	}
	a.MQTTClient = client
	a.Publisher = surface.NewPublisher(client.GetClient(), a.Config.MQTT.PublishPrefix, surface.WithLogger(a.Logger))
	a.Publisher.SetProjection(a.Projection)
	client.Connect()
	return nil
}

// RunService processes frames from MQTT and/or serves results over HTTP
// until SIGINT or SIGTERM
func (a *App) RunService() error {
	fmt.Fprintln(a.Out, "Starting surfacemesh service...")
	if err := a.setup(); err != nil {
		return err
	}
	log := a.Logger.Sugar()

	if a.MqttMode {
		if err := a.startMQTT(); err != nil {
			return err
		}
		if a.MQTTClient != nil {
			defer a.MQTTClient.Disconnect()
		}
	}

	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.Config.HTTP.Port),
			Handler:           newHTTPServer(a.Tracker, a.Projection, a.Logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Infof("[HTTP] listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("[HTTP] server error: %v", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("Shutting down...")

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down HTTP server: %w", err)
		}
	}
	a.printTimings()
	_ = a.Logger.Sync()
	return nil
}
