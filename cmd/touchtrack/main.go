package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/touchtrack/internal/blob"
	"github.com/banshee-data/touchtrack/internal/calibration"
	"github.com/banshee-data/touchtrack/internal/config"
	"github.com/banshee-data/touchtrack/internal/monitor"
	"github.com/banshee-data/touchtrack/internal/monitoring"
	"github.com/banshee-data/touchtrack/internal/pipeline"
	"github.com/banshee-data/touchtrack/internal/replay"
	"github.com/banshee-data/touchtrack/internal/store"
	"github.com/banshee-data/touchtrack/internal/version"
)

var (
	configFile      = flag.String("config", "", "Path to tuning JSON (defaults to built-in values)")
	replayFile      = flag.String("replay", "", "Replay detections from a .jsonl frame log")
	synthetic       = flag.Bool("synthetic", false, "Drive the tracker from the synthetic touch generator")
	seed            = flag.Int64("seed", 1, "Seed for the synthetic generator")
	maxFrames       = flag.Uint64("frames", 0, "Stop the synthetic generator after this many frames (0 = unbounded)")
	realtime        = flag.Bool("realtime", true, "Pace the loop at the configured frame rate")
	recordFile      = flag.String("record", "", "Record every processed frame to a .jsonl frame log")
	listen          = flag.String("listen", ":8090", "Monitor listen address (empty disables)")
	dbPath          = flag.String("db", "touchtrack.db", "SQLite touch log (empty disables)")
	sessionLabel    = flag.String("label", "", "Label stored with the touch log session")
	calibrate       = flag.Bool("calibrate", false, "Start a calibration session at launch")
	calibrationFile = flag.String("calibration", "", "Load the camera→screen transform from, and save new ones to, this .json file")
	gridSpec        = flag.String("grid", "3x3", "Calibration target grid as COLSxROWS")
	screenWidth     = flag.Float64("screen-width", 1920, "Screen width in pixels")
	screenHeight    = flag.Float64("screen-height", 1080, "Screen height in pixels")
	plotsDir        = flag.String("plots", "", "Write trail plots to this directory on exit")
	verbose         = flag.Bool("verbose", false, "Enable debug logging")
	showVersion     = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(*verbose)
	log.Printf("starting %s", version.String())

	if *replayFile == "" && !*synthetic {
		log.Fatal("one of -replay or -synthetic is required")
	}
	if *replayFile != "" && *synthetic {
		log.Fatal("-replay and -synthetic are mutually exclusive")
	}
	cols, rows, err := parseGrid(*gridSpec)
	if err != nil {
		log.Fatalf("invalid -grid: %v", err)
	}
	if *calibrationFile != "" && filepath.Ext(*calibrationFile) != calibration.FileExtension {
		log.Fatalf("-calibration must have %s extension, got %q", calibration.FileExtension, *calibrationFile)
	}

	tuning := config.DefaultTuningConfig()
	if *configFile != "" {
		tuning, err = config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	tracker := blob.NewTracker(blob.TrackerConfigFromTuning(tuning))

	// Camera → screen transform: a saved calibration wins over plain scaling.
	camW, camH := tuning.GetCameraWidth(), tuning.GetCameraHeight()
	transform := calibration.Scale(camW, camH, *screenWidth, *screenHeight)
	if *calibrationFile != "" {
		if _, statErr := os.Stat(*calibrationFile); statErr == nil {
			transform, err = calibration.Load(*calibrationFile)
			if err != nil {
				log.Fatalf("failed to load calibration: %v", err)
			}
			log.Printf("loaded calibration from %s", *calibrationFile)
		}
	}
	tracker.SetTransformer(transform)

	controller := calibration.NewController(tracker,
		calibration.GridTargets(*screenWidth, *screenHeight, cols, rows, 0.1*min(*screenWidth, *screenHeight)))
	controller.Fallback = transform
	if *calibrationFile != "" {
		path := *calibrationFile
		controller.OnComplete = func(t calibration.Affine, res calibration.FitResult) {
			if err := calibration.Save(path, t); err != nil {
				log.Printf("failed to save calibration: %v", err)
				return
			}
			log.Printf("saved calibration to %s (rmse=%.2fpx, %s)", path, res.RMSE, res.Quality)
		}
	}
	tracker.SetListener(controller)

	// Frame source.
	var (
		source     pipeline.Source
		sourceName string
		header     = replay.LogHeader{
			Version:      replay.FormatVersion,
			CameraWidth:  camW,
			CameraHeight: camH,
			FrameRate:    tuning.GetFrameRate(),
		}
	)
	if *replayFile != "" {
		reader, err := replay.Open(*replayFile)
		if err != nil {
			log.Fatalf("failed to open replay: %v", err)
		}
		defer reader.Close()
		source = reader
		sourceName = "replay:" + filepath.Base(*replayFile)
		header = reader.Header()
	} else {
		gen := replay.NewSyntheticGenerator(*seed)
		gen.Width, gen.Height = camW, camH
		gen.FrameRate = tuning.GetFrameRate()
		gen.MaxFrames = *maxFrames
		gen.Start = time.Now()
		source = gen
		sourceName = fmt.Sprintf("synthetic:%d", *seed)
	}

	var period time.Duration
	if *realtime {
		period = tuning.FramePeriod()
	}

	runnerCfg := pipeline.Config{
		Tracker:       tracker,
		Source:        source,
		FramePeriod:   period,
		UseSourceTime: true,
	}

	if *recordFile != "" {
		header.CreatedNs = time.Now().UnixNano()
		w, err := replay.Create(*recordFile, header)
		if err != nil {
			log.Fatalf("failed to create frame log: %v", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Printf("failed to close frame log: %v", err)
			}
			log.Printf("recorded %d frames to %s", w.Frames(), *recordFile)
		}()
		runnerCfg.Recorder = w
	}

	var touchLog *store.Store
	if *dbPath != "" {
		touchLog, err = store.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open touch log: %v", err)
		}
		defer touchLog.Close()
		id, err := touchLog.StartSession(*sessionLabel, sourceName, tracker.Config, time.Now())
		if err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
		log.Printf("touch log session %s", id)
		defer func() {
			if err := touchLog.EndSession(time.Now()); err != nil {
				log.Printf("failed to end session: %v", err)
			}
		}()
		runnerCfg.Persistence = touchLog
	}

	activity := monitor.NewActivity(600)
	runnerCfg.Sinks = append(runnerCfg.Sinks, activity)

	var plotter *monitor.TrailPlotter
	if *plotsDir != "" {
		plotter = monitor.NewTrailPlotter(*screenWidth, *screenHeight)
		if err := plotter.Start(*plotsDir); err != nil {
			log.Fatalf("failed to start trail plotter: %v", err)
		}
		runnerCfg.Sinks = append(runnerCfg.Sinks, plotter)
	}

	runner, err := pipeline.NewRunner(runnerCfg)
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	if *calibrate {
		controller.Start()
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listen != "" {
		wsCfg := monitor.WebServerConfig{
			Address:    *listen,
			Output:     tracker.Output(),
			Stats:      runner,
			Activity:   activity,
			Calibrator: controller,
			Width:      *screenWidth,
			Height:     *screenHeight,
		}
		if touchLog != nil {
			wsCfg.TouchLog = touchLog
		}
		ws, err := monitor.NewWebServer(wsCfg)
		if err != nil {
			log.Fatalf("failed to create monitor: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("monitor server error: %v", err)
			}
			log.Print("monitor server terminated")
		}()
	}

	// When the source runs dry the monitor keeps serving until signalled.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil {
			log.Printf("pipeline stopped: %v", err)
		}
		s := runner.Stats()
		log.Printf("pipeline finished: frames=%d detections=%d born=%d died=%d", s.Frames, s.Detections, s.Born, s.Died)
		if *listen == "" {
			stop()
		}
	}()

	wg.Wait()

	if plotter != nil {
		plotter.Stop()
		n, err := plotter.Generate()
		if err != nil {
			log.Printf("failed to generate trail plots: %v", err)
		} else {
			log.Printf("wrote %d trail plots to %s", n, *plotsDir)
		}
	}
	log.Print("graceful shutdown complete")
}

// parseGrid parses a COLSxROWS target grid such as "3x3".
func parseGrid(s string) (cols, rows int, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected COLSxROWS, got %q", s)
	}
	if cols, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("bad column count %q: %w", parts[0], err)
	}
	if rows, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("bad row count %q: %w", parts[1], err)
	}
	if cols < 1 || rows < 1 || cols*rows < 3 {
		return 0, 0, fmt.Errorf("grid %dx%d needs at least 3 targets", cols, rows)
	}
	return cols, rows, nil
}
