package main

import (
	"context"
	"flag"
	"image"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"

	"github.com/openbench/labscan/camera"
	"github.com/openbench/labscan/catalog"
	"github.com/openbench/labscan/detections"
	"github.com/openbench/labscan/models"
	"github.com/openbench/labscan/overlay"
	"github.com/openbench/labscan/scan"
)

var debugMode bool

func init() {
	debugMode = os.Getenv("DEBUG") == "true"
}

func logTimings(t *models.ScanTimings) {
	if debugMode {
		log.Printf("[DEBUG] Inference cycle:\n"+
			"\tPreprocess:  %v\n"+
			"\tInference:   %v\n"+
			"\tPostprocess: %v\n"+
			"\tTotal:       %v",
			t.Preprocess,
			t.Inference,
			t.Postprocess,
			t.Total)
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "config/labscan.yaml", "path to config YAML")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	renderer, err := overlay.NewRenderer()
	if err != nil {
		log.Fatalf("Failed to create overlay renderer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Camera acquisition may be denied or fail; the server still
	// starts and reports the condition instead of crashing.
	var cam camera.FrameSource
	src, err := camera.Open(cfg.Camera.Device)
	if err != nil {
		log.Printf("Camera unavailable: %v", err)
	} else {
		cam = src
	}

	// Model load failure is persistent but not fatal: video still
	// renders without detections.
	sess, classes, ortLoaded, modelErr := loadModel(ctx, cfg.Model)
	if modelErr != nil {
		log.Printf("Model unavailable: %v", modelErr)
	}

	ctrl := scan.NewController(clock.New(), cfg.Scan.duration(), cfg.Scan.MotionThreshold)
	defer ctrl.Stop()

	var infer scan.InferFunc
	if sess != nil {
		infer = func(frame image.Image, displayW, displayH int) ([]models.Detection, error) {
			timings := &models.ScanTimings{}
			dets, err := detections.ProcessFrame(sess, frame, displayW, displayH, cfg.Model.Confidence, classes, timings)
			if err != nil {
				return nil, err
			}
			logTimings(timings)
			return dets, nil
		}
	}

	var sched *scan.Scheduler
	if cam != nil {
		sched = scan.NewScheduler(cam, ctrl, renderer, infer, clock.New(), cfg.Scan.schedulerConfig())
		sched.Start(ctx)
	}

	state := &AppState{
		Config:   cfg,
		Catalog:  cat,
		Cam:      cam,
		Ctrl:     ctrl,
		Sched:    sched,
		ModelErr: modelErr,
	}

	srv := &http.Server{
		Handler:      state.routes(),
		Addr:         cfg.Listen,
		WriteTimeout: 0, // the MJPEG stream writes indefinitely
		ReadTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs error
	errs = multierr.Append(errs, srv.Shutdown(shutdownCtx))
	if sched != nil {
		sched.Stop()
	}
	ctrl.Stop()
	if cam != nil {
		errs = multierr.Append(errs, cam.Close())
	}
	if sess != nil {
		sess.Destroy()
	}
	if ortLoaded {
		errs = multierr.Append(errs, ort.DestroyEnvironment())
	}
	if errs != nil {
		log.Printf("Shutdown errors: %v", errs)
	}
}

// loadModel initializes the ONNX runtime, fetches the model artifact,
// and builds the inference session. Every step can fail independently;
// the first failure becomes the persistent model error.
func loadModel(ctx context.Context, cfg ModelConfig) (*detections.Session, []string, bool, error) {
	libPath, err := resolveRuntimeLibrary(cfg.Library)
	if err != nil {
		return nil, nil, false, err
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, nil, false, err
	}

	classes, err := LoadClasses(cfg.Classes)
	if err != nil {
		return nil, nil, true, err
	}

	modelPath, err := detections.FetchModel(ctx, cfg.Source, os.TempDir())
	if err != nil {
		return nil, nil, true, err
	}

	sess, err := detections.NewSession(modelPath, len(classes))
	if err != nil {
		return nil, nil, true, err
	}
	return sess, classes, true, nil
}
