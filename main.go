package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gekkolab/vivarium/internal/api"
	"github.com/gekkolab/vivarium/internal/bot"
	"github.com/gekkolab/vivarium/internal/classify"
	"github.com/gekkolab/vivarium/internal/config"
	"github.com/gekkolab/vivarium/internal/db"
	"github.com/gekkolab/vivarium/internal/metrics"
	"github.com/gekkolab/vivarium/internal/monitoring"
	"github.com/gekkolab/vivarium/internal/motion"
	"github.com/gekkolab/vivarium/internal/poller"
	"github.com/gekkolab/vivarium/internal/sensors"
	"github.com/gekkolab/vivarium/internal/timeutil"
	"github.com/gekkolab/vivarium/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Run with simulated sensors")
	listen      = flag.String("listen", ":8080", "Listen address")
	dbFile      = flag.String("db", "vivarium.db", "Database path")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("vivarium %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	database, err := db.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := os.MkdirAll(cfg.CaptureDir, 0o755); err != nil {
		log.Fatalf("failed to create capture directory: %v", err)
	}

	clock := timeutil.RealClock{}

	climateStore := db.NewClimateStore(database)
	weatherStore := db.NewWeatherStore(database)
	statsStore := db.NewSystemStatsStore(database)
	detectionStore := db.NewDetectionStore(database)

	// Dev mode swaps every hardware adapter for its simulator so the full
	// pipeline runs on a laptop with no sensors attached.
	var (
		climateSensor sensors.ClimateSensor
		weatherClient sensors.WeatherClient
		camera        sensors.Camera
	)
	if *devMode {
		climateSensor = sensors.NewSimClimateSensor(clock)
		weatherClient = sensors.NewSimWeather(cfg.WeatherLat, cfg.WeatherLon, clock)
		camera = sensors.NewSimCamera(true)
	} else {
		climateSensor = sensors.NewSerialClimateSensor(cfg.ClimateSerialPort, cfg.ClimateBaudRate, clock)
		weatherClient = sensors.NewOpenMeteoClient("", cfg.WeatherLat, cfg.WeatherLon, clock)
		camera = sensors.NewCLICamera(cfg.CameraCommand, cfg.CameraCaptureFlags)
	}
	sampler := sensors.NewResourceSampler("/", clock)
	ring := metrics.NewRingStore(cfg.RingRetention, clock)

	climatePoller := poller.New(poller.Config[*sensors.ClimateSample]{
		Name:     "climate",
		Interval: cfg.ClimateInterval,
		Acquire:  climateSensor.Read,
		Persist: func(s *sensors.ClimateSample) error {
			return climateStore.Insert(db.ClimateReading{
				TemperatureC: s.TemperatureC,
				HumidityPct:  s.HumidityPct,
				PressureHPa:  s.PressureHPa,
				RecordedAt:   s.Timestamp,
			})
		},
		Clock: clock,
	})

	weatherPoller := poller.New(poller.Config[*sensors.WeatherSample]{
		Name:     "weather",
		Interval: cfg.WeatherInterval,
		Acquire:  weatherClient.Current,
		Persist: func(s *sensors.WeatherSample) error {
			return weatherStore.Insert(db.WeatherReading{
				TemperatureC: s.TemperatureC,
				HumidityPct:  s.HumidityPct,
				Latitude:     s.Latitude,
				Longitude:    s.Longitude,
				RecordedAt:   s.Timestamp,
			})
		},
		Clock: clock,
	})

	resourcePoller := poller.New(poller.Config[*sensors.ResourceSample]{
		Name:     "resources",
		Interval: cfg.SampleInterval,
		Acquire:  sampler.Collect,
		Persist: func(s *sensors.ResourceSample) error {
			ring.Add(*s)
			return nil
		},
		Clock: clock,
	})

	aggregator := metrics.NewAggregator(ring, statsStore, cfg.AggregateInterval, cfg.StatsRetention, clock)

	motionPipeline := motion.NewPipeline(
		camera,
		motion.NewDetector(cfg.MotionSensitivity),
		cfg.CaptureDir,
		cfg.MotionInterval,
		cfg.MinCaptureGap,
		motion.Retention{MaxAge: cfg.CaptureMaxAge, MaxCount: cfg.CaptureMaxCount},
		clock,
	)

	classifyPipeline := classify.NewPipeline(
		cfg.CaptureDir,
		classify.NewHTTPClassifier(cfg.ClassifierURL),
		detectionStore,
		cfg.ClassifyInterval,
		cfg.ClassifyInitialDelay,
		clock,
	)

	server := api.NewServer(climateStore, weatherStore, statsStore, detectionStore, ring, camera, cfg.CaptureDir, clock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return climatePoller.Run(ctx) })
	g.Go(func() error { return weatherPoller.Run(ctx) })
	g.Go(func() error { return resourcePoller.Run(ctx) })
	g.Go(func() error { return aggregator.Run(ctx) })
	g.Go(func() error { return motionPipeline.Run(ctx) })
	g.Go(func() error { return classifyPipeline.Run(ctx) })

	if cfg.MQTTBroker != "" {
		b := bot.New(bot.Config{
			Broker:       cfg.MQTTBroker,
			ClientID:     cfg.MQTTClientID,
			CommandTopic: cfg.MQTTCommandTopic,
			ReplyTopic:   cfg.MQTTReplyTopic,
			Climate:      climateStore,
			Weather:      weatherStore,
			Detections:   detectionStore,
			Resources:    ring,
			Clock:        clock,
		})
		g.Go(func() error { return b.Run(ctx) })
	} else {
		monitoring.Logf("bot: no broker configured, disabled")
	}

	g.Go(func() error {
		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(server.ServeMux()),
		}

		errCh := make(chan error, 1)
		go func() {
			monitoring.Logf("http: listening on %s", *listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		monitoring.Logf("http: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
	monitoring.Logf("graceful shutdown complete")
}
