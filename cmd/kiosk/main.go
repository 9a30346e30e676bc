package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"triage-kiosk/internal/clock"
	"triage-kiosk/internal/config"
	"triage-kiosk/internal/core"
	"triage-kiosk/internal/db"
	httpserver "triage-kiosk/internal/http"
	"triage-kiosk/internal/llm"
	"triage-kiosk/internal/sensor"
	"triage-kiosk/internal/session"
	"triage-kiosk/internal/triage"

	_ "github.com/lib/pq"
)

func main() {
	// Load environment variables; a missing .env file is fine.
	if err := config.LoadEnv(); err != nil && !errors.Is(err, config.ErrEnvFileNotFound) {
		log.Fatalf("failed to load .env: %v", err)
	}
	dbURL := config.MustGet("DATABASE_URL")

	// Open database connection
	dbConn, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbConn.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}
	if err := db.Migrate(context.Background(), dbConn); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	store := db.NewStore(dbConn)
	notifier := db.NewNotifier(dbConn, dbURL, config.Get("NOTIFY_CHANNEL", "triage_classified"))

	// Sensor source: simulated by default, serial when a device is configured.
	var source sensor.Source
	sensorTimeout := config.GetDuration("SENSOR_TIMEOUT", 0)
	switch mode := config.Get("SENSOR_MODE", "simulated"); mode {
	case "simulated":
		source = sensor.NewSimulatedSource(
			time.Now().UnixNano(),
			config.GetDuration("SENSOR_MIN_DELAY", 3*time.Second),
			config.GetDuration("SENSOR_MAX_DELAY", 5*time.Second),
		)
		if sensorTimeout == 0 {
			sensorTimeout = 10 * time.Second
		}
	case "serial":
		source = sensor.NewSerialSource(config.MustGet("SENSOR_DEVICE"))
		if sensorTimeout == 0 {
			sensorTimeout = 120 * time.Second
		}
	default:
		log.Fatalf("unknown SENSOR_MODE %q", mode)
	}

	// Description refinement is optional; without an API key records keep the
	// deterministic summary.
	var summarizer *core.Summarizer
	if os.Getenv("OPENAI_API_KEY") != "" {
		summarizer = core.NewSummarizer(llm.NewOpenAIClient())
	}

	server := httpserver.NewServer(store, summarizer, notifier)
	machine := session.New(session.Config{
		Sensors:       source,
		Classifier:    triage.NewRuleBasedClassifier(triage.Config{}),
		Store:         store,
		Events:        server,
		Clock:         clock.New(),
		Scheduler:     session.NewTimerScheduler(),
		SensorTimeout: sensorTimeout,
	})
	server.Machine = machine

	addr := ":" + config.Get("PORT", "8080")
	log.Printf("Listening on %s", addr)
	if err := http.ListenAndServe(addr, server); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
