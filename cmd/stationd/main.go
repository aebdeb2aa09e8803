// Command stationd is the ground-station telemetry daemon: it loads the
// field simulation from its component configs, serves the UDP wire
// protocol and the operator console's HTTP form surface, and drives the
// outbound visual-simulator tick, all through one serialized engine
// actor (internal/clock.Coordinator).
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/tss-groundstation/stationd/internal/clock"
	"github.com/tss-groundstation/stationd/internal/config"
	"github.com/tss-groundstation/stationd/internal/database"
	"github.com/tss-groundstation/stationd/internal/depsort"
	"github.com/tss-groundstation/stationd/internal/engine"
	"github.com/tss-groundstation/stationd/internal/handlers"
	"github.com/tss-groundstation/stationd/internal/health"
	"github.com/tss-groundstation/stationd/internal/jsonview"
	"github.com/tss-groundstation/stationd/internal/middleware"
	"github.com/tss-groundstation/stationd/internal/registry"
	"github.com/tss-groundstation/stationd/internal/router"
	"github.com/tss-groundstation/stationd/internal/wire"
)

// componentNames lists the component configs loaded from CONFIG_ROOT,
// one JSON file per simulated entity.
var componentNames = []string{"eva1", "eva2", "rover"}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("stationd: no .env file found, using environment as-is: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("stationd: configuration error: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("stationd: %v", err)
	}
}

func run(cfg *config.Config) error {
	table, err := registry.LoadDir(cfg.Simulation.ConfigRoot, componentNames)
	if err != nil {
		return fmt.Errorf("loading component configs: %w", err)
	}

	fieldKeys := make([]string, 0, len(table.Fields))
	for key := range table.Fields {
		fieldKeys = append(fieldKeys, key)
	}
	order, err := depsort.Sort(fieldKeys, table.DependencyKeys)
	if err != nil {
		return fmt.Errorf("resolving field dependency order: %w", err)
	}

	var notifier jsonview.Notifier
	var viewNotifier *database.ViewNotifier
	if cfg.Redis.Enabled {
		viewNotifier, err = database.NewViewNotifier(cfg.Redis)
		if err != nil {
			log.Printf("stationd: redis disabled, view fan-out will be file-only: %v", err)
		} else {
			notifier = viewNotifier
			defer viewNotifier.Close()
		}
	}
	store := jsonview.NewStore(cfg.Simulation.DataRoot, notifier)

	scenario, err := config.LoadScenario(cfg.Simulation.ScenarioFile)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}

	faultSeed := time.Now().UnixNano()
	if scenario != nil && scenario.FaultSeed != 0 {
		faultSeed = scenario.FaultSeed
	}

	eng, err := engine.LoadAndInitialize(store, faultSeed, table, order)
	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}

	if scenario != nil {
		eng.SetSwitches(engine.Switches{
			BatteryLU: scenario.Switches.BatteryLU,
			BatteryPS: scenario.Switches.BatteryPS,
			O2:        scenario.Switches.O2,
			Fan:       scenario.Switches.Fan,
			Pump:      scenario.Switches.Pump,
			CO2:       scenario.Switches.CO2,
		})
		log.Printf("stationd: loaded scenario %q", cfg.Simulation.ScenarioFile)
	}

	rtr := router.New(store, eng)

	conn, err := net.ListenPacket("udp", fmt.Sprintf(":%d", cfg.Simulation.UDPPort))
	if err != nil {
		return fmt.Errorf("binding udp socket: %w", err)
	}
	defer conn.Close()

	sender := wire.NewSender(conn, store, rtr)
	checker := health.NewChecker(viewNotifier)
	coordinator := clock.New(eng, rtr, store, conn, sender, checker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go coordinator.Run(ctx)
	defer coordinator.Stop()

	grpcServer, err := startGRPC(cfg)
	if err != nil {
		return fmt.Errorf("starting grpc health service: %w", err)
	}
	defer grpcServer.Stop()

	httpServer := buildHTTPServer(cfg, coordinator, checker)
	go func() {
		addr := cfg.Server.GetServerAddr()
		log.Printf("stationd: http form/health listener on %s", addr)
		if err := httpServer.Run(addr); err != nil {
			log.Printf("stationd: http server stopped: %v", err)
		}
	}()

	log.Printf("stationd: engine initialized with %d fields across %d components", eng.TotalFieldCount(), len(componentNames))
	log.Printf("stationd: udp wire listener on :%d", cfg.Simulation.UDPPort)

	waitForShutdown()
	log.Println("stationd: shutting down")
	return nil
}

// buildHTTPServer wires the gin engine: the form-POST write path and the
// health/ready/live probes, nothing else.
func buildHTTPServer(cfg *config.Config, coordinator *clock.Coordinator, checker *health.Checker) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())
	r.Use(middleware.Security())
	r.Use(middleware.RateLimit())

	formHandler := handlers.NewFormHandler(coordinator)
	healthHandler := handlers.NewHealthHandler(checker)

	r.POST("/form", formHandler.Apply)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/live", healthHandler.Live)

	return r
}

// startGRPC registers the standard gRPC health-check service, letting
// orchestration probes watch the same liveness signal the HTTP /live
// endpoint reports, without hand-rolling a protobuf schema.
func startGRPC(cfg *config.Config) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", cfg.GRPC.GetGRPCAddr())
	if err != nil {
		return nil, err
	}

	server := grpc.NewServer()
	healthSrv := grpchealth.NewServer()
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(server, healthSrv)

	go func() {
		log.Printf("stationd: grpc health service on %s", cfg.GRPC.GetGRPCAddr())
		if err := server.Serve(lis); err != nil {
			log.Printf("stationd: grpc server stopped: %v", err)
		}
	}()

	return server, nil
}

// waitForShutdown blocks until SIGINT/SIGTERM: shutdown is always
// operator-driven, never a fixed run duration.
func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
