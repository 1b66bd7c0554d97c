package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/doomsday/server/internal/config"
	"github.com/doomsday/server/internal/core/event"
	coresys "github.com/doomsday/server/internal/core/system"
	"github.com/doomsday/server/internal/data"
	"github.com/doomsday/server/internal/disaster"
	"github.com/doomsday/server/internal/disaster/effects"
	"github.com/doomsday/server/internal/handler"
	gonet "github.com/doomsday/server/internal/net"
	"github.com/doomsday/server/internal/net/packet"
	"github.com/doomsday/server/internal/persist"
	"github.com/doomsday/server/internal/scripting"
	"github.com/doomsday/server/internal/system"
	"github.com/doomsday/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[31;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[31;1m  │\033[0m              doomsday  v0.1.0             \033[31;1m│\033[0m")
	fmt.Println("\033[31;1m  │\033[0m        regional disaster game server      \033[31;1m│\033[0m")
	fmt.Println("\033[31;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if err := packet.SetCharset(cfg.Network.Charset); err != nil {
		return fmt.Errorf("network charset: %w", err)
	}

	printBanner(cfg.Server.Name)

	// 3. Optional PostgreSQL history log
	var history *persist.HistoryRepo
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.OpenDB(ctx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		applied, err := db.Migrate(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printStat("migrations applied", applied)
		history = persist.NewHistoryRepo(db)
		fmt.Println()
	}

	// 4. Data
	printSection("data")
	messages, err := data.LoadMessageTable(cfg.Disaster.MessagesFile)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	printStat("announcement texts", messages.Count())

	seed := cfg.Disaster.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// 5. Effects: built-ins, then scripts (scripts may override a tag)
	registry := disaster.NewRegistry()
	effects.RegisterAll(registry)
	if cfg.Scripting.Enabled {
		luaEngine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer luaEngine.Close()
		printStat("scripted effects", luaEngine.RegisterEffects(registry))
	}
	printStat("effect types", len(registry.Tags()))

	// 6. World and disaster service
	worldState := world.NewState()
	sessions := gonet.NewSessionStore()
	bus := event.NewBus()
	broadcaster := handler.NewBroadcaster(worldState, sessions, cfg.Disaster, log)

	svc, err := disaster.NewService(disaster.Deps{
		Source:        data.RegionFile{Path: cfg.Disaster.RegionsFile, Log: log},
		Registry:      registry,
		World:         worldState.Blocks,
		Members:       worldState,
		Notifier:      broadcaster,
		Messages:      messages.Resolver(cfg.Server.Language),
		Bus:           bus,
		Rand:          rng,
		Tick:          cfg.Network.TickRate,
		CheckInterval: cfg.CheckTicks(),
		Log:           log,
	})
	if err != nil {
		return fmt.Errorf("disaster service: %w", err)
	}
	if !cfg.Disaster.AutoStart {
		svc.DisableAutomatic()
	}
	printStat("regions", svc.State().RegionCount())

	if cfg.World.SeedTerrain {
		printStat("terrain blocks", seedTerrain(worldState, svc.State(), cfg.World, rng))
	}
	fmt.Println()

	// 7. Packet handlers
	pktReg := packet.NewRegistry(log)
	deps := &handler.Deps{
		Config:    cfg,
		Log:       log,
		World:     worldState,
		Sessions:  sessions,
		Disasters: svc,
	}
	if history != nil {
		deps.History = history
	}
	handler.RegisterAll(pktReg, deps)

	// 8. Network server
	netServer, err := gonet.NewServer(cfg.Network.BindAddress, gonet.Limits{
		MaxConnections: cfg.Network.MaxConnections,
		MaxPerIP:       cfg.Network.MaxPerIP,
	}, gonet.SessionOptions{
		InSize:       cfg.Network.InQueueSize,
		OutSize:      cfg.Network.OutQueueSize,
		PktPerSec:    cfg.Network.PacketsPerSecond,
		WriteTimeout: cfg.Network.WriteTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()

	// 9. Systems
	runner := coresys.NewRunner(cfg.Network.TickRate, log)
	runner.Register(system.NewInputSystem(netServer, pktReg, sessions, cfg.Network.MaxPacketsPerTick, worldState, log))
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewDisasterSystem(svc))
	runner.Register(system.NewPhysicsSystem(worldState, cfg.World.Drag, cfg.World.Gravity))
	runner.Register(system.NewStatusTickSystem(worldState))
	runner.Register(system.NewBlockSyncSystem(worldState))
	runner.Register(system.NewOutputSystem(sessions))
	var historySys *system.HistorySystem
	if history != nil {
		historySys = system.NewHistorySystem(bus, history, log, int(5*time.Second/cfg.Network.TickRate))
		runner.Register(historySys)
	}

	// 10. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("game loop running (tick: %s, check every %d ticks)", cfg.Network.TickRate, cfg.CheckTicks()))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Network.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			// Revert every running effect before the listener goes away.
			svc.Shutdown()
			netServer.Shutdown()
			// Deliver the end events and reverted blocks to clients still
			// connected, then write the history rows.
			runner.TickPhase(coresys.PhasePreUpdate, cfg.Network.TickRate)
			runner.TickPhase(coresys.PhaseOutput, cfg.Network.TickRate)
			if historySys != nil {
				historySys.Flush()
			}
			sessions.CloseAll()
			log.Info("server stopped",
				zap.Uint64("ticks", runner.Ticks()),
				zap.Uint64("overruns", runner.Overruns()),
				zap.Int("open_connections", netServer.Connections()),
			)
			return nil
		}
	}
}

// seedTerrain lays flat terrain in every region. Returns the number of blocks.
func seedTerrain(ws *world.State, st *disaster.State, cfg config.WorldConfig, rng *rand.Rand) int {
	opts := world.TerrainOptions{
		SurfaceY:    cfg.SurfaceY,
		Depth:       cfg.Depth,
		WaterChance: cfg.WaterChance,
		TreeChance:  cfg.TreeChance,
	}
	n := 0
	st.EachRegion(func(r *disaster.Region) {
		n += ws.Blocks.SeedFlat(r.Bounds, opts, rng)
	})
	return n
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
