// Command dcs-console runs the connector against a scripted in-memory
// server and exercises the whole pipeline: telemetry ingestion, the
// entity cache, notifications, session recording, metrics and NATS
// publishing. It is the development harness for the dcsconnect package.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/ctrue/dcs-connect/internal/config"
	"github.com/ctrue/dcs-connect/internal/influx"
	"github.com/ctrue/dcs-connect/internal/logging"
	intotel "github.com/ctrue/dcs-connect/internal/otel"
	"github.com/ctrue/dcs-connect/internal/publish"
	"github.com/ctrue/dcs-connect/internal/recorder"
	"github.com/ctrue/dcs-connect/internal/sim"
	"github.com/ctrue/dcs-connect/pkg/dcs"
	"github.com/ctrue/dcs-connect/pkg/dcsconnect"
)

var appVersion = "0.1.0"

func main() {
	var (
		configDir = flag.String("config", ".", "directory containing dcs_connect.cfg.json")
		host      = flag.String("host", "", "server host (overrides config)")
		port      = flag.Int("port", 0, "server port (overrides config)")
		duration  = flag.Duration("duration", 0, "exit after this long (0 = run until interrupted)")
		demoUnits = flag.Int("demo-units", 4, "number of scripted aircraft")
		demoTick  = flag.Duration("demo-tick", time.Second, "scripted telemetry interval")
		failAfter = flag.Duration("fail-after", 0, "tear the scripted streams down after this long to demo reconnection")
	)
	flag.Parse()

	if err := run(*configDir, *host, *port, *duration, *demoUnits, *demoTick, *failAfter); err != nil {
		fmt.Fprintf(os.Stderr, "dcs-console: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir, host string, port int, duration time.Duration, demoUnits int, demoTick, failAfter time.Duration) error {
	startTime := time.Now()

	slogMgr := logging.NewSlogManager()
	_ = slogMgr.Setup(nil, "info", "", nil)
	logger := slogMgr.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults", "error", err)
	} else {
		logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := config.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		_ = os.MkdirAll(logsDir, 0755)
	}
	logFilePath := logging.LogFilePath(logsDir, "dcs_connect", startTime)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		logger.Error("Failed to open log file", "error", err, "path", logFilePath)
		logFile = nil
	}

	var otelProvider *intotel.Provider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled && logFile != nil {
		otelProvider, err = intotel.New(intotel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			logger.Error("Failed to initialize OTel provider", "error", err)
			otelProvider = nil
		}
	}

	gelfAddr := ""
	if gl := config.GetGraylogConfig(); gl.Enabled {
		gelfAddr = gl.Address
	}
	var sdkProvider *sdklog.LoggerProvider
	if otelProvider != nil {
		sdkProvider = otelProvider.LoggerProvider()
	}
	if err := slogMgr.Setup(logFile, config.GetString("logLevel"), gelfAddr, sdkProvider); err != nil {
		logger.Error("Failed to set up logging", "error", err)
	}
	logger = slogMgr.Logger()
	logger.Info("dcs-console starting", "version", appVersion, "logFile", logFilePath)

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	// Recording database, optional
	var rec *recorder.Recorder
	recCfg := config.GetRecorderConfig()
	if recCfg.Enabled {
		if _, err := os.Stat(recCfg.LocalDir); os.IsNotExist(err) {
			_ = os.MkdirAll(recCfg.LocalDir, 0755)
		}
		dbm := recorder.NewDBManager(zlog, config.GetDBConfig(), recCfg.LocalDir)
		if err := dbm.Connect(); err != nil {
			logger.Error("Recorder database unavailable, recording disabled", "error", err)
		} else {
			rec = recorder.New(dbm, zlog, recCfg.FlushInterval)
			if err := rec.Init(); err != nil {
				logger.Error("Recorder init failed, recording disabled", "error", err)
				rec = nil
			}
			defer func() {
				if rec != nil {
					_ = rec.Close()
				}
				_ = dbm.Close()
			}()
		}
	}

	// Metrics sink, optional
	var metrics *influx.Manager
	if ixCfg := config.GetInfluxConfig(); ixCfg.Enabled {
		metrics = influx.NewManager(zlog, ixCfg, logging.LogFilePath(logsDir, "influx_backup", startTime)+".gz")
		if err := metrics.Connect(); err != nil {
			logger.Error("InfluxDB unavailable, metrics disabled", "error", err)
			metrics = nil
		} else {
			defer metrics.Close()
		}
	}

	// Notification bridge, optional
	var pub *publish.Publisher
	if natsCfg := config.GetNATSConfig(); natsCfg.Enabled {
		pub, err = publish.Connect(zlog, natsCfg)
		if err != nil {
			logger.Error("NATS unavailable, publishing disabled", "error", err)
			pub = nil
		} else {
			defer pub.Close()
		}
	}

	serverCfg := config.GetServerConfig()
	if host != "" {
		serverCfg.Host = host
	}
	if port != 0 {
		serverCfg.Port = port
	}

	dialer := sim.New(sim.Config{
		UnitCount: demoUnits,
		Tick:      demoTick,
		FailAfter: failAfter,
	})

	connector, err := dcsconnect.New(dcsconnect.Config{
		ReconnectInterval: serverCfg.ReconnectInterval,
		JoinTimeout:       serverCfg.JoinTimeout,
		UnitPollRate:      serverCfg.UnitPollRate,
		MaxBackoff:        serverCfg.MaxBackoff,
		UnitQueueSize:     serverCfg.UnitQueueSize,
		EventQueueSize:    serverCfg.EventQueueSize,
	}, dialer, logger)
	if err != nil {
		return fmt.Errorf("creating connector: %w", err)
	}
	defer connector.Close()

	wireNotifications(connector, logger, rec, metrics, pub, serverCfg.Addr())

	// Stamp every log record with the live connection context.
	slogMgr.SetContextProvider(func() []slog.Attr {
		if !connector.IsConnected() {
			return nil
		}
		info := connector.ServerInfo()
		return []slog.Attr{
			slog.String("server", connector.ServerAddr()),
			slog.String("mission", info.MissionName),
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	connector.Connect(serverCfg.Host, serverCfg.Port, serverCfg.ClientID)

	showcase(ctx, connector, logger)

	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			connector.Disconnect()
			if otelProvider != nil {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = slogMgr.Flush(flushCtx)
				_ = otelProvider.Shutdown(flushCtx)
				cancel()
			}
			return nil
		case <-statsTicker.C:
			info := connector.ServerInfo()
			logger.Info("Pipeline stats",
				"state", connector.State().String(),
				"units", len(connector.Units()),
				"players", len(connector.Players()),
				"marks", len(connector.Marks()),
				"missionTime", info.MissionTime,
			)
			if metrics != nil {
				depth := 0
				if rec != nil {
					depth = rec.QueueDepth()
				}
				_ = metrics.WritePoint(ctx, influx.BucketConnector,
					influx.PipelinePoint(serverCfg.Addr(), len(connector.Units()), 0, depth))
			}
		}
	}
}

// wireNotifications routes connector callbacks to the console, the
// recorder, the metrics sink and the NATS bridge.
func wireNotifications(c *dcsconnect.Connector, logger *slog.Logger, rec *recorder.Recorder, metrics *influx.Manager, pub *publish.Publisher, addr string) {
	c.OnStatusChange(func(s dcs.StatusChange) {
		logger.Info("Status", "connected", s.Connected, "reason", s.Reason)
		if pub != nil {
			pub.Status(s)
		}
		if metrics != nil {
			_ = metrics.WritePoint(context.Background(), influx.BucketSessions, influx.StatusPoint(addr, s))
		}
		if rec != nil {
			if s.Connected {
				if err := rec.StartSession(addr, c.ServerInfo()); err != nil {
					logger.Error("Failed to start recording session", "error", err)
				}
			} else {
				if err := rec.EndSession(); err != nil {
					logger.Error("Failed to end recording session", "error", err)
				}
			}
		}
	})

	c.OnUnitUpdate(func(u dcs.UnitUpdate) {
		if rec != nil {
			rec.RecordUnitUpdate(u)
		}
		if pub != nil {
			pub.UnitUpdated(u)
		}
		if metrics != nil && !u.Deleted() {
			_ = metrics.WritePoint(context.Background(), influx.BucketUnitTelemetry, influx.UnitPoint(u.Time, *u.Unit))
		}
	})

	c.OnPlayerInUnitChange(func(ch dcs.PlayerInUnitChange) {
		logger.Info("Occupancy", "unitId", ch.UnitID, "change", ch.Change.String(), "player", ch.Player.Name)
		if rec != nil {
			rec.RecordOccupancy(ch)
		}
		if pub != nil {
			pub.Occupancy(ch)
		}
	})

	c.OnPlayersChanged(func(players []dcs.Player) {
		logger.Info("Roster changed", "players", len(players))
		if pub != nil {
			pub.PlayersChanged(players)
		}
	})

	c.OnChatMessage(func(msg dcs.ChatMessage) {
		name := fmt.Sprintf("player %d", msg.PlayerID)
		if p, ok := c.Player(msg.PlayerID); ok {
			name = p.Name
		}
		logger.Info("Chat", "player", name, "message", msg.Message)
		if rec != nil {
			rec.RecordChat(name, msg)
		}
		if pub != nil {
			pub.Chat(msg)
		}
	})

	c.OnGroupCommandExecuted(func(cmd dcs.GroupCommandExecuted) {
		logger.Info("Group command", "groupId", cmd.GroupID, "menuItemId", cmd.MenuItemID)
		if pub != nil {
			pub.GroupCommand(cmd)
		}
	})

	c.OnEvent(func(e dcs.Event) {
		if rec != nil {
			rec.RecordEvent(e)
		}
		if pub != nil {
			pub.Event(e)
		}
	})
}

// showcase waits for the first connection and fires a few commands so the
// demo exercises the façade end to end.
func showcase(ctx context.Context, c *dcsconnect.Connector, logger *slog.Logger) {
	deadline := time.After(15 * time.Second)
	for !c.IsConnected() {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			logger.Warn("No connection yet, skipping showcase commands")
			return
		case <-time.After(100 * time.Millisecond):
		}
	}

	info := c.ServerInfo()
	logger.Info("Connected",
		"theatre", info.Theatre,
		"mission", info.MissionName,
		"multiplayer", info.IsMultiplayer,
	)

	if err := c.SendChatMessage(ctx, dcs.CoalitionAll, "dcs-console online"); err != nil {
		logger.Warn("SendChatMessage failed", "error", err)
	}
	if err := c.ShowText(ctx, "Connector attached", 10, false); err != nil {
		logger.Warn("ShowText failed", "error", err)
	}

	for _, g := range c.Groups() {
		path, err := c.AddGroupCommand(ctx, g.Name, "Check In", "check-in")
		if err != nil {
			logger.Warn("AddGroupCommand failed", "group", g.Name, "error", err)
			continue
		}
		logger.Debug("Registered menu command", "group", g.Name, "path", path)
	}

	if id, err := c.AddMark(ctx, "console", "dcs-console anchor", 42.3, 42.0, true); err == nil && id != 0 {
		logger.Debug("Placed map mark", "markId", id)
	}
}
