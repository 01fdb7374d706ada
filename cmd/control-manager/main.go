package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/api"
	"uav-control-manager/internal/bridge"
	"uav-control-manager/internal/bumper"
	"uav-control-manager/internal/config"
	"uav-control-manager/internal/core"
	"uav-control-manager/internal/geofence"
	"uav-control-manager/internal/hardware"
	"uav-control-manager/internal/logger"
	"uav-control-manager/internal/messaging"
	"uav-control-manager/internal/storage"
	"uav-control-manager/internal/transform"
	"uav-control-manager/internal/types"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "/etc/control-manager/config.yaml", "Path to the YAML configuration")

	// Service log level, -1 keeps the configured one
	var serviceLogLevel int
	flag.IntVar(&serviceLogLevel, "log", -1, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")

	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.NewLogger(os.Stderr, logger.LogLevelError).Fatalf("Failed to load configuration: %v", err)
	}

	level := logger.LogLevel(cfg.Log.Level)
	if serviceLogLevel >= 0 {
		level = logger.LogLevel(serviceLogLevel)
	}
	l := logger.NewLogger(os.Stdout, level)

	l.Infof("Starting control manager for %s...", cfg.UAV.Name)
	lockMemory(l)

	svc, err := newService(cfg, l)
	if err != nil {
		l.Fatalf("Failed to set up service: %v", err)
	}
	if err := svc.start(); err != nil {
		svc.shutdown()
		l.Fatalf("Failed to start system: %v", err)
	}

	l.Infof("System started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	svc.shutdown()
	l.Infof("Shutdown complete")
}

// service owns every component of the process.
type service struct {
	cfg    *config.Config
	logger *logger.Logger

	manager  *core.ControlManager
	bridge   *bridge.Bridge
	bumpers  *bumper.Store
	outputs  *hardware.Outputs
	buttons  *hardware.Buttons
	journal  *storage.SqliteJournal
	recorder *storage.Recorder
	redis    *messaging.RedisClient
	http     *api.Server

	cancel context.CancelFunc
}

func newService(cfg *config.Config, l *logger.Logger) (*service, error) {
	s := &service{cfg: cfg, logger: l}
	t := cfg.Transport

	if !t.ZMQ.Enabled {
		return nil, fmt.Errorf("zmq transport is required to reach the flight stack")
	}
	b, err := bridge.New(t.ZMQ.TelemetryAddress, t.ZMQ.CommandAddress, l.WithTag("bridge"))
	if err != nil {
		return nil, err
	}
	s.bridge = b

	deps := core.Dependencies{
		FlightStack: b,
		Transformer: newTransformer(cfg),
	}

	if cfg.SafetyArea.Enabled {
		area, err := newSafetyArea(cfg.SafetyArea)
		if err != nil {
			s.shutdown()
			return nil, fmt.Errorf("invalid safety area: %w", err)
		}
		deps.SafetyArea = area
	}

	s.bumpers = bumper.NewStore(config.Seconds(cfg.Bumper.Timeout))
	deps.Bumper = s.bumpers

	if t.GPIO.Enabled {
		chip, err := hardware.OpenChip(t.GPIO.Chip)
		if err != nil {
			s.shutdown()
			return nil, err
		}
		s.outputs = hardware.NewOutputs(chip, t.GPIO.Lines, l.WithTag("gpio"))
		if err := s.outputs.Initialize(); err != nil {
			s.shutdown()
			return nil, err
		}
		deps.Gripper = s.outputs
		deps.Indicator = s.outputs
	}

	if t.Redis.Enabled {
		// the surface is attached once the manager exists
		s.redis = messaging.NewRedisClient(t.Redis.Host, t.Redis.Port, t.Redis.DB, l.WithTag("redis"), nil, s.bumpers)
		if err := s.redis.Connect(); err != nil {
			s.shutdown()
			return nil, err
		}
		deps.Status = append(deps.Status, s.redis)
	}

	var sinks []storage.Sink
	if t.Journal.Enabled {
		j, err := storage.OpenJournal(t.Journal.Path)
		if err != nil {
			s.shutdown()
			return nil, err
		}
		s.journal = j
		sinks = append(sinks, j)
	}
	if s.redis != nil {
		redis := s.redis
		sinks = append(sinks, storage.SinkFunc(func(_ context.Context, ev types.Event) error {
			return redis.ReportEvent(ev)
		}))
	}
	if len(sinks) > 0 {
		s.recorder = storage.NewRecorder(l.WithTag("journal"), sinks...)
		deps.Journal = s.recorder
	}

	m, err := core.NewControlManager(cfg, deps, l)
	if err != nil {
		s.shutdown()
		return nil, err
	}
	s.manager = m
	if s.redis != nil {
		s.redis.SetSurface(m)
	}

	if t.HTTP.Enabled {
		var events api.EventSource
		if s.journal != nil {
			events = s.journal
		}
		s.http = api.NewServer(m, events, l.WithTag("http"), l.Level() >= logger.LogLevelDebug)
		// registered after construction; the status task only starts in start()
		m.AddStatusPublisher(s.http)
	}

	if t.Evdev.Enabled {
		btns, err := hardware.NewButtons(t.Evdev.Device, t.Evdev.Buttons, func(name string) {
			resp := m.HandleJoystickButton(name)
			if !resp.Success {
				l.Warnf("Button %s: %s", name, resp.Message)
			}
		}, l.WithTag("buttons"))
		if err != nil {
			s.shutdown()
			return nil, err
		}
		s.buttons = btns
	}

	return s, nil
}

func (s *service) start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if err := s.manager.Start(ctx); err != nil {
		return err
	}
	s.bridge.Start(s.manager)

	if s.redis != nil {
		if err := s.redis.StartListening(); err != nil {
			return err
		}
	}
	if s.buttons != nil {
		if err := s.buttons.Initialize(); err != nil {
			return err
		}
	}
	if s.http != nil {
		go func() {
			if err := s.http.Listen(s.cfg.Transport.HTTP.Address); err != nil {
				s.logger.Errorf("HTTP surface stopped: %v", err)
			}
		}()
	}
	return nil
}

// shutdown tears down in reverse dependency order. Inputs stop first so no
// command reaches a stopped manager; the recorder closes after the manager so
// its last events are flushed.
func (s *service) shutdown() {
	if s.buttons != nil {
		s.buttons.Cleanup()
	}
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Warnf("HTTP shutdown: %v", err)
		}
		cancel()
	}
	if s.bridge != nil {
		s.bridge.Close()
	}
	if s.manager != nil {
		s.manager.Shutdown()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warnf("Redis close: %v", err)
		}
	}
	if s.recorder != nil {
		s.recorder.Close()
		if n := s.recorder.Dropped(); n > 0 {
			s.logger.Warnf("Journal dropped %d events", n)
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warnf("Journal close: %v", err)
		}
	}
	if s.outputs != nil {
		s.outputs.Cleanup()
	}
}

func newTransformer(cfg *config.Config) *transform.Tree {
	frames := make([]transform.Frame, 0, len(cfg.Frames))
	for _, f := range cfg.Frames {
		frames = append(frames, transform.Frame{
			Name:        f.Name,
			Translation: r3.Vec{X: f.Translation[0], Y: f.Translation[1], Z: f.Translation[2]},
			Yaw:         f.Yaw,
		})
	}
	return transform.NewTree(cfg.UAV.WorkingFrame, frames)
}

func newSafetyArea(c config.SafetyAreaConfig) (*geofence.Geofence, error) {
	obstacles := make([]geofence.Obstacle, 0, len(c.Obstacles))
	for _, o := range c.Obstacles {
		obstacles = append(obstacles, geofence.Obstacle{
			Polygon: planar(o.Points),
			MinZ:    o.MinZ,
			MaxZ:    o.MaxZ,
		})
	}
	return geofence.New(planar(c.Border), obstacles, c.MinHeight, c.MaxHeight)
}

func planar(points [][2]float64) []r3.Vec {
	out := make([]r3.Vec, len(points))
	for i, p := range points {
		out[i] = r3.Vec{X: p[0], Y: p[1]}
	}
	return out
}
