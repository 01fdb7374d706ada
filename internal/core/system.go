package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/librescoot/librefsm"

	"uav-control-manager/internal/config"
	"uav-control-manager/internal/logger"
	"uav-control-manager/internal/plugin"
	"uav-control-manager/internal/types"
	"uav-control-manager/internal/validator"
)

// ControlManager owns all supervisory state of one vehicle.
//
// Every aggregate has its own mutex and no two of them are ever held at the
// same time. safetyMu and activeMu are serialisation locks: safetyMu is held
// for a whole safety check, activeMu for a whole update pass or plugin
// switch. Both may wrap aggregate locks but never each other.
type ControlManager struct {
	cfg       *config.Config
	toggles   *config.Toggles
	logger    *logger.Logger
	now       func() time.Time
	validator *validator.Validator
	deps      Dependencies

	trackers    []plugin.TrackerSlot
	controllers []plugin.ControllerSlot

	nullTracker        int
	elandTracker       int
	ehoverTracker      int
	initialController  int
	elandController    int
	ehoverController   int
	failsafeController int

	// vehicle state
	stateMu      sync.Mutex
	state        types.VehicleState
	haveState    bool
	stateArrival time.Time
	innovation   float64
	headingJump  float64

	// flight-stack status and rc
	fsMu   sync.Mutex
	fs     types.FlightStackStatus
	haveFS bool
	rc     types.RCChannels

	// active plugins
	activeMu         sync.Mutex
	activeTracker    int
	activeController int
	lastSwitch       time.Time

	// latest commands
	cmdMu        sync.Mutex
	lastPosition *types.PositionCommand
	lastAttitude *types.AttitudeCommand
	lastOutput   *types.OutputCommand

	// constraints
	constraintsMu sync.Mutex
	requested     types.Constraints
	sanitized     types.Constraints

	// safety latches
	safetyMu     sync.Mutex
	latchMu      sync.Mutex
	latches      latches
	tiltErrSince time.Time

	// landing bookkeeping
	landMu        sync.Mutex
	landingState  types.LandingState
	landStartMass float64
	landBelow     time.Time

	// failsafe bookkeeping
	failsafeMu        sync.Mutex
	failsafeStartMass float64
	failsafeBelow     time.Time

	// escalating failsafe
	escalateSerial  sync.Mutex
	escMu           sync.Mutex
	escalationState types.EscalationState
	lastEscalation  time.Time
	rcEscalateHigh  bool

	// auxiliary behaviours
	auxMu         sync.Mutex
	bumperEngaged bool
	pirouette     pirouetteState
	rcGotoActive  bool

	landingFSM    *librefsm.Machine
	escalationFSM *librefsm.Machine

	safetyTask    *periodicTask
	elandTask     *periodicTask
	failsafeTask  *periodicTask
	bumperTask    *periodicTask
	pirouetteTask *periodicTask
	joystickTask  *periodicTask
	statusTask    *periodicTask

	cycleRunning atomic.Bool
	wg           sync.WaitGroup
	cancel       context.CancelFunc
}

// latches are the one-shot safety triggers. They are cleared when the motors
// are switched on.
type latches struct {
	motorsOn          bool
	elandTriggered    bool
	failsafeTriggered bool
	disarmTriggered   bool
	offboardCut       bool
	payloadReleased   bool
	failsafeActive    bool
}

// Option configures a ControlManager.
type Option func(*ControlManager)

// WithClock replaces the wall clock used for timeouts and hysteresis.
func WithClock(now func() time.Time) Option {
	return func(m *ControlManager) {
		m.now = now
	}
}

var (
	ErrNoFlightStack = errors.New("flight stack is required")
	ErrNoTransformer = errors.New("transformer is required")
)

// NewControlManager builds the plugin registry and every supervisory
// component from cfg. The null tracker is active and the motors are off.
func NewControlManager(cfg *config.Config, deps Dependencies, l *logger.Logger, opts ...Option) (*ControlManager, error) {
	if deps.FlightStack == nil {
		return nil, ErrNoFlightStack
	}
	if deps.Transformer == nil {
		return nil, ErrNoTransformer
	}

	env := plugin.EnvFromConfig(cfg)
	trackers, err := plugin.BuildTrackers(cfg.Trackers, env)
	if err != nil {
		return nil, err
	}
	controllers, err := plugin.BuildControllers(cfg.Controllers, env)
	if err != nil {
		return nil, err
	}

	m := &ControlManager{
		cfg:             cfg,
		toggles:         config.NewToggles(cfg),
		logger:          l,
		now:             time.Now,
		deps:            deps,
		trackers:        trackers,
		controllers:     controllers,
		requested:       cfg.Constraints,
		sanitized:       cfg.Constraints,
		landingState:    types.LandingIdle,
		escalationState: types.EscalationNone,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.nullTracker = plugin.TrackerIndex(trackers, cfg.NullTracker)
	m.elandTracker = plugin.TrackerIndex(trackers, cfg.Safety.Eland.Tracker)
	m.ehoverTracker = plugin.TrackerIndex(trackers, cfg.Safety.EHover.Tracker)
	m.initialController = plugin.ControllerIndex(controllers, cfg.InitialController)
	m.elandController = plugin.ControllerIndex(controllers, cfg.Safety.Eland.Controller)
	m.ehoverController = plugin.ControllerIndex(controllers, cfg.Safety.EHover.Controller)
	m.failsafeController = plugin.ControllerIndex(controllers, cfg.Safety.Failsafe.Controller)
	for name, idx := range map[string]int{
		"null tracker":        m.nullTracker,
		"eland tracker":       m.elandTracker,
		"ehover tracker":      m.ehoverTracker,
		"initial controller":  m.initialController,
		"eland controller":    m.elandController,
		"ehover controller":   m.ehoverController,
		"failsafe controller": m.failsafeController,
	} {
		if idx < 0 {
			return nil, fmt.Errorf("%s is not configured", name)
		}
	}

	if _, ok := trackers[m.elandTracker].Tracker.(plugin.Lander); !ok {
		return nil, fmt.Errorf("eland tracker %s cannot land", cfg.Safety.Eland.Tracker)
	}

	var area validator.SafetyArea
	if deps.SafetyArea != nil {
		area = deps.SafetyArea
	}
	var bumperSrc validator.BumperSource
	if deps.Bumper != nil {
		bumperSrc = deps.Bumper
	}
	m.validator = validator.New(cfg, m.toggles, deps.Transformer, area, bumperSrc)

	m.activeTracker = m.nullTracker
	m.activeController = m.initialController
	if err := m.trackers[m.nullTracker].Tracker.Activate(nil); err != nil {
		return nil, fmt.Errorf("failed to activate null tracker: %w", err)
	}
	m.applyConstraints(m.sanitized)

	m.safetyTask = newPeriodicTask("safety", config.Period(cfg.Rates.Safety), m.safetyTick)
	m.elandTask = newPeriodicTask("eland", config.Period(cfg.Rates.Eland), m.elandTick)
	m.failsafeTask = newPeriodicTask("failsafe", config.Period(cfg.Rates.Failsafe), m.failsafeTick)
	m.bumperTask = newPeriodicTask("bumper", config.Period(cfg.Rates.Bumper), m.bumperTick)
	m.pirouetteTask = newPeriodicTask("pirouette", config.Period(cfg.Rates.Pirouette), m.pirouetteTick)
	m.joystickTask = newPeriodicTask("joystick", config.Period(cfg.Rates.Joystick), m.joystickTick)
	m.statusTask = newPeriodicTask("status", config.Period(cfg.Rates.Status), m.statusTick)

	return m, nil
}

// Start brings up the state machines and the periodic tasks.
func (m *ControlManager) Start(ctx context.Context) error {
	m.logger.Infof("Starting control manager for %s", m.cfg.UAV.Name)

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if err := m.initFSM(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start state machines: %w", err)
	}

	m.safetyTask.Start()
	m.bumperTask.Start()
	m.joystickTask.Start()
	m.statusTask.Start()

	m.logger.Infof("Control manager started with tracker %s and controller %s",
		m.trackers[m.nullTracker].Name, m.controllers[m.initialController].Name)
	return nil
}

// Shutdown stops every task and waits for an in-flight control cycle.
func (m *ControlManager) Shutdown() {
	m.logger.Infof("Shutting down control manager")

	for _, t := range []*periodicTask{
		m.safetyTask, m.elandTask, m.failsafeTask, m.bumperTask,
		m.pirouetteTask, m.joystickTask, m.statusTask,
	} {
		t.Stop()
	}
	m.wg.Wait()

	if m.cancel != nil {
		m.cancel()
	}
}

// Toggles exposes the runtime toggles.
func (m *ControlManager) Toggles() *config.Toggles {
	return m.toggles
}

// === Snapshots ===

type stateSnapshot struct {
	state       types.VehicleState
	ok          bool
	arrival     time.Time
	innovation  float64
	headingJump float64
}

func (m *ControlManager) stateSnapshot() stateSnapshot {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return stateSnapshot{
		state:       m.state,
		ok:          m.haveState,
		arrival:     m.stateArrival,
		innovation:  m.innovation,
		headingJump: m.headingJump,
	}
}

func (m *ControlManager) vehicleState() (types.VehicleState, bool) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state, m.haveState
}

func (m *ControlManager) flightStatus() (types.FlightStackStatus, bool) {
	m.fsMu.Lock()
	defer m.fsMu.Unlock()
	return m.fs, m.haveFS
}

type activeSnapshot struct {
	tracker    int
	controller int
	lastSwitch time.Time
}

func (m *ControlManager) active() activeSnapshot {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	return activeSnapshot{
		tracker:    m.activeTracker,
		controller: m.activeController,
		lastSwitch: m.lastSwitch,
	}
}

// ActiveTracker returns the name of the active tracker.
func (m *ControlManager) ActiveTracker() string {
	return m.trackers[m.active().tracker].Name
}

// ActiveController returns the name of the active controller.
func (m *ControlManager) ActiveController() string {
	return m.controllers[m.active().controller].Name
}

func (m *ControlManager) commands() (*types.PositionCommand, *types.AttitudeCommand) {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()
	return copyPosition(m.lastPosition), copyAttitude(m.lastAttitude)
}

func (m *ControlManager) latestAttitude() *types.AttitudeCommand {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()
	return copyAttitude(m.lastAttitude)
}

func (m *ControlManager) setCommands(pos *types.PositionCommand, att *types.AttitudeCommand) {
	m.cmdMu.Lock()
	m.lastPosition = pos
	m.lastAttitude = att
	m.cmdMu.Unlock()
}

func (m *ControlManager) lastOutputCommand() (types.OutputCommand, bool) {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()
	if m.lastOutput == nil {
		return types.OutputCommand{}, false
	}
	return *m.lastOutput, true
}

func copyPosition(c *types.PositionCommand) *types.PositionCommand {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func copyAttitude(c *types.AttitudeCommand) *types.AttitudeCommand {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (m *ControlManager) latchSnapshot() latches {
	m.latchMu.Lock()
	defer m.latchMu.Unlock()
	return m.latches
}

func (m *ControlManager) updateLatches(fn func(l *latches)) {
	m.latchMu.Lock()
	fn(&m.latches)
	m.latchMu.Unlock()
}

func (m *ControlManager) landing() types.LandingState {
	m.landMu.Lock()
	defer m.landMu.Unlock()
	return m.landingState
}

func (m *ControlManager) escalation() types.EscalationState {
	m.escMu.Lock()
	defer m.escMu.Unlock()
	return m.escalationState
}

// haveLiveness reports whether there is a vehicle state and the flight stack
// reports odometry.
func (m *ControlManager) haveLiveness() bool {
	_, ok := m.vehicleState()
	fs, haveFS := m.flightStatus()
	return ok && haveFS && fs.HaveOdometry
}

// record writes an event to the journal, if there is one.
func (m *ControlManager) record(kind types.EventKind, format string, v ...interface{}) {
	if m.deps.Journal == nil {
		return
	}
	act := m.active()
	m.deps.Journal.Record(types.Event{
		Stamp:      m.now(),
		Kind:       kind,
		Message:    fmt.Sprintf(format, v...),
		Tracker:    m.trackers[act.tracker].Name,
		Controller: m.controllers[act.controller].Name,
	})
}

func (m *ControlManager) setIndicator(on bool) {
	if m.deps.Indicator == nil {
		return
	}
	if err := m.deps.Indicator.SetEmergency(on); err != nil {
		m.logger.Warnf("Failed to set emergency indicator: %v", err)
	}
}
