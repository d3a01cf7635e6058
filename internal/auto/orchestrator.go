package auto

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/command"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/metrics"
)

// Config is the autonomous section of the robot configuration.
type Config struct {
	Mode  string     `koanf:"mode"`
	Start string     `koanf:"start"`
	Paths PathConfig `koanf:"paths"`
	Turn  TurnConfig `koanf:"turn"`
}

// DefaultConfig does nothing from the right side.
func DefaultConfig() Config {
	return Config{
		Mode:  DoNothing.String(),
		Start: Right.String(),
		Paths: DefaultPathConfig(),
		Turn:  DefaultTurnConfig(),
	}
}

// Selection parses the configured mode and starting position.
func (c Config) Selection() (Selection, error) {
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return Selection{}, err
	}
	start, err := ParseStartingPosition(c.Start)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Mode: mode, Start: start}, nil
}

// Validate checks the config without planning any paths.
func (c Config) Validate() error {
	if _, err := c.Selection(); err != nil {
		return err
	}
	if c.Paths.MaxVelocity <= 0 || c.Paths.MaxAcceleration <= 0 || c.Paths.FirstPathMaxAcceleration <= 0 {
		return fmt.Errorf("auto: path velocity and acceleration limits must be positive")
	}
	if c.Turn.MaxOutput <= 0 || c.Turn.MaxOutput > 1 {
		return fmt.Errorf("auto: turn max_output must be in (0, 1], got %v", c.Turn.MaxOutput)
	}
	return nil
}

// Routine is a built, ready to run autonomous routine.
type Routine struct {
	Selection Selection
	Task      command.Task
	// Duration is the total time spent following paths.
	Duration time.Duration
}

// Orchestrator builds routines and runs at most one of them at a time.
type Orchestrator struct {
	log   *zap.Logger
	robot Robot
	paths PathConfig
	turn  TurnConfig

	runner  command.Runner
	current *Routine
	runID   uuid.UUID
	started time.Time
}

// NewOrchestrator returns an idle orchestrator.
func NewOrchestrator(robot Robot, paths PathConfig, turn TurnConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		log:   logger.Named("auto"),
		robot: robot,
		paths: paths,
		turn:  turn,
	}
}

// Build plans every path for sel up front so nothing is generated during the
// match.
func (o *Orchestrator) Build(sel Selection) (*Routine, error) {
	began := time.Now()
	task, d, err := o.buildTask(sel)
	if err != nil {
		o.log.Error("routine build failed", zap.Stringer("selection", sel), zap.Error(err))
		return nil, err
	}
	o.log.Info("routine built",
		zap.Stringer("selection", sel),
		zap.Duration("path_time", d),
		zap.Duration("took", time.Since(began)),
	)
	return &Routine{Selection: sel, Task: task, Duration: d}, nil
}

// Run starts r, cancelling any routine already running.
func (o *Orchestrator) Run(r *Routine, now time.Time) {
	o.Cancel(now)
	o.current = r
	o.runID = uuid.New()
	o.started = now
	o.runner.Schedule(r.Task, now)
	o.log.Info("routine started",
		zap.String("run_id", o.runID.String()),
		zap.Stringer("selection", r.Selection),
		zap.Duration("path_time", r.Duration),
	)
}

// Step advances the running routine by one cycle and reports whether it is
// still running afterwards.
func (o *Orchestrator) Step(now time.Time) bool {
	if o.current == nil {
		return false
	}
	if o.runner.Step(now) != command.Completed {
		return true
	}
	o.finish(now, "completed")
	return false
}

// Cancel interrupts the running routine. It does nothing when idle.
func (o *Orchestrator) Cancel(now time.Time) {
	if o.current == nil {
		return
	}
	o.runner.Cancel(now)
	o.finish(now, "cancelled")
}

// Running reports whether a routine is in progress.
func (o *Orchestrator) Running() bool { return o.current != nil }

// RunID identifies the current or last routine run.
func (o *Orchestrator) RunID() uuid.UUID { return o.runID }

func (o *Orchestrator) finish(now time.Time, outcome string) {
	metrics.RoutineRuns.WithLabelValues(o.current.Selection.Mode.String(), outcome).Inc()
	o.log.Info("routine "+outcome,
		zap.String("run_id", o.runID.String()),
		zap.Stringer("selection", o.current.Selection),
		zap.Duration("elapsed", now.Sub(o.started)),
	)
	o.current = nil
}
