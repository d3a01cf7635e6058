package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/config"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/logging"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/robot"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/vision"
)

func main() {
	app := cli.NewApp()
	app.Name = "bottomside"
	app.Usage = "run the robot control loop"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Value: "croissant.yaml",
			Usage: "config file, missing is ok",
		},
		cli.StringFlag{
			Name:  "serial",
			Usage: "serial port for arduino (overrides config)",
		},
		cli.StringSliceFlag{
			Name:  "camera",
			Usage: "cameras (overrides config)",
		},
		cli.StringFlag{
			Name:  "http",
			Usage: "http server listening address (overrides config)",
		},
	}
	app.Action = func(c *cli.Context) error {
		cfg, err := config.Load(c.GlobalString("config"))
		if err != nil {
			return err
		}
		if s := c.GlobalString("serial"); s != "" {
			cfg.Robot.Serial = s
		}
		if cams := c.GlobalStringSlice("camera"); len(cams) > 0 {
			cfg.Robot.Cameras = cams
		}
		if h := c.GlobalString("http"); h != "" {
			cfg.Robot.HTTP = h
		}
		log, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, log)
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ard, err := ConnectArduino(cfg.Robot.Serial, cfg.Robot.Baud, DefaultPins, Geometry{
		TicksPerRev:   cfg.Drive.TicksPerRev,
		WheelDiameter: cfg.Drive.WheelDiameter,
	}, cfg.Drive.MaxSpeed)
	if err != nil {
		return err
	}
	log.Info("arduino connected", zap.String("serial", cfg.Robot.Serial))

	tracker := vision.NewTracker(cfg.Vision.Staleness, cfg.Vision.MaxSamples)
	input := &frameInput{}
	bot, err := robot.New(robot.Options{
		Teleop:    cfg.Drive.Teleop,
		Speeds:    cfg.Drive.MaxSpeed,
		Ramsete:   cfg.Drive.Ramsete,
		Auto:      cfg.Auto,
		Period:    cfg.Robot.Period(),
		StartPose: geom.NewPose(cfg.Robot.StartX, cfg.Robot.StartY, 0),
	}, robot.Hardware{
		Drive:   ard,
		Input:   input,
		Sensors: ard,
		Vision:  tracker,
		Intake:  ard,
		Arm:     ard,
	}, log)
	if err != nil {
		ard.Close()
		return err
	}

	var cams []frameSource
	var opened []*camera
	for _, path := range cfg.Robot.Cameras {
		cam, err := openCamera(path)
		if err != nil {
			ard.Close()
			return err
		}
		cams = append(cams, cam)
		opened = append(opened, cam)
	}

	var controls Controls
	srv := newServer(log, &controls, tracker, bot.Status, cfg.Robot.Serial, cfg.Robot.Cameras)
	mux := http.NewServeMux()
	srv.routes(mux, cams)
	httpServer := &http.Server{
		Addr:              cfg.Robot.HTTP,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return controlLoop(ctx, bot, ard, &controls, input, cfg.Robot.Period(), log)
	})
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.Robot.HTTP))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	//a dead camera must not take the drivetrain down with it
	for _, cam := range opened {
		cam := cam
		g.Go(func() error {
			if err := cam.Run(ctx, log); err != nil {
				log.Error("camera stopped", zap.String("path", cam.path), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

//controlLoop runs one robot cycle per tick until ctx is done, then disables
//the robot and closes the serial link
func controlLoop(ctx context.Context, bot *robot.Robot, ard *Arduino, controls *Controls, input *frameInput, period time.Duration, log *zap.Logger) error {
	defer ard.Close()
	serialWarn := rate.Sometimes{First: 1, Interval: 5 * time.Second}
	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			bot.SetMode(robot.Disabled, time.Now())
			if err := ard.Flush(); err != nil {
				log.Warn("final arduino flush failed", zap.Error(err))
			}
			log.Info("control loop stopped")
			return nil
		case now := <-tick.C:
			input.frame = controls.Snapshot()
			applyRequests(bot, input.frame, now, log)
			bot.Step(now)
			if err := ard.Flush(); err != nil {
				serialWarn.Do(func() { log.Warn("arduino write failed", zap.Error(err)) })
			}
		}
	}
}
