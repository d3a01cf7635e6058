package main

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/robot"
)

//ControlFrame is one message from the driver station
type ControlFrame struct {
	Axes      map[string]float64 `json:"axes"`    //each nominally between -1 and 1
	Buttons   map[string]bool    `json:"buttons"` //held buttons
	Mode      string             `json:"mode"`    //requested robot mode, empty to keep
	Emergency bool               `json:"emergency"`
}

func (f ControlFrame) clone() ControlFrame {
	c := f
	c.Axes = make(map[string]float64, len(f.Axes))
	for k, v := range f.Axes {
		c.Axes[k] = v
	}
	c.Buttons = make(map[string]bool, len(f.Buttons))
	for k, v := range f.Buttons {
		c.Buttons[k] = v
	}
	return c
}

func (f ControlFrame) Axis(name string) float64 { return f.Axes[name] }
func (f ControlFrame) Button(name string) bool { return f.Buttons[name] }

//Controls is the latest driver input, written by the control socket and
//copied once per cycle by the control loop
type Controls struct {
	sync.Mutex
	frame       ControlFrame
	UpdateCount uint64 //number of frames received
}

//Update replaces the current frame
func (c *Controls) Update(f ControlFrame) {
	f = f.clone()
	c.Lock()
	defer c.Unlock()
	c.frame = f
	c.UpdateCount++
}

//Release zeroes the sticks and buttons when the driver disconnects. The
//requested mode and emergency flag are kept.
func (c *Controls) Release() {
	c.Lock()
	defer c.Unlock()
	c.frame.Axes = nil
	c.frame.Buttons = nil
}

//Snapshot copies the current frame
func (c *Controls) Snapshot() ControlFrame {
	c.Lock()
	defer c.Unlock()
	return c.frame.clone()
}

//frameInput hands the cycle's snapshot to the teleop loop
type frameInput struct {
	frame ControlFrame
}

func (in *frameInput) Axis(name string) float64 { return in.frame.Axis(name) }
func (in *frameInput) Button(name string) bool { return in.frame.Button(name) }

//applyRequests carries mode and emergency requests from a frame over to the
//robot. Frames are validated by the socket handler.
func applyRequests(bot *robot.Robot, f ControlFrame, now time.Time, log *zap.Logger) {
	if f.Emergency {
		bot.ActivateEmergency(now)
	} else {
		bot.RecoverFromEmergency(now)
	}
	if f.Mode == "" {
		return
	}
	m, err := robot.ParseMode(f.Mode)
	if err != nil {
		log.Warn("ignoring mode request", zap.Error(err))
		return
	}
	bot.SetMode(m, now)
}
