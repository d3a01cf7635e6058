package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/robot"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/vision"
)

//visionReport is one target sighting from the vision coprocessor, in field
//coordinates
type visionReport struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	HeadingDeg float64 `json:"heading_deg"`
	Front      bool    `json:"front"`
}

//server holds the HTTP side of the robot process
type server struct {
	log      *zap.Logger
	controls *Controls
	tracker  *vision.Tracker
	status   func() robot.Status
	serial   string
	cameras  []string
	now      func() time.Time

	driver   xMutex
	upgrader websocket.Upgrader
}

func newServer(log *zap.Logger, controls *Controls, tracker *vision.Tracker, status func() robot.Status, serial string, cameras []string) *server {
	return &server{
		log:      log.Named("http"),
		controls: controls,
		tracker:  tracker,
		status:   status,
		serial:   serial,
		cameras:  cameras,
		now:      time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (s *server) routes(mux *http.ServeMux, cams []frameSource) {
	for i, c := range cams {
		mux.HandleFunc(fmt.Sprintf("/cam/%d/frame.jpg", i), serveFrame(c))
		mux.HandleFunc(fmt.Sprintf("/cam/%d/stream", i), serveStream(c))
	}
	mux.HandleFunc("/info.json", s.handleInfo)
	mux.HandleFunc("/control", s.handleControl)
	mux.HandleFunc("/vision", s.handleVision)
	mux.Handle("/metrics", promhttp.Handler())
}

//handleInfo reports the process setup and the robot status
func (s *server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(struct {
		Serial   string
		Cameras  []string
		NCameras int
		Driver   string
		Robot    robot.Status
	}{
		Serial:   s.serial,
		Cameras:  s.cameras,
		NCameras: len(s.cameras),
		Driver:   s.driver.Holder(),
		Robot:    s.status(),
	})
}

//handleControl takes driver frames from one driver station at a time
func (s *server) handleControl(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache")
	if err := s.driver.Lock(r.RemoteAddr); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	defer s.driver.Unlock()
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("error upgrading control socket", zap.Error(err))
		return
	}
	defer ws.Close()

	log := s.log.With(zap.String("driver", r.RemoteAddr))
	log.Info("driver connected")
	//stop the robot if the driver goes away mid-drive
	defer func() {
		s.controls.Release()
		log.Info("driver disconnected")
	}()
	for {
		var f ControlFrame
		if err := ws.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("error reading from control socket", zap.Error(err))
			}
			return
		}
		if f.Mode != "" {
			if _, err := robot.ParseMode(f.Mode); err != nil {
				log.Warn("dropping control frame", zap.Error(err))
				continue
			}
		}
		s.controls.Update(f)
	}
}

//handleVision takes target reports from the vision coprocessor
func (s *server) handleVision(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("error upgrading vision socket", zap.Error(err))
		return
	}
	defer ws.Close()
	s.log.Info("vision connected", zap.String("remote", r.RemoteAddr))
	for {
		var rep visionReport
		if err := ws.ReadJSON(&rep); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("error reading from vision socket", zap.Error(err))
			}
			return
		}
		s.tracker.Report(vision.Observation{
			Pose:  geom.NewPose(rep.X, rep.Y, geom.Degrees(rep.HeadingDeg)),
			Front: rep.Front,
			At:    s.now(),
		})
	}
}
