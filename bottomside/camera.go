package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/blackjack/webcam"
	"go.uber.org/zap"
)

func fourcc(str string) webcam.PixelFormat { //get camera four letter format code
	lc := []rune(str)
	if len(lc) != 4 {
		panic(fmt.Errorf("four letter code is not four letters (got %d)", len(lc)))
	}
	return webcam.PixelFormat(
		uint32(lc[0]) |
			(uint32(lc[1]) << 8) |
			(uint32(lc[2]) << 16) |
			(uint32(lc[3]) << 24),
	)
}

//fss sorts frame sizes biggest first
type fss []webcam.FrameSize

func (f fss) Len() int {
	return len(f)
}
func (f fss) area(i int) uint64 {
	return uint64(f[i].MaxHeight) * uint64(f[i].MaxWidth)
}
func (f fss) Less(i, j int) bool {
	return f.area(i) > f.area(j)
}
func (f fss) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
}

var errNoPixelFormat = errors.New("no supported pixel format detected")

//pickFormat chooses MJPEG (or JPEG) from what a camera supports
func pickFormat(supported map[webcam.PixelFormat]string) (webcam.PixelFormat, error) {
	for _, f := range []webcam.PixelFormat{fourcc("MJPG"), fourcc("JPEG")} {
		if supported[f] != "" {
			return f, nil
		}
	}
	return 0, errNoPixelFormat
}

//frameSource is what the HTTP handlers read frames from
type frameSource interface {
	Frame(ctx context.Context) ([]byte, error)
}

//camera streams JPEG frames from one V4L2 device
type camera struct {
	path     string
	cam      *webcam.Webcam
	framein  chan []byte //camera worker sends frames here
	frameout chan []byte //read from this to get frames
}

//openCamera opens a device and sets it to its biggest MJPEG frame size
func openCamera(path string) (*camera, error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", path, err)
	}
	pxfmt, err := pickFormat(cam.GetSupportedFormats())
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("camera %s: %w", path, err)
	}
	fsizes := fss(cam.GetSupportedFrameSizes(pxfmt)) //select biggest frame size
	if len(fsizes) == 0 {
		cam.Close()
		return nil, fmt.Errorf("camera %s: no frame sizes", path)
	}
	sort.Sort(fsizes)
	if _, _, _, err := cam.SetImageFormat(pxfmt, fsizes[0].MaxWidth, fsizes[0].MaxHeight); err != nil {
		cam.Close()
		return nil, fmt.Errorf("camera %s: set format: %w", path, err)
	}
	return &camera{
		path:     path,
		cam:      cam,
		framein:  make(chan []byte),
		frameout: make(chan []byte),
	}, nil
}

//Run streams until ctx is done or the camera fails
func (c *camera) Run(ctx context.Context, log *zap.Logger) error {
	if err := c.cam.StartStreaming(); err != nil {
		return fmt.Errorf("camera %s: start streaming: %w", c.path, err)
	}
	defer c.cam.Close()
	go c.distribute(ctx)
	log.Info("camera streaming", zap.String("path", c.path))
	for ctx.Err() == nil {
		//wait up to 5 seconds for a frame to be ready
		if err := c.cam.WaitForFrame(5); err != nil {
			var timeout *webcam.Timeout
			if errors.As(err, &timeout) {
				log.Warn("camera frame timeout", zap.String("path", c.path))
				continue
			}
			return fmt.Errorf("camera %s: %w", c.path, err)
		}
		dat, err := c.cam.ReadFrame()
		if err != nil {
			return fmt.Errorf("camera %s: read frame: %w", c.path, err)
		}
		if len(dat) == 0 {
			continue
		}
		//the driver reuses its buffer
		frame := append([]byte(nil), dat...)
		select {
		case c.framein <- frame:
		case <-ctx.Done():
		}
	}
	return nil
}

//distribute always has the latest frame ready for the web handlers
func (c *camera) distribute(ctx context.Context) {
	var f []byte
	select {
	case f = <-c.framein:
	case <-ctx.Done():
		return
	}
	for {
		select {
		case f = <-c.framein:
		case c.frameout <- f:
		case <-ctx.Done():
			return
		}
	}
}

func (c *camera) Frame(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.frameout:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

//serveFrame sends one frame as a JPEG file
func serveFrame(src frameSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := src.Frame(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(f)
	}
}

//serveStream sends frames as an MJPEG stream until the client goes away
func serveStream(src frameSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace;boundary=--BOUNDARY")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		for {
			f, err := src.Frame(r.Context())
			if err != nil {
				return
			}
			if _, err := w.Write(f); err != nil {
				return
			}
			if _, err := w.Write([]byte("--BOUNDARY")); err != nil {
				return
			}
			if fl, ok := w.(http.Flusher); ok {
				fl.Flush()
			}
		}
	}
}
