package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/logging"
)

func main() {
	app := cli.NewApp()
	app.Name = "topside"
	app.Usage = "serve the driver station and proxy it to the robot"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "bottomurl",
			Value: "http://10.0.0.2:8080",
			Usage: "bottom side URL",
		},
		cli.StringFlag{
			Name:  "static",
			Value: "static",
			Usage: "path to static files",
		},
		cli.StringFlag{
			Name:  "http",
			Value: ":8001",
			Usage: "http server listening address",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "log level",
		},
	}
	app.Action = func(c *cli.Context) error {
		logCfg := logging.DefaultConfig()
		logCfg.Level = c.GlobalString("log-level")
		logCfg.Format = "console"
		log, err := logging.New(logCfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		burl, err := url.Parse(c.GlobalString("bottomurl"))
		if err != nil {
			return fmt.Errorf("bad bottom side url: %w", err)
		}
		log.Info("serving static files", zap.String("static", c.GlobalString("static")))
		srv := &http.Server{
			Addr:              c.GlobalString("http"),
			Handler:           newMux(c.GlobalString("static"), burl, log),
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("http listening", zap.String("addr", srv.Addr), zap.Stringer("bottom", burl))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

//newMux serves the static driver station and forwards /bs/ to the bottom side
func newMux(static string, bottom *url.URL, log *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	//set default router to static files
	mux.Handle("/", http.FileServer(http.Dir(static)))
	//set up reverse proxy to bottom side, websockets included
	rp := httputil.NewSingleHostReverseProxy(bottom)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("bottom side unreachable", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bottom side unreachable", http.StatusBadGateway)
	}
	mux.HandleFunc("/bs/", func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = "/" + strings.TrimPrefix(r.URL.Path, "/bs/")
		r.URL.RawPath = ""
		rp.ServeHTTP(w, r)
	})
	return mux
}
