// Command ambibus shows the next buses at my stop on a 4-digit 7-segment
// display, during the part of the morning when I might actually catch one.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jgrahamc/ambibus/arrivals"
	"github.com/jgrahamc/ambibus/display"
	"github.com/jgrahamc/ambibus/schedule"
	"github.com/pkg/term"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/logger"
	"golang.org/x/net/trace"
)

var (
	bind       = flag.String("bind", ":8080", "address to bind for debug/metrics server")
	port       = flag.String("port", "", "serial port the display is on; empty to log frames instead")
	configFile = flag.String("config", "ambibus.yaml", "path to the config file")
	brightness = flag.Int("brightness", 255, "display brightness, 0-255")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("load config %q: %v", *configFile, err)
	}

	var sink io.Writer
	var serial *term.Term
	if *port != "" {
		t, err := term.Open(*port, term.Speed(9600), term.RawMode)
		if err != nil {
			log.Fatalf("open serial port %q: %v", *port, err)
		}
		serial = t
		sink = t
	} else {
		log.Printf("no serial port; logging display frames")
	}

	ctx, cancel := context.WithCancel(context.Background())

	disp := display.New(sink)
	disp.SetBrightness(byte(*brightness))
	disp.Colon(false)
	disp.Line() // dashes until the first render

	fetcher := arrivals.NewStopFetcher(cfg.Stop, cfg.Routes, cfg.WalkMinutes)
	loop := schedule.New(cfg.schedule(), fetcher, disp)

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/status", serveStatus(loop, disp, cfg))
	router.HandleFunc("/status.json", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Add("content-type", "application/json")
		if err := json.NewEncoder(w).Encode(loop.Status()); err != nil {
			log.Printf("encoding status: %v", err)
		}
	})
	router.HandleFunc("/debug/requests", trace.Traces)
	router.HandleFunc("/debug/events", trace.Events)
	router.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/status", http.StatusFound)
	})

	httpDoneCh := make(chan error)
	httpServer := http.Server{
		Addr:    *bind,
		Handler: logger.New(logger.Options{Prefix: "ambibus"}).Handler(router),
	}
	go func() {
		log.Printf("http server listening on %s", httpServer.Addr)
		err := httpServer.ListenAndServe()
		select {
		case httpDoneCh <- err:
		case <-ctx.Done():
		}
		close(httpDoneCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	loopDoneCh := make(chan error)
	go func() {
		err := loop.Run(ctx)
		select {
		case loopDoneCh <- err:
		case <-ctx.Done():
		}
		close(loopDoneCh)
	}()

	httpAlive := true
	select {
	case err := <-httpDoneCh:
		log.Printf("http server died: %v", err)
		httpAlive = false
	case err := <-loopDoneCh:
		log.Printf("control loop died: %v", err)
	case <-sigCh:
		log.Printf("interrupt")
	}
	signal.Stop(sigCh)
	cancel()

	// Blank on the way out, so someone looking at the display can tell the
	// difference between "no buses" and "daemon not running".  Closed
	// explicitly because os.Exit below skips deferred calls.
	disp.Blank()
	if serial != nil {
		serial.Close()
	}
	if httpAlive {
		tctx, c := context.WithTimeout(context.Background(), time.Second)
		httpServer.Shutdown(tctx)
		c()
	}
	os.Exit(1)
}
