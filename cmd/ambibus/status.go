package main

import (
	_ "embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jgrahamc/ambibus/display"
	"github.com/jgrahamc/ambibus/schedule"
)

var (
	//go:embed status.html.tmpl
	statusHTML string

	funcMap = template.FuncMap{
		"clock": formatClock,
		"hhmm":  formatHHMM,
		"hex":   formatHex,
		"routes": func(rs []string) string {
			return strings.Join(rs, ", ")
		},
	}
	statusTmpl = template.Must(template.New("status").Funcs(funcMap).Parse(statusHTML))
)

type statusPage struct {
	Now    time.Time
	Config Config
	Status schedule.Status
	Shown  []int
	Frame  []byte
}

func serveStatus(loop *schedule.Loop, disp *display.Display, cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		shown, frame := disp.Snapshot()
		page := statusPage{
			Now:    time.Now(),
			Config: cfg,
			Status: loop.Status(),
			Shown:  shown,
			Frame:  frame,
		}
		if err := statusTmpl.Execute(w, page); err != nil {
			log.Printf("execute status template: %v", err)
		}
	}
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("15:04:05")
}

func formatHHMM(hhmm int) string { return fmt.Sprintf("%02d:%02d", hhmm/100, hhmm%100) }

func formatHex(b []byte) string { return fmt.Sprintf("% x", b) }
