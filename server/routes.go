// Package server - Status-API eines laufenden Trainings
//
// MODUL: server
// ZWECK: Stellt Run-Status, Metriken und das aktive Rezept per HTTP bereit
// INPUT: Run-Store (SQLite), aktives Rezept, Run-ID
// OUTPUT: JSON-Antworten auf /api/*
//
// Der Server ist reiner Beobachter: er liest den Store, waehrend die
// Trainingsschleife schreibt (WAL-Modus, kein Locking noetig).
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alignforge/alignforge/api"
	"github.com/alignforge/alignforge/config"
	"github.com/alignforge/alignforge/train"
	"github.com/alignforge/alignforge/version"
)

// Server haelt die Abhaengigkeiten der Status-API
type Server struct {
	store  *train.Store
	recipe *config.Recipe

	mu  sync.RWMutex
	run api.RunInfo
}

// NewServer erstellt einen Status-Server
func NewServer(store *train.Store, recipe *config.Recipe) *Server {
	return &Server{store: store, recipe: recipe}
}

// SetRun setzt den aktuell laufenden Run
func (s *Server) SetRun(run api.RunInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = run
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() http.Handler {
	r := gin.Default()
	r.HandleMethodNotAllowed = true

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "Alignforge is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "Alignforge is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	// Status des aktiven Runs
	r.GET("/api/status", s.StatusHandler)
	r.GET("/api/config", s.ConfigHandler)

	// Run-Historie
	r.GET("/api/runs", s.ListRunsHandler)
	r.GET("/api/runs/:id", s.RunHandler)
	r.GET("/api/runs/:id/metrics", s.MetricsHandler)

	return r
}

// StatusHandler gibt den aktiven Run samt letzter Metriken zurueck
func (s *Server) StatusHandler(c *gin.Context) {
	s.mu.RLock()
	run := s.run
	s.mu.RUnlock()

	if run.ID == "" {
		c.JSON(http.StatusOK, gin.H{"status": "idle"})
		return
	}

	elapsed := time.Since(run.StartedAt)
	if !run.FinishedAt.IsZero() {
		elapsed = run.FinishedAt.Sub(run.StartedAt)
	}
	resp := gin.H{"run": run, "elapsed": api.Duration{Duration: elapsed}}

	if s.store != nil {
		steps, err := s.store.Steps(run.ID)
		if err != nil {
			slog.Error("could not read step metrics", "run", run.ID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if len(steps) > 0 {
			resp["last_step"] = steps[len(steps)-1]
		}
	}

	c.JSON(http.StatusOK, resp)
}

// ConfigHandler gibt das aktive Rezept zurueck
func (s *Server) ConfigHandler(c *gin.Context) {
	if s.recipe == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no active recipe"})
		return
	}
	c.JSON(http.StatusOK, s.recipe)
}

// ListRunsHandler gibt alle Runs zurueck
func (s *Server) ListRunsHandler(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []api.RunInfo{}})
		return
	}

	runs, err := s.store.ListRuns()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// RunHandler gibt einen einzelnen Run zurueck
func (s *Server) RunHandler(c *gin.Context) {
	if s.store == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no run store"})
		return
	}

	run, err := s.store.Run(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("run %q not found", c.Param("id"))})
		return
	}
	c.JSON(http.StatusOK, run)
}

// MetricsHandler gibt die Metriken eines Runs zurueck
func (s *Server) MetricsHandler(c *gin.Context) {
	if s.store == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no run store"})
		return
	}

	steps, err := s.store.Steps(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": steps})
}

// Serve startet die Status-API auf dem Listener, bis ctx beendet wird
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srvr := &http.Server{Handler: s.GenerateRoutes()}

	go func() {
		<-ctx.Done()
		srvr.Close()
	}()

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	if err := srvr.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
