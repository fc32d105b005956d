/*
SPDX-License-Identifier: Apache-2.0

Copyright 2024 The Taxinomia Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package server exposes a crossfilter engine as an HTML dashboard and a
// small JSON API.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/facetfilter/core/crossfilter"
	"github.com/google/facetfilter/core/query"
	"github.com/google/facetfilter/core/records"
	"github.com/google/facetfilter/core/rendering"
	"github.com/google/facetfilter/core/values"
	"github.com/google/facetfilter/core/views"
)

const tracerName = "github.com/google/facetfilter/core/server"

// Options configures a Server.
type Options struct {
	Dashboard   views.Options
	Logger      *slog.Logger
	Registry    *prometheus.Registry // collectors are registered here; a private registry when nil
	ServiceName string               // otelgin service name

	// Reload rebuilds the engine from its data source for POST /api/reload.
	// The reload route answers 501 when nil.
	Reload func() (*crossfilter.Engine, error)
}

const (
	defaultTopK         = 10
	defaultRecordsLimit = 25
)

// Server represents the dashboard server with all its dependencies.
// Every engine call is serialised behind mu.
type Server struct {
	mu     sync.Mutex
	engine *crossfilter.Engine

	renderer  *rendering.DashboardRenderer
	dashboard views.Options
	logger    *slog.Logger
	metrics   *Metrics
	registry  *prometheus.Registry
	tracer    trace.Tracer
	router    *gin.Engine
	reload    func() (*crossfilter.Engine, error)
}

// NewServer creates a new server around the given engine.
func NewServer(engine *crossfilter.Engine, opts Options) (*Server, error) {
	if engine == nil {
		return nil, errors.New("server: nil engine")
	}
	renderer, err := rendering.NewDashboardRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	service := opts.ServiceName
	if service == "" {
		service = "facetfilter"
	}

	s := &Server{
		engine:    engine,
		renderer:  renderer,
		dashboard: opts.Dashboard,
		logger:    logger,
		metrics:   NewMetrics(registry),
		registry:  registry,
		tracer:    otel.Tracer(tracerName),
		reload:    opts.Reload,
	}
	s.metrics.SelectedRecords.Set(float64(engine.SelectedCount()))
	s.router = s.newRouter(service)
	return s, nil
}

// Router returns the gin engine serving the dashboard.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) newRouter(service string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(service), s.observe())

	router.GET(query.PathDashboard, s.handleDashboard)
	router.GET(query.PathFilter, s.handleAction)
	router.GET(query.PathClear, s.handleAction)
	router.GET(query.PathReset, s.handleAction)

	api := router.Group("/api")
	api.GET("/groups", s.handleGroups)
	api.GET("/groups/:name", s.handleGroup)
	api.GET("/filters", s.handleFilters)
	api.GET("/stats", s.handleStats)
	api.GET("/records", s.handleRecords)
	api.GET("/dimensions", s.handleDimensions)
	api.GET("/dimensions/:name/top", s.handleExtremes)
	api.GET("/dimensions/:name/bottom", s.handleExtremes)
	api.POST("/reload", s.handleReload)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	return router
}

// observe tags each request with an ID and records its latency per route.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := getOrCreateRequestID(c)
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		s.metrics.RequestDurationSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
		s.logger.Debug("request",
			"request_id", requestID,
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"duration", elapsed)
	}
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// Run serves HTTP on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down dashboard")
		return srv.Shutdown(shutdownCtx)
	}
}

// HandleDashboardRequest renders the dashboard HTML for the current engine state.
func (s *Server) HandleDashboardRequest(w io.Writer) error {
	s.mu.Lock()
	vm := views.BuildDashboardViewModel(s.engine, s.dashboard)
	s.mu.Unlock()

	if err := s.renderer.Render(w, vm); err != nil {
		s.logger.Error("template rendering error", "error", err)
		return err
	}
	return nil
}

func (s *Server) handleDashboard(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.HandleDashboardRequest(&buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rendering failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// Apply performs the action of a parsed dashboard URL on the engine.
func (s *Server) Apply(ctx context.Context, q *query.Query) error {
	_, span := s.tracer.Start(ctx, "engine."+q.Action.String(),
		trace.WithAttributes(
			attribute.String("facet.group", q.Group),
			attribute.String("facet.dimension", q.Dimension),
		))
	defer span.End()

	s.mu.Lock()
	before := s.engine.Stats().RecordsVisited
	err := q.Apply(s.engine)
	visited := s.engine.Stats().RecordsVisited - before
	selected := s.engine.SelectedCount()
	s.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.FilterChangesTotal.WithLabelValues(q.Action.String(), "error").Inc()
		s.logger.Warn("dashboard action failed", "action", q.Action, "error", err)
		return err
	}

	span.SetAttributes(
		attribute.Int64("facet.records_visited", visited),
		attribute.Int("facet.selected", selected),
	)
	s.metrics.FilterChangesTotal.WithLabelValues(q.Action.String(), "ok").Inc()
	s.metrics.RecordsVisited.Observe(float64(visited))
	s.metrics.SelectedRecords.Set(float64(selected))
	s.logger.Info("dashboard action",
		"action", q.Action,
		"group", q.Group,
		"dimension", q.Dimension,
		"visited", visited,
		"selected", selected)
	return nil
}

func (s *Server) handleAction(c *gin.Context) {
	q, err := query.NewQuery(c.Request.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Apply(c.Request.Context(), q); err != nil {
		s.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, query.PathDashboard)
}

func (s *Server) writeError(c *gin.Context, err error) {
	var unknown *crossfilter.UnknownNameError
	if errors.As(err, &unknown) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": unknown.Kind, "name": unknown.Name})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// GroupSnapshot is the JSON form of one group.
type GroupSnapshot struct {
	Name      string                 `json:"name"`
	Title     string                 `json:"title"`
	Dimension string                 `json:"dimension"`
	Buckets   []crossfilter.KeyValue `json:"buckets"`
}

func (s *Server) snapshot(g *crossfilter.Group) GroupSnapshot {
	title := s.dashboard.GroupTitles[g.Name()]
	if title == "" {
		title = g.Name()
	}
	return GroupSnapshot{
		Name:      g.Name(),
		Title:     title,
		Dimension: g.Dimension().Name(),
		Buckets:   g.Snapshot(),
	}
}

func (s *Server) handleGroups(c *gin.Context) {
	s.mu.Lock()
	groups := make([]GroupSnapshot, 0, len(s.engine.Groups()))
	for _, g := range s.engine.Groups() {
		groups = append(groups, s.snapshot(g))
	}
	size, selected := s.engine.Size(), s.engine.SelectedCount()
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"data_size": size,
		"selected":  selected,
		"groups":    groups,
	})
}

func (s *Server) handleGroup(c *gin.Context) {
	s.mu.Lock()
	g, err := s.engine.Group(c.Param("name"))
	var snap GroupSnapshot
	if err == nil {
		snap = s.snapshot(g)
	}
	s.mu.Unlock()

	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleFilters(c *gin.Context) {
	s.mu.Lock()
	filters := s.engine.Filters()
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"filters": filters})
}

// handleStats reports the engine work counters; ?reset=1 zeroes them
// after they are read.
func (s *Server) handleStats(c *gin.Context) {
	reset, _ := strconv.ParseBool(c.DefaultQuery("reset", "false"))
	s.mu.Lock()
	stats := s.engine.Stats()
	if reset {
		s.engine.ResetStats()
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, stats)
}

// positiveIntParam reads an optional positive integer query parameter.
func positiveIntParam(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s must be a positive integer, got %q", name, raw)})
		return 0, false
	}
	return n, true
}

// RecordFields returns the fields of a record keyed by name.
func RecordFields(r records.Record) map[string]values.Value {
	out := make(map[string]values.Value)
	for _, name := range r.Fields() {
		out[name] = r.Value(name)
	}
	return out
}

func (s *Server) handleRecords(c *gin.Context) {
	limit, ok := positiveIntParam(c, "limit", defaultRecordsLimit)
	if !ok {
		return
	}
	s.mu.Lock()
	ids := s.engine.Selected()
	selected := len(ids)
	ids = ids[:min(limit, len(ids))]
	out := make([]map[string]values.Value, len(ids))
	for i, id := range ids {
		out[i] = RecordFields(s.engine.Dataset().Record(id))
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"selected": selected, "records": out})
}

// DimensionInfo is the JSON form of one dimension.
type DimensionInfo struct {
	Name   string                `json:"name"`
	Filter crossfilter.Criterion `json:"filter"`
	Keys   int                   `json:"keys"` // distinct keys
}

func (s *Server) handleDimensions(c *gin.Context) {
	s.mu.Lock()
	dims := make([]DimensionInfo, 0, len(s.engine.Dimensions()))
	for _, d := range s.engine.Dimensions() {
		dims = append(dims, DimensionInfo{Name: d.Name(), Filter: d.Criterion(), Keys: len(d.Keys())})
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"dimensions": dims})
}

// handleExtremes serves the k selected records with the highest (top) or
// lowest (bottom) keys of a dimension.
func (s *Server) handleExtremes(c *gin.Context) {
	k, ok := positiveIntParam(c, "k", defaultTopK)
	if !ok {
		return
	}
	top := c.FullPath() == "/api/dimensions/:name/top"

	s.mu.Lock()
	d, err := s.engine.Dimension(c.Param("name"))
	var out []gin.H
	if err == nil {
		ids := d.Bottom(k)
		if top {
			ids = d.Top(k)
		}
		out = make([]gin.H, len(ids))
		for i, id := range ids {
			out[i] = gin.H{"key": d.Key(id), "record": RecordFields(s.engine.Dataset().Record(id))}
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dimension": d.Name(), "records": out})
}

// handleReload rebuilds the engine from its source. Filters are cleared;
// on failure the current engine keeps serving.
func (s *Server) handleReload(c *gin.Context) {
	if s.reload == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "reload is not configured"})
		return
	}
	_, span := s.tracer.Start(c.Request.Context(), "engine.reload")
	defer span.End()

	s.mu.Lock()
	engine, err := s.reload()
	if err == nil {
		s.engine = engine
	}
	size, selected := s.engine.Size(), s.engine.SelectedCount()
	s.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("reload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.metrics.SelectedRecords.Set(float64(selected))
	s.logger.Info("engine reloaded", "records", size)
	c.JSON(http.StatusOK, gin.H{"data_size": size, "selected": selected})
}
