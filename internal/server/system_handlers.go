package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/riskgovernor/internal/api"
	"github.com/aristath/riskgovernor/internal/database"
	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/domain"
)

// JobRunner triggers registered background jobs by name
type JobRunner interface {
	Jobs() []string
	RunNow(name string) error
}

// SystemHandlers serves health, registry and job endpoints
type SystemHandlers struct {
	db          *database.DB
	registry    *dispatch.Registry
	jobs        JobRunner
	startedAt   time.Time
	systemStats func() (float64, float64)
	log         zerolog.Logger
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	OK            bool           `json:"ok"`
	Node          string         `json:"node"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Database      DatabaseHealth `json:"database"`
	System        SystemHealth   `json:"system"`
}

// DatabaseHealth reports integrity and schema version
type DatabaseHealth struct {
	Status        string `json:"status"`
	SchemaVersion string `json:"schema_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SystemHealth reports host resource usage
type SystemHealth struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// SkillsResponse is the body of GET /skills
type SkillsResponse struct {
	Node      string   `json:"node"`
	Reasoners []string `json:"reasoners"`
	Skills    []string `json:"skills"`
}

// NewSystemHandlers creates system handlers. jobs may be nil.
func NewSystemHandlers(db *database.DB, registry *dispatch.Registry, jobs JobRunner, log zerolog.Logger) *SystemHandlers {
	h := &SystemHandlers{
		db:        db,
		registry:  registry,
		jobs:      jobs,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
	h.systemStats = h.getSystemStats
	return h
}

// HandleHealth reports liveness plus database and host state.
// A failed integrity check answers 503.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		OK:            true,
		Node:          h.registry.Node(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Database:      DatabaseHealth{Status: "ok"},
	}

	if err := h.db.HealthCheck(ctx); err != nil {
		h.log.Error().Err(err).Msg("Database health check failed")
		resp.OK = false
		resp.Database = DatabaseHealth{Status: "error", Error: err.Error()}
	} else if version, err := h.db.CurrentSchemaVersion(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Failed to read schema version")
	} else {
		resp.Database.SchemaVersion = version
	}

	resp.System.CPUPercent, resp.System.MemoryPercent = h.systemStats()

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	api.WriteJSON(w, status, resp)
}

// HandleSkills lists the registered reasoners and skills
func (h *SystemHandlers) HandleSkills(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, SkillsResponse{
		Node:      h.registry.Node(),
		Reasoners: h.registry.Names(dispatch.KindReasoner),
		Skills:    h.registry.Names(dispatch.KindSkill),
	})
}

// HandleListJobs lists the registered background jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if h.jobs != nil {
		names = append(names, h.jobs.Jobs()...)
	}
	sort.Strings(names)
	api.WriteJSON(w, http.StatusOK, map[string][]string{"jobs": names})
}

// HandleRunJob runs a background job immediately
// POST /jobs/{name}
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil || !h.hasJob(name) {
		api.WriteError(w, h.log, fmt.Errorf("%w: job %s", domain.ErrNotFound, name))
		return
	}

	start := time.Now()
	if err := h.jobs.RunNow(name); err != nil {
		api.WriteError(w, h.log, fmt.Errorf("job %s failed: %w", name, err))
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"job":         name,
		"status":      "completed",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (h *SystemHandlers) hasJob(name string) bool {
	for _, n := range h.jobs.Jobs() {
		if n == name {
			return true
		}
	}
	return false
}

// getSystemStats calculates CPU and RAM usage percentages.
// The CPU sample window is kept short so probes answer quickly.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
