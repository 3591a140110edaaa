package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleHealth reports liveness plus database integrity
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.db.HealthCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Database health check failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"service":        "stockwatch",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

// handleSystemStatus reports process and host resource usage
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	cpuPercent, memPercent := hostStats()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "running",
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc_mb":       m.Alloc / 1024 / 1024,
			"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
			"sys_mb":         m.Sys / 1024 / 1024,
			"num_gc":         m.NumGC,
		},
		"host": map[string]interface{}{
			"cpu_percent":    cpuPercent,
			"memory_percent": memPercent,
		},
	})
}

// handleTriggerSweep runs one alert sweep outside the schedule
func (s *Server) handleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	if s.triggerSweep == nil {
		s.writeError(w, http.StatusServiceUnavailable, "sweep not available")
		return
	}

	go func() {
		if err := s.triggerSweep(); err != nil {
			s.log.Error().Err(err).Msg("Manual sweep failed")
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "sweep started"})
}

// hostStats samples host CPU and memory usage; failures report zero
func hostStats() (float64, float64) {
	var cpuPercent, memPercent float64

	if vals, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(vals) > 0 {
		cpuPercent = vals[0]
	}
	if stat, err := mem.VirtualMemory(); err == nil {
		memPercent = stat.UsedPercent
	}

	return cpuPercent, memPercent
}
