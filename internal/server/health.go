package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/folio-labs/folio/internal/database"
)

// healthHandler reports service and database health plus basic system stats.
type healthHandler struct {
	portfolioDB  *database.DB
	marketDataDB *database.DB
	startedAt    time.Time
	log          zerolog.Logger
}

func newHealthHandler(portfolioDB, marketDataDB *database.DB, log zerolog.Logger) *healthHandler {
	return &healthHandler{
		portfolioDB:  portfolioDB,
		marketDataDB: marketDataDB,
		startedAt:    time.Now(),
		log:          log.With().Str("handler", "health").Logger(),
	}
}

// HandleHealth reports overall service health. The service is degraded, not
// down, when a database ping fails.
func (h *healthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	databases := map[string]string{}

	for name, db := range map[string]*database.DB{
		"portfolio":  h.portfolioDB,
		"marketdata": h.marketDataDB,
	} {
		if db == nil {
			databases[name] = "not configured"
			status = "degraded"
			continue
		}
		if err := db.Conn().Ping(); err != nil {
			h.log.Error().Err(err).Str("database", name).Msg("Database ping failed")
			databases[name] = "unreachable"
			status = "degraded"
			continue
		}
		databases[name] = "ok"
	}

	cpuPercent, ramPercent := systemStats()

	w.Header().Set("Content-Type", "application/json")
	if status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         status,
		"databases":      databases,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"cpu_percent":    cpuPercent,
		"ram_percent":    ramPercent,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func systemStats() (float64, float64) {
	var cpuAvg float64
	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuAvg = percents[0]
	}

	var ramPercent float64
	if stat, err := mem.VirtualMemory(); err == nil {
		ramPercent = stat.UsedPercent
	}

	return cpuAvg, ramPercent
}
