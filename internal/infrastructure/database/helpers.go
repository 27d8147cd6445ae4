package database

import (
	"context"
	"fmt"
	"log"
	"time"
)

// PoolStats is a snapshot of pool counters used by monitoring
type PoolStats struct {
	MaxConns             int32
	TotalConns           int32
	IdleConns            int32
	AcquiredConns        int32
	AcquireCount         int64
	AcquireDuration      time.Duration
	CanceledAcquireCount int64
}

// Ping verifies the connection is alive; used by readiness probes
func (db *PostgresDB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Stats exposes pool counters for the monitor loop
func (db *PostgresDB) Stats() (*PoolStats, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	s := db.Pool.Stat()
	return &PoolStats{
		MaxConns:             s.MaxConns(),
		TotalConns:           s.TotalConns(),
		IdleConns:            s.IdleConns(),
		AcquiredConns:        s.AcquiredConns(),
		AcquireCount:         s.AcquireCount(),
		AcquireDuration:      s.AcquireDuration(),
		CanceledAcquireCount: s.CanceledAcquireCount(),
	}, nil
}

func calculateAvgDuration(totalDuration time.Duration, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return totalDuration / time.Duration(count)
}

// MonitorPoolHealth periodically logs pool pressure signals.
// Run it in its own goroutine; it exits when the context is cancelled.
func (db *PostgresDB) MonitorPoolHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := db.Stats()
			if err != nil {
				log.Printf("[MONITOR] Failed to get stats: %v", err)
				continue
			}

			utilizationPct := float64(stats.AcquiredConns) / float64(stats.MaxConns) * 100
			if utilizationPct > 80 {
				log.Printf("[MONITOR] HIGH POOL UTILIZATION: %.1f%% (%d/%d)",
					utilizationPct, stats.AcquiredConns, stats.MaxConns)
			}

			avgAcquireDuration := calculateAvgDuration(
				stats.AcquireDuration,
				stats.AcquireCount,
			)
			if avgAcquireDuration > 100*time.Millisecond {
				log.Printf("[MONITOR] HIGH ACQUIRE LATENCY: %v", avgAcquireDuration)
			}

			if stats.CanceledAcquireCount > 0 {
				cancelRate := float64(stats.CanceledAcquireCount) /
					float64(stats.AcquireCount) * 100
				if cancelRate > 5 {
					log.Printf("[MONITOR] HIGH CANCEL RATE: %.1f%%", cancelRate)
				}
			}

		case <-ctx.Done():
			log.Println("[MONITOR] Stopping pool health monitoring")
			return
		}
	}
}
