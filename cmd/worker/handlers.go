package main

import (
	"github.com/hibiken/asynq"

	returnsJob "returns-backend/internal/domains/returns/job"
	"returns-backend/internal/infrastructure/email"
	"returns-backend/internal/shared"
	"returns-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	// Notification handlers
	statusChanged *returnsJob.StatusChangedHandler

	// Maintenance handlers
	stalePendingSweep *returnsJob.StalePendingSweepHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container, cfg *Config) *HandlerRegistry {
	emailSvc := email.NewSMTPEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)

	return &HandlerRegistry{
		statusChanged:     returnsJob.NewStatusChangedHandler(emailSvc, c.ReturnRepo, c.Cache),
		stalePendingSweep: returnsJob.NewStalePendingSweepHandler(c.ReturnRepo, emailSvc, cfg.OpsEmail),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	// Notification tasks
	mux.HandleFunc(shared.TypeReturnStatusChanged, h.statusChanged.ProcessTask)

	// Maintenance tasks
	mux.HandleFunc(shared.TypeStalePendingSweep, h.stalePendingSweep.ProcessTask)
}
