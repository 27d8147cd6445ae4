package main

import (
	"log"

	"returns-backend/pkg/container"
)

// Config holds all configuration for the worker
type Config struct {
	RedisAddr   string
	SMTPHost    string
	SMTPPort    string
	SMTPFrom    string
	OpsEmail    string
	Concurrency int
}

// loadConfig derives worker configuration from the app config
func loadConfig(c *container.Container) *Config {
	cfg := &Config{
		RedisAddr:   c.Config.Redis.Host,
		SMTPHost:    c.Config.SMTP.Host,
		SMTPPort:    c.Config.SMTP.Port,
		SMTPFrom:    c.Config.SMTP.From,
		OpsEmail:    c.Config.Job.OpsEmail,
		Concurrency: c.Config.Job.WorkerConcurrency,
	}

	log.Printf("[Config] Redis: %s, SMTP: %s:%s, Ops inbox: %s",
		cfg.RedisAddr, cfg.SMTPHost, cfg.SMTPPort, cfg.OpsEmail)

	return cfg
}
