package main

import "time"

type Config struct {
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	Host            string        `env:"HOST,default=localhost"`
	Port            int           `env:"PORT,default=8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	MonitorInterval time.Duration `env:"MONITOR_INTERVAL,default=30s"`
}
