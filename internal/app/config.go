package app

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

type Config struct {
	Env       string
	HTTPAddr  string
	CORSAllow []string

	PistonURL   string // base URL of the Piston execute API
	ExecTimeout time.Duration

	RedisAddr string // host:port, empty disables the cross-instance bus
	RedisDB   int
}

func LoadConfig() Config {
	cfg := Config{
		Env:       getEnv("APP_ENV", "dev"),
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		PistonURL: getEnv("PISTON_URL", "https://emkc.org/api/v2/piston"),
		RedisAddr: getEnv("REDIS_ADDR", ""),
	}
	cfg.ExecTimeout = time.Duration(getEnvInt("EXEC_TIMEOUT_SEC", 15)) * time.Second
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	// CORS allowlist
	allow := getEnv("CORS_ALLOW", "http://localhost:5173")
	cfg.CORSAllow = splitCSV(allow)
	log.Printf("config: %+v\n", cfg)
	return cfg
}

// getEnv returns the env var or a default
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getEnvInt parses an int env var with a fallback
func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		var i int
		_, _ = fmt.Sscanf(v, "%d", &i)
		if i > 0 {
			return i
		}
	}
	return def
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
