package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// SetupLogging sends log output to stdout and an append-only file under
// cfg.LogDir, and points gin's writers at the same sink so access logs and
// application logs land together. Caller closes the returned file on
// shutdown.
func SetupLogging(cfg Config, filename string) (io.Closer, error) {
	dir := firstNonEmpty(cfg.LogDir, "/var/log/blog")
	if filename == "" {
		filename = "app.log"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, filename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	sink := io.MultiWriter(os.Stdout, f)
	log.SetOutput(sink)
	gin.DefaultWriter = sink
	gin.DefaultErrorWriter = sink

	return f, nil
}
