package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/akeren/lore-anchor-waitlist/internal/log"
	"github.com/joho/godotenv"
)

const AppEnvKey = "APP_ENV"

// devEnvironments may run --auto-migrate. An unset APP_ENV counts as dev.
var devEnvironments = map[string]bool{
	"":            true,
	"dev":         true,
	"development": true,
	"local":       true,
	"test":        true,
	"testing":     true,
}

// InitializeEnvFile loads ENV_FILE (comma-separated, default ".env") without
// overriding variables already set in the process environment.
func InitializeEnvFile(logger *log.Logger) {
	if os.Getenv("SKIP_DOTENV") == "true" {
		logger.Info("Skipping .env file load (SKIP_DOTENV=true)")
		return
	}

	files := envFiles(os.Getenv("ENV_FILE"))
	if err := godotenv.Load(files...); err != nil {
		logger.Warn("No .env file loaded", "files", files, "error", err.Error())
		return
	}

	logger.Info("Environment variables loaded", "files", files)
}

func envFiles(raw string) []string {
	var files []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return []string{".env"}
	}
	return files
}

func GetAppEnv() string {
	return strings.ToLower(strings.TrimSpace(os.Getenv(AppEnvKey)))
}

func ValidateAutoMigrateAllowed(appEnv string) error {
	appEnv = strings.ToLower(strings.TrimSpace(appEnv))
	if devEnvironments[appEnv] {
		return nil
	}

	allowed := make([]string, 0, len(devEnvironments))
	for name := range devEnvironments {
		allowed = append(allowed, fmt.Sprintf("%q", name))
	}
	slices.Sort(allowed)

	return fmt.Errorf("--auto-migrate is not allowed when %s=%q (allowed: %s)", AppEnvKey, appEnv, strings.Join(allowed, ", "))
}
