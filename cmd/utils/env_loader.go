package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envFileFlag   = "--env-file"
	envFileEnvVar = "ENV_FILE"
)

// LoadEnvFile loads environment variables the coordinator reads at
// startup (STORE_URI, ESCROW_BACKEND, and the rest of the cmd/ config
// surface) from a file, so a local run doesn't need them exported by hand.
// Priority: --env-file flag > ENV_FILE environment variable > .env in the
// working directory.
func LoadEnvFile() error {
	envFilePath := determineEnvFilePath()

	if envFilePath != "" {
		return loadExplicitEnvFile(envFilePath)
	}

	return loadDefaultEnvFile()
}

func determineEnvFilePath() string {
	if path := parseEnvFileFlag(); path != "" {
		return toAbsolutePath(path)
	}

	if path := os.Getenv(envFileEnvVar); path != "" {
		return toAbsolutePath(path)
	}

	return ""
}

func parseEnvFileFlag() string {
	for i, arg := range os.Args {
		if arg == envFileFlag && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, envFileFlag+"=") {
			return strings.TrimPrefix(arg, envFileFlag+"=")
		}
	}
	return ""
}

func toAbsolutePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func loadExplicitEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func loadDefaultEnvFile() error {
	err := godotenv.Load()
	if err == nil {
		return nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("loading .env file: %w", err)
}
