package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// FrontendAPIKey is the variable the web client reads its API base URL from.
const FrontendAPIKey = "VITE_API_URL"

// WriteFrontendEnv merges the API base URL into the frontend's env file,
// keeping every other key already present.
func WriteFrontendEnv(path, apiBaseURL string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		env = map[string]string{}
	}

	if env[FrontendAPIKey] == apiBaseURL {
		return nil
	}
	env[FrontendAPIKey] = apiBaseURL

	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
