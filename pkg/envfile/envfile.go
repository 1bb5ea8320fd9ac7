// Package envfile reads the installation's credential file, a line-oriented
// KEY=VALUE dotenv file, into a structured configuration record.
package envfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/stackmill/upshift/pkg/types"
)

// ErrConfigNotFound is returned when the credential file does not exist.
var ErrConfigNotFound = errors.New("credential file not found")

// DefaultPort is assumed when the credential file does not set DB_PORT.
const DefaultPort = "3306"

// DefaultPath returns the conventional credential file location inside an
// installation.
func DefaultPath(target string) string {
	return filepath.Join(target, ".env")
}

// Read parses the line-oriented KEY=VALUE credential file at path into an
// EnvironmentConfig. Only presence is validated here: empty optional fields
// (the password) are legal, and missing host/user/database are rejected later
// by the schema migrator, where their absence actually matters.
func Read(path string) (*types.EnvironmentConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("stat credential file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("parse credential file %s: %w", path, err)
	}

	cfg := &types.EnvironmentConfig{
		Host:     v.GetString("DB_HOST"),
		Port:     v.GetString("DB_PORT"),
		Database: v.GetString("DB_DATABASE"),
		User:     v.GetString("DB_USERNAME"),
		Password: v.GetString("DB_PASSWORD"),
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	return cfg, nil
}
