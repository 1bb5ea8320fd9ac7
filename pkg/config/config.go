// Package config loads the tool-level settings: artifact source, collaborator
// binaries, service account and directory sets. Everything has a default that
// describes a stock installation; a YAML settings file overrides per key.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/viper"
)

// Default locations and collaborator binaries. All of these can be overridden
// from the settings file.
const (
	DefaultConfigPath = "/etc/upshift/upshift.yaml"
	DefaultDataDir    = "/var/lib/upshift"
)

// Settings holds the tool-level configuration: where releases come from,
// which binaries drive the external collaborators, and which directory sets
// the fetcher and the permission normalizer operate on. Settings are loaded
// once at startup and never mutated afterwards.
type Settings struct {
	// ArtifactURL is a printf template producing the release archive URL
	// for a version identifier.
	ArtifactURL string `mapstructure:"artifact_url"`

	// Version is the release the upgrade session fetches.
	Version string `mapstructure:"version"`

	PHPBin       string `mapstructure:"php_bin"`
	ComposerBin  string `mapstructure:"composer_bin"`
	MysqldumpBin string `mapstructure:"mysqldump_bin"`

	// ServiceUser/ServiceGroup own the runtime's writable directories.
	ServiceUser  string `mapstructure:"service_user"`
	ServiceGroup string `mapstructure:"service_group"`

	// DataDir holds upshift's own state (the session journal).
	DataDir string `mapstructure:"data_dir"`

	// MutableDirs are the release-owned subdirectories the fetcher replaces.
	MutableDirs []string `mapstructure:"mutable_dirs"`

	// WritableDirs are the subtrees the service account must be able to
	// write to after an upgrade.
	WritableDirs []string `mapstructure:"writable_dirs"`

	// MinRuntimeMajor/MinRuntimeMinor gate the installed PHP version.
	MinRuntimeMajor int `mapstructure:"min_runtime_major"`
	MinRuntimeMinor int `mapstructure:"min_runtime_minor"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("artifact_url", "https://releases.stackmill.io/app/app-%s.tar.gz")
	v.SetDefault("version", "12.0.0")
	v.SetDefault("php_bin", "php")
	v.SetDefault("composer_bin", "composer")
	v.SetDefault("mysqldump_bin", "mysqldump")
	v.SetDefault("service_user", "www-data")
	v.SetDefault("service_group", "www-data")
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("mutable_dirs", []string{
		"app", "resources", "database", "public", "bootstrap", "config", "routes",
	})
	v.SetDefault("writable_dirs", []string{"storage", "bootstrap/cache"})
	v.SetDefault("min_runtime_major", 8)
	v.SetDefault("min_runtime_minor", 1)
}

// Load reads the settings file at path, falling back to defaults for every
// unset key. Only the implicit default location tolerates a missing file:
// the defaults describe a stock installation. An explicitly requested file
// that is absent or cannot be parsed is an error.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		notFound := isNotExist(err)
		if !notFound {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				notFound = true
			}
		}
		if !notFound || explicit {
			return nil, fmt.Errorf("read settings %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return &s, nil
}

// ArtifactURLFor renders the artifact URL for a version identifier.
func (s *Settings) ArtifactURLFor(version string) string {
	return fmt.Sprintf(s.ArtifactURL, version)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
