/*
Copyright (C) 2026  Tau Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package config loads Tau's startup configuration: a JSON file overlaid
// with TAU_* environment variables, read once at process start (spec.md
// §6, §4.R). There is no dynamic-reload path — the resulting *Config is
// treated as immutable for the life of the process, matching the
// teacher's own SettingsT pattern of a single package-level struct filled
// in before the server starts serving.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	units "github.com/docker/go-units"

	"github.com/taudb/tau/label"
)

// Config is the full set of recognised startup options (spec.md §6 plus
// the domain additions of SPEC_FULL.md §6).
type Config struct {
	ServerPort            int    `json:"server.port"`
	ServerAddress         string `json:"server.address"`
	ServerCertificate     string `json:"server.certificate"`
	ServerCatalogCapacity int    `json:"server.catalog_capacity"`
	ServerMailboxCapacity int    `json:"server.mailbox_capacity"`
	ServerActorPoolSize   int    `json:"server.actor_pool_size"`

	StorageSegmentCapacityDefault Size   `json:"storage.segment_capacity_default"`
	StorageSegmentCapacityMax     Size   `json:"storage.segment_capacity_max"`
	StorageDefaultBackend         string `json:"storage.default_backend"`
	StorageDataDir                string `json:"storage.data_dir"`
	StorageLabelLength            int    `json:"storage.label_length"`

	StorageArchiveBackend  string `json:"storage.archive_backend"`
	StorageArchiveBucket   string `json:"storage.archive_bucket"`
	StorageArchivePrefix   string `json:"storage.archive_prefix"`
	StorageArchiveRegion   string `json:"storage.archive_region"`
	StorageArchiveEndpoint string `json:"storage.archive_endpoint"`
	StorageArchiveCodec    string `json:"storage.archive_codec"`

	StorageDiscoveryWatch bool `json:"storage.discovery_watch"`
}

// Size is an integer config value that accepts either a bare JSON number
// or a go-units human-readable string ("1Mi", "64Ki") in the source file.
type Size int64

// UnmarshalJSON accepts a JSON number or a go-units-parseable string.
func (s *Size) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		n, err := units.RAMInBytes(str)
		if err != nil {
			return fmt.Errorf("config: parse size %q: %w", str, err)
		}
		*s = Size(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = Size(n)
	return nil
}

// defaults matches spec.md §6's built-in values, used when the config
// file is absent and no environment variable overrides a field.
func defaults() Config {
	return Config{
		ServerPort:                    7613,
		ServerAddress:                 "0.0.0.0",
		ServerCatalogCapacity:         1 << 16,
		ServerMailboxCapacity:         1024,
		ServerActorPoolSize:           0,
		StorageSegmentCapacityDefault: 4096,
		StorageSegmentCapacityMax:     1 << 20,
		StorageDefaultBackend:         "segment",
		StorageDataDir:                "./data",
		StorageLabelLength:            32,
		StorageArchiveBackend:         "none",
		StorageArchiveCodec:           "none",
		StorageDiscoveryWatch:         true,
	}
}

// defaultConfigPath is used when TAU_CONFIG is unset.
const defaultConfigPath = "./tau.config.json"

// Load reads the config file named by the TAU_CONFIG environment variable
// (or defaultConfigPath if unset and present on disk), applies it over
// the built-in defaults, then applies TAU_* environment variable
// overrides on top. A missing config file is not an error — defaults
// apply and only environment overrides take effect.
func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("TAU_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if cfg.StorageSegmentCapacityDefault > cfg.StorageSegmentCapacityMax {
		return nil, fmt.Errorf("config: storage.segment_capacity_default (%d) exceeds storage.segment_capacity_max (%d)",
			cfg.StorageSegmentCapacityDefault, cfg.StorageSegmentCapacityMax)
	}
	if cfg.StorageLabelLength != label.Size {
		return nil, fmt.Errorf("config: storage.label_length must be %d, got %d", label.Size, cfg.StorageLabelLength)
	}

	return &cfg, nil
}

// applyEnvOverrides layers TAU_* environment variables over cfg, one per
// field, silently ignoring unset or unparseable variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TAU_SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ServerPort = n
		}
	}
	if v := os.Getenv("TAU_SERVER_ADDRESS"); v != "" {
		cfg.ServerAddress = v
	}
	if v := os.Getenv("TAU_SERVER_CERTIFICATE"); v != "" {
		cfg.ServerCertificate = v
	}
	if v := os.Getenv("TAU_SERVER_CATALOG_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ServerCatalogCapacity = n
		}
	}
	if v := os.Getenv("TAU_SERVER_MAILBOX_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ServerMailboxCapacity = n
		}
	}
	if v := os.Getenv("TAU_SERVER_ACTOR_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ServerActorPoolSize = n
		}
	}
	if v := os.Getenv("TAU_STORAGE_SEGMENT_CAPACITY_DEFAULT"); v != "" {
		if n, err := units.RAMInBytes(v); err == nil {
			cfg.StorageSegmentCapacityDefault = Size(n)
		}
	}
	if v := os.Getenv("TAU_STORAGE_SEGMENT_CAPACITY_MAX"); v != "" {
		if n, err := units.RAMInBytes(v); err == nil {
			cfg.StorageSegmentCapacityMax = Size(n)
		}
	}
	if v := os.Getenv("TAU_STORAGE_DEFAULT_BACKEND"); v != "" {
		cfg.StorageDefaultBackend = v
	}
	if v := os.Getenv("TAU_STORAGE_DATA_DIR"); v != "" {
		cfg.StorageDataDir = v
	}
	if v := os.Getenv("TAU_STORAGE_ARCHIVE_BACKEND"); v != "" {
		cfg.StorageArchiveBackend = v
	}
	if v := os.Getenv("TAU_STORAGE_ARCHIVE_BUCKET"); v != "" {
		cfg.StorageArchiveBucket = v
	}
	if v := os.Getenv("TAU_STORAGE_ARCHIVE_PREFIX"); v != "" {
		cfg.StorageArchivePrefix = v
	}
	if v := os.Getenv("TAU_STORAGE_ARCHIVE_REGION"); v != "" {
		cfg.StorageArchiveRegion = v
	}
	if v := os.Getenv("TAU_STORAGE_ARCHIVE_ENDPOINT"); v != "" {
		cfg.StorageArchiveEndpoint = v
	}
	if v := os.Getenv("TAU_STORAGE_ARCHIVE_CODEC"); v != "" {
		cfg.StorageArchiveCodec = v
	}
	if v := os.Getenv("TAU_STORAGE_DISCOVERY_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.StorageDiscoveryWatch = b
		}
	}
}
