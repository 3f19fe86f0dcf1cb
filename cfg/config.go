// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full configuration surface for a prefetchcache process:
// which cache shape to run, where its corpus and cache directory live,
// and how it logs. A process typically populates only one of DBCache or
// RWCache, matching which engine it constructs.
type Config struct {
	DBCache DBCacheConfig `yaml:"db-cache"`

	RWCache RWCacheConfig `yaml:"rw-cache"`

	Logging LoggingConfig `yaml:"logging"`
}

// DBCacheConfig holds dbcache.Config's construction inputs (spec §4.2).
type DBCacheConfig struct {
	FromDir string `yaml:"from-dir"`

	ToDir string `yaml:"to-dir"`

	GroupSizeBytes int64 `yaml:"group-size-bytes"`

	Extension string `yaml:"extension"`
}

// RWCacheConfig holds rwcache.Config's construction inputs (spec §4.3).
type RWCacheConfig struct {
	ToDir string `yaml:"to-dir"`

	CacheSizeBytes int64 `yaml:"cache-size-bytes"`

	IncrementSizeBytes int64 `yaml:"increment-size-bytes"`
}

// LoggingConfig carries the same settings as logger.Config; the field
// types differ (LogSeverity vs string), so callers copy it field by field
// into a logger.Config before calling logger.Init.
type LoggingConfig struct {
	FilePath string `yaml:"file-path"`

	Format string `yaml:"format"`

	Severity LogSeverity `yaml:"severity"`

	LogRotate LogRotateConfig `yaml:"log-rotate"`
}

// LogRotateConfig controls on-disk log rotation via lumberjack.
type LogRotateConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

// BindFlags registers this engine's command-line surface on flagSet and
// binds each flag into the global viper instance (viper.GetViper()) under
// the same key its yaml tag names, so when that instance is passed to Load
// Load's precedence (flag > config file > default) works regardless of
// which source set a value.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("db-cache-from-dir", "", "", "Source directory DBCache partitions into groups.")
	if err = viper.BindPFlag("db-cache.from-dir", flagSet.Lookup("db-cache-from-dir")); err != nil {
		return err
	}

	flagSet.StringP("db-cache-to-dir", "", "", "Local directory DBCache stages its A/B slots under.")
	if err = viper.BindPFlag("db-cache.to-dir", flagSet.Lookup("db-cache-to-dir")); err != nil {
		return err
	}

	flagSet.Int64P("db-cache-group-size-bytes", "", 0, "Per-group size target for DBCache's partition.")
	if err = viper.BindPFlag("db-cache.group-size-bytes", flagSet.Lookup("db-cache-group-size-bytes")); err != nil {
		return err
	}

	flagSet.StringP("db-cache-extension", "", "", "File extension DBCache filters from-dir by, e.g. \".wav\".")
	if err = viper.BindPFlag("db-cache.extension", flagSet.Lookup("db-cache-extension")); err != nil {
		return err
	}

	flagSet.StringP("rw-cache-to-dir", "", "", "Local directory RWCache stages active/staged files under.")
	if err = viper.BindPFlag("rw-cache.to-dir", flagSet.Lookup("rw-cache-to-dir")); err != nil {
		return err
	}

	flagSet.Int64P("rw-cache-size-bytes", "", 0, "RWCache's steady-state active-set budget; 0 is effectively unbounded.")
	if err = viper.BindPFlag("rw-cache.cache-size-bytes", flagSet.Lookup("rw-cache-size-bytes")); err != nil {
		return err
	}

	flagSet.Int64P("rw-cache-increment-size-bytes", "", 0, "How far RWCache may grow above cache-size-bytes before the background loop blocks; 0 defaults to cache-size-bytes + 1 GiB.")
	if err = viper.BindPFlag("rw-cache.increment-size-bytes", flagSet.Lookup("rw-cache-increment-size-bytes")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to the log file; empty logs to stderr.")
	if err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "json", "Log output format: \"text\" or \"json\".")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Minimum severity logged: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	return nil
}
