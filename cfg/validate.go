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

import "fmt"

func isValidLogRotateConfig(config *LogRotateConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be at least 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidDBCacheConfig(c *DBCacheConfig) error {
	if c.FromDir == "" {
		return fmt.Errorf("db-cache.from-dir is required")
	}
	if c.ToDir == "" {
		return fmt.Errorf("db-cache.to-dir is required")
	}
	if c.GroupSizeBytes <= 0 {
		return fmt.Errorf("db-cache.group-size-bytes must be positive")
	}
	return nil
}

func isValidRWCacheConfig(c *RWCacheConfig) error {
	if c.ToDir == "" {
		return fmt.Errorf("rw-cache.to-dir is required")
	}
	if c.CacheSizeBytes < 0 {
		return fmt.Errorf("rw-cache.cache-size-bytes can't be negative")
	}
	if c.IncrementSizeBytes < 0 {
		return fmt.Errorf("rw-cache.increment-size-bytes can't be negative")
	}
	return nil
}

// ValidateDBCacheConfig returns a non-nil error if config.DBCache is invalid.
func ValidateDBCacheConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}
	return isValidDBCacheConfig(&config.DBCache)
}

// ValidateRWCacheConfig returns a non-nil error if config.RWCache is invalid.
func ValidateRWCacheConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}
	return isValidRWCacheConfig(&config.RWCache)
}
