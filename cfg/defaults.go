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

// DefaultLoggingConfig returns the configuration used before any flags or
// config file have been parsed.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   "json",
		LogRotate: LogRotateConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// DefaultDBCacheConfig returns zero-value defaults for DBCacheConfig;
// FromDir, ToDir and GroupSizeBytes have no sensible default and must be
// supplied by the caller.
func DefaultDBCacheConfig() DBCacheConfig {
	return DBCacheConfig{}
}

// DefaultRWCacheConfig returns RWCacheConfig with CacheSizeBytes left at
// zero (spec §4.3's "effectively unbounded") and IncrementSizeBytes
// likewise left at zero so rwcache.New derives it as CacheSizeBytes + 1 GiB.
func DefaultRWCacheConfig() RWCacheConfig {
	return RWCacheConfig{}
}
