// Copyright 2024 Google LLC
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
	"fmt"
	"runtime"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultCopyConcurrency returns the default number of concurrent file
// copies a cache engine's background fetch loop runs per block, scaled
// to the machine the way the teacher scales its parallel-download worker
// count.
func DefaultCopyConcurrency() int {
	return max(8, 2*runtime.NumCPU())
}

// Load reads configFile (if non-empty) into v, applying DecodeHook so
// LogSeverity and similar custom-typed fields decode correctly, and
// returns the resulting Config. Keys are matched against the Config
// structs' yaml tags. Values already bound to v via BindFlags (which binds
// into the global viper.GetViper() instance) take precedence over the file
// per viper's normal merge order.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	config := &Config{
		Logging: DefaultLoggingConfig(),
		DBCache: DefaultDBCacheConfig(),
		RWCache: DefaultRWCacheConfig(),
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cfg: reading config file %s: %w", configFile, err)
		}
	}

	useYAMLTags := func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }
	if err := v.Unmarshal(config, viper.DecodeHook(DecodeHook()), useYAMLTags); err != nil {
		return nil, fmt.Errorf("cfg: unmarshaling config: %w", err)
	}
	return config, nil
}
