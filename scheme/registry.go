// Copyright 2025 Google LLC
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

package scheme

import (
	"path/filepath"
	"sync"

	"github.com/prefetchcache/prefetchcache/errs"
)

// Registry holds the ordered list of registered Schemes and dispatches
// URLs to the first whose Validate accepts them (spec §4.1, §9 — an
// explicit registry in declaration order, not subclass enumeration).
type Registry struct {
	mu      sync.RWMutex
	schemes []Scheme
	fileFor func(absPath string) Scheme // used to normalize bare paths
}

// NewRegistry builds an empty registry. fileScheme is the Scheme used to
// normalize a bare path (one with no "xxx://" prefix) into an absolute
// local file URL, per spec §4.1 ("a URL lacking a scheme is normalized
// to a local file with absolute path").
func NewRegistry(fileScheme Scheme) *Registry {
	r := &Registry{}
	if fileScheme != nil {
		r.Register(fileScheme)
		r.fileFor = func(string) Scheme { return fileScheme }
	}
	return r
}

// Register appends scheme to the registry. Registration order is the
// dispatch order: the first Scheme whose Validate accepts a URL wins.
func (r *Registry) Register(s Scheme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemes = append(r.schemes, s)
}

// Normalize rewrites a bare (scheme-less) path into an absolute
// "file://" URL; any URL that already carries a scheme passes through
// unchanged.
func (r *Registry) Normalize(rawURL string) (string, error) {
	if SchemeOf(rawURL) != "" {
		return rawURL, nil
	}
	abs, err := filepath.Abs(rawURL)
	if err != nil {
		return "", err
	}
	return "file://" + abs, nil
}

// Resolve normalizes rawURL and returns the first registered Scheme
// whose Validate accepts it. Returns errs.ErrSchemeNotFound if none do.
func (r *Registry) Resolve(rawURL string) (Scheme, string, error) {
	normalized, err := r.Normalize(rawURL)
	if err != nil {
		return nil, "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.schemes {
		if s.Validate(normalized) {
			return s, normalized, nil
		}
	}
	return nil, "", errs.ErrSchemeNotFound
}
