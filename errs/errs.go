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

// Package errs holds the error kinds named in spec §7, so callers across
// scheme/, dbcache/ and rwcache/ can test for them with errors.Is/As
// instead of string matching.
package errs

import "fmt"

// Sentinel errors that carry no extra data. Wrap them with fmt.Errorf's
// %w when more context is useful; errors.Is still matches.
var (
	// ErrSchemeNotFound is returned when no registered scheme validates a URL.
	ErrSchemeNotFound = fmt.Errorf("errs: no scheme registered for this url")

	// ErrInvalidMode is the error kind for a scheme asked to open a mode it
	// does not implement. No scheme in this module returns it.
	ErrInvalidMode = fmt.Errorf("errs: invalid open mode for this scheme")

	// ErrUnsupported is returned for an operation a scheme intentionally
	// does not implement (GCS Size, per spec §4.1).
	ErrUnsupported = fmt.Errorf("errs: operation unsupported by this scheme")

	// ErrBusy is returned by DBCache.SwitchCache when the background
	// stage for the opposite slot has not finished.
	ErrBusy = fmt.Errorf("errs: cache is still staging the next group")

	// ErrStateCorrupt is returned when persisted metadata and the local
	// filesystem disagree (e.g. an eviction target is already missing).
	ErrStateCorrupt = fmt.Errorf("errs: cache metadata and filesystem disagree")
)

// RemoteIOError wraps a failure surfaced by a Scheme implementation, per
// spec §7 ("any failure from the underlying store; surfaced with its
// cause attached").
type RemoteIOError struct {
	Op    string
	URL   string
	Cause error
}

func (e *RemoteIOError) Error() string {
	return fmt.Sprintf("errs: remote io error during %s on %s: %v", e.Op, e.URL, e.Cause)
}

func (e *RemoteIOError) Unwrap() error {
	return e.Cause
}

// RemoteIO builds a RemoteIOError. op is a short verb ("open", "size",
// "upload"); url is the object the operation was acting on.
func RemoteIO(op, url string, cause error) error {
	return &RemoteIOError{Op: op, URL: url, Cause: cause}
}
