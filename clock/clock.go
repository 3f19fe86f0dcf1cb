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

// Package clock abstracts time so the rolling-window cache's poll loop
// (spec §4.3, 5-second sleeps between budget checks) can be driven
// deterministically in tests instead of waiting on a real timer.
package clock

import "time"

// Clock is the capability the background fetch loop needs: read the
// current time and wait for a duration. RealClock wraps the standard
// library; SimulatedClock lets tests advance time by hand.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Sleep blocks on c.After(d) or until stop fires, whichever comes first.
// It reports whether stop fired. RWCache's poll loop uses this to honor
// stop_signal at each 5-second barrier (spec §5) without a bespoke select
// at every call site.
func Sleep(c Clock, d time.Duration, stop <-chan struct{}) (stopped bool) {
	select {
	case <-c.After(d):
		return false
	case <-stop:
		return true
	}
}
