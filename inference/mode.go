//  Copyright (c) 2023 Uber Technologies, Inc.
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

package inference

import (
	"go.uber.org/jqual/config"
)

// ModeOfInference is effectively an enum indicating how much of the previously inferred knowledge a
// session may rely on.
type ModeOfInference int

const (
	// NoInfer implies that call-argument assertions, call results and field reads only consult
	// declared annotations, and the session runs a single round.
	NoInfer ModeOfInference = iota

	// FullInfer implies that annotations inferred in earlier rounds (and loaded priors) are trusted
	// like declared ones, so knowledge about callees flows into their callers round after round.
	FullInfer
)

func (m ModeOfInference) String() string {
	if m == NoInfer {
		return config.ModeDeclared
	}
	return config.ModeFull
}

// DetermineMode returns the mode selected by the configuration. Anything other than
// config.ModeDeclared selects FullInfer.
func DetermineMode(conf *config.Config) ModeOfInference {
	if conf.Mode == config.ModeDeclared {
		return NoInfer
	}
	return FullInfer
}
