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

package config

// This file hosts non-user-configurable parameters --- these are for development and testing purposes only.

// MaxVisitsPerInstruction bounds the fixpoint iteration of the frame analyzer: the analyzer gives up
// on a method once it has processed more than MaxVisitsPerInstruction * <number of instructions>
// worklist items. Every qualifier lattice used by jqual has height at most 4, so a frame can only
// change a handful of times per slot; this limit is never hit on well-formed input and exists to turn a
// non-monotone transformer (a bug) into an error instead of a hang.
const MaxVisitsPerInstruction = 256

// DefaultSupertypeDepth is the default cap on the breadth-first supertype walk used when a method
// is not found in the mutability catalog under its owner's exact name.
const DefaultSupertypeDepth = 16

// DefaultRounds is the default number of whole-session rounds. Each round reads the field-nullability
// memo and the annotations produced by the previous round, so two rounds are enough for the common
// "writer analyzed after reader" case; the third round catches chains of length two.
const DefaultRounds = 3

// DefaultLogLevel is the log level used by the CLI when none is given.
const DefaultLogLevel = "warn"
