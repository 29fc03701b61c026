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

// Package analysishelper provides helpers for running a single unit of analysis (one method) so
// that a failure in that unit never takes down the whole session.
package analysishelper

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Result is the result of one analysis unit where the actual result is accompanied by an optional
// error.
type Result[T any] struct {
	// Res is the actual result of the unit.
	Res T
	// Err is the optional error of the unit.
	Err error
}

// WrapRun wraps the run function of an analysis unit to:
// (1) convert the return values to Result[T] so that an error does _not_ stop the session and the
// caller decides what to do with it;
// (2) recover from a panic and convert it to an error with stack traces for easier debugging.
// Moreover, the error is prefixed with the name of the unit to make it easier to identify.
func WrapRun[T any](name string, f func(context.Context) (T, error)) func(context.Context) Result[T] {
	return func(ctx context.Context) (result Result[T]) {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				result = Result[T]{
					Res: zero,
					Err: fmt.Errorf("INTERNAL PANIC from %q: %s\n%s", name, r, string(debug.Stack())),
				}
			}
		}()

		r, err := f(ctx)
		if err != nil {
			err = fmt.Errorf("%s: %w", name, err)
		}
		return Result[T]{Res: r, Err: err}
	}
}
