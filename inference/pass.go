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

// Package inference holds what the qualifier inferences share: the per-method pass protocol that
// runs several inferences in one frame analysis, the call-argument assertion helper, the lookup of
// known annotations, and the field-write memo.
package inference

import (
	"fmt"

	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/engine"
	"go.uber.org/jqual/lattice"
)

// Pass is the part of one inference that analyzes a single method. A Pass is created per method
// and used by a single goroutine.
type Pass interface {
	engine.Evaluator
	engine.FrameTransformer

	// Lattice returns the qualifier lattice of the pass; its ID equals Dimension().
	Lattice() lattice.Dimension
	// Finish extracts the pass's results from the fixpoint.
	Finish(res *engine.Result) error
}

// Analyze runs all passes over g in a single frame analysis, each pass tracking its own qualifier
// dimension on the shared values, and lets every pass extract its results.
func Analyze(g *cfg.Graph, passes ...Pass) (*engine.Result, error) {
	dims := make([]lattice.Dimension, 0, len(passes))
	transformers := make([]engine.FrameTransformer, 0, len(passes))
	evaluators := make([]engine.Evaluator, 0, len(passes))
	for _, p := range passes {
		dims = append(dims, p.Lattice())
		transformers = append(transformers, p)
		evaluators = append(evaluators, p)
	}
	product, err := lattice.NewProduct(dims...)
	if err != nil {
		return nil, err
	}

	res, err := engine.Analyze(g, product, engine.Chain(transformers...), evaluators...)
	if err != nil {
		return nil, err
	}
	for _, p := range passes {
		if err := p.Finish(res); err != nil {
			return nil, fmt.Errorf("%s extraction for %s: %w", p.Dimension(), g.Method, err)
		}
	}
	return res, nil
}
