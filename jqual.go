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

// Package jqual infers nullability and mutability annotations for the methods and fields of JVM
// classes. A Session analyzes every method of a Program with both inferences in one frame analysis,
// then repeats whole-program rounds until the knowledge that flows between methods (field writes
// and the annotations of callees) stops changing.
package jqual

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/config"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/hierarchy"
	"go.uber.org/jqual/index"
	"go.uber.org/jqual/inference"
	"go.uber.org/jqual/inference/mutability"
	"go.uber.org/jqual/inference/nullability"
	"go.uber.org/jqual/util/analysishelper"
	"golang.org/x/sync/errgroup"
)

// Program is the code a session analyzes: the declarations of every class and the bodies of the
// methods to analyze.
type Program interface {
	index.DeclarationIndex
	// Classes returns every class of the program in a stable order.
	Classes() []*declaration.Class
	// Methods returns the methods with a body, in a stable order.
	Methods() []*declaration.Method
	// Graph builds the control-flow graph of a method returned by Methods.
	Graph(m *declaration.Method) (*cfg.Graph, error)
}

// Session runs the inferences over programs. It is safe for concurrent use.
type Session struct {
	conf    *config.Config
	mode    inference.ModeOfInference
	id      uuid.UUID
	logger  *slog.Logger
	metrics *Metrics
	catalog *mutability.Catalog
	prior   *Snapshot
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger of the session. Sessions log nothing by default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics sets the metrics the session updates.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithCatalog replaces the mutability catalog. The catalog named by the configuration, or the
// built-in one, is used otherwise.
func WithCatalog(c *mutability.Catalog) Option {
	return func(s *Session) { s.catalog = c }
}

// WithPrior makes the annotations of an earlier run known to the first round, as if they had been
// inferred in a previous round of this session.
func WithPrior(prior *Snapshot) Option {
	return func(s *Session) { s.prior = prior }
}

// NewSession validates conf and creates a session.
func NewSession(conf *config.Config, opts ...Option) (*Session, error) {
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := &Session{conf: conf, mode: inference.DetermineMode(conf), id: uuid.New()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.logger.With("session", s.id.String())
	if s.catalog == nil {
		c, err := loadCatalog(conf.CatalogPath)
		if err != nil {
			return nil, err
		}
		s.catalog = c
	}
	if s.prior == nil {
		s.prior = NewSnapshot()
	}
	return s, nil
}

func loadCatalog(path string) (*mutability.Catalog, error) {
	if path == "" {
		return mutability.DefaultCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mutability catalog: %w", err)
	}
	defer f.Close()
	return mutability.LoadCatalog(f)
}

// ID returns the identifier the session attaches to its log records.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// methodResult is what the analysis of one method contributes to a round.
type methodResult struct {
	nullability *annotation.Annotations[annotation.Nullability]
	mutability  *annotation.Annotations[annotation.Mutability]
	visits      int
}

// round holds the frozen inputs of one round.
type round struct {
	number      int
	nullability *nullability.Inferrer
	mutability  *mutability.Inferrer
}

// Run analyzes every method of p and returns the annotations in scope of the configuration. A
// method that fails is reported in Result.Errors and contributes nothing; Run itself only fails
// when ctx is done.
func (s *Session) Run(ctx context.Context, p Program) (*Result, error) {
	classes := hierarchy.BuildClasses(p.Classes())
	catalog := s.catalog.WithHierarchy(classes, s.conf.SupertypeDepth, s.logger)
	methods := p.Methods()

	var (
		memo     = nullability.NewFieldMemo()
		nulls    = annotation.New[annotation.Nullability]()
		muts     = annotation.New[annotation.Mutability]()
		failures map[declaration.MethodID]error
		rounds   int
	)
	maxRounds := s.conf.Rounds
	if s.mode == inference.NoInfer {
		maxRounds = 1
	}

	for rounds < maxRounds {
		rounds++
		// This session's own results take precedence over the prior.
		known := merged(nulls, s.prior.Nullability)
		knownMut := merged(muts, s.prior.Mutability)

		frozen := memo.Snapshot()
		r := round{
			number:      rounds,
			nullability: nullability.NewInferrer(p, known, s.mode),
			mutability:  mutability.NewInferrer(p, catalog, knownMut, s.mode),
		}
		r.nullability.Fields = frozen
		r.nullability.Record = memo

		results, errs, err := s.runRound(ctx, p, methods, r)
		if err != nil {
			return nil, err
		}

		nextNulls := annotation.New[annotation.Nullability]()
		nextMuts := annotation.New[annotation.Mutability]()
		for i := range methods {
			if results[i] == nil {
				continue
			}
			nextNulls.Merge(results[i].nullability)
			nextMuts.Merge(results[i].mutability)
		}

		stable := memo.Equal(frozen) && nextNulls.Equal(nulls) && nextMuts.Equal(muts)
		nulls, muts, failures = nextNulls, nextMuts, errs
		s.metrics.round()
		s.logger.Info("round finished",
			"round", rounds, "methods", len(methods), "failed", len(errs), "stable", stable)
		if stable {
			break
		}
	}

	fields := nullability.NewInferrer(p, nil, s.mode)
	fields.Fields = memo
	nulls.Merge(fields.FieldAnnotations(allFields(p.Classes())))

	res := &Result{
		Nullability: nulls,
		Mutability:  muts,
		Rounds:      rounds,
	}
	res.Propagated = propagateOverrides(classes, p, res)
	res.Errors = sortedErrors(failures)
	res.filter(s.conf)
	s.metrics.annotations(res)
	return res, nil
}

// merged returns the entries of primary, then the entries of fallback at positions primary lacks.
func merged[A comparable](primary, fallback *annotation.Annotations[A]) *annotation.Annotations[A] {
	out := primary.Clone()
	out.Merge(fallback)
	return out
}

func allFields(classes []*declaration.Class) []*declaration.Field {
	var fields []*declaration.Field
	for _, c := range classes {
		fields = append(fields, c.Fields...)
	}
	return fields
}

// runRound analyzes every method once on a bounded worker pool. results[i] is nil for methods that
// failed; their errors are keyed by method.
func (s *Session) runRound(
	ctx context.Context,
	p Program,
	methods []*declaration.Method,
	r round,
) ([]*methodResult, map[declaration.MethodID]error, error) {
	results := make([]analysishelper.Result[*methodResult], len(methods))

	g, gctx := errgroup.WithContext(ctx)
	workers := s.conf.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)
	for i, m := range methods {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			run := analysishelper.WrapRun(m.String(), func(context.Context) (*methodResult, error) {
				return s.analyzeMethod(p, m, r)
			})
			results[i] = run(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	out := make([]*methodResult, len(methods))
	errs := make(map[declaration.MethodID]error)
	for i, m := range methods {
		if err := results[i].Err; err != nil {
			errs[m.ID()] = err
			s.metrics.failed()
			s.logger.Warn("method analysis failed", "method", m.String(), "round", r.number, "error", err)
			continue
		}
		out[i] = results[i].Res
		s.metrics.analyzed(out[i].visits)
	}
	return out, errs, nil
}

// analyzeMethod runs both inferences over one frame analysis of m.
func (s *Session) analyzeMethod(p Program, m *declaration.Method, r round) (*methodResult, error) {
	g, err := p.Graph(m)
	if err != nil {
		return nil, err
	}
	np := r.nullability.NewPass(m)
	mp := r.mutability.NewPass(m)
	res, err := inference.Analyze(g, np, mp)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("method analyzed", "method", m.String(), "round", r.number, "visits", res.Visits)
	return &methodResult{
		nullability: np.Annotations(),
		mutability:  mp.Annotations(),
		visits:      res.Visits,
	}, nil
}
