// Package service is the request boundary: JSON in, JSON out, every error
// recovered and classified.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"qircuitsim/internal/circuit"
	"qircuitsim/internal/engine"
	"qircuitsim/internal/format"
	"qircuitsim/internal/simerr"
)

// Runner executes a circuit. *engine.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, c *circuit.Circuit, shots int, seed *int64) (*engine.Result, error)
}

type Option func(*Service)

func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithDefaultSeed seeds every request that does not carry its own seed.
func WithDefaultSeed(seed *int64) Option {
	return func(s *Service) { s.seed = seed }
}

// Service handles simulation requests. Requests share nothing but the
// runner, so one failing request never affects another.
type Service struct {
	runner Runner
	logger *log.Logger
	tracer trace.Tracer
	seed   *int64
}

func New(runner Runner, opts ...Option) *Service {
	s := &Service{
		runner: runner,
		logger: log.Default(),
		tracer: otel.Tracer("qircuitsim/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Simulate decodes a JSON request, runs it and returns the JSON response.
// It never fails: errors are reported in the body.
func (s *Service) Simulate(ctx context.Context, body []byte) []byte {
	resp := s.Handle(ctx, body)
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encode response", "kind", simerr.Internal.String(), "err", err)
		data, _ = json.Marshal(format.ErrorResponse(err))
	}
	return data
}

// Handle is Simulate without the final encoding step.
func (s *Service) Handle(ctx context.Context, body []byte) (resp format.Response) {
	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)

	ctx, span := s.tracer.Start(ctx, "qsim.simulate")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", requestID))

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := simerr.Internalf(fmt.Errorf("panic: %v", r), "simulate", "recovered")
			resp = s.fail(logger, span, err)
		}
	}()

	req, err := circuit.DecodeRequest(body)
	if err != nil {
		return s.fail(logger, span, err)
	}
	c, err := req.Circuit.Build()
	if err != nil {
		return s.fail(logger, span, err)
	}
	span.SetAttributes(
		attribute.Int("circuit.qubits", c.NumQubits),
		attribute.Int("circuit.ops", c.Len()),
		attribute.Int("shots", req.Shots),
	)

	seed := req.Seed
	if seed == nil {
		seed = s.seed
	}
	res, err := s.runner.Run(ctx, c, req.Shots, seed)
	if err != nil {
		return s.fail(logger, span, err)
	}
	resp, err = format.NewResponse(res)
	if err != nil {
		return s.fail(logger, span, err)
	}

	logger.Info("simulation complete",
		"qubits", c.NumQubits,
		"ops", c.Len(),
		"shots", req.Shots,
		"latency", time.Since(start),
	)
	span.SetStatus(codes.Ok, "")
	return resp
}

// SimulateCircuit runs an already-built circuit under the same tracing and
// logging as Handle, returning the raw result.
func (s *Service) SimulateCircuit(ctx context.Context, c *circuit.Circuit, shots int, seed *int64) (*engine.Result, error) {
	logger := s.logger.With("request_id", uuid.NewString())
	ctx, span := s.tracer.Start(ctx, "qsim.simulate")
	defer span.End()

	if seed == nil {
		seed = s.seed
	}
	start := time.Now()
	res, err := s.runner.Run(ctx, c, shots, seed)
	if err != nil {
		s.fail(logger, span, err)
		return nil, err
	}
	logger.Debug("simulation complete", "shots", shots, "latency", time.Since(start))
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (s *Service) fail(logger *log.Logger, span trace.Span, err error) format.Response {
	span.RecordError(err)
	span.SetStatus(codes.Error, simerr.Code(err))

	switch kind := simerr.KindOf(err); {
	case kind == simerr.Validation || kind == simerr.ResourceLimit:
		logger.Warn("request rejected", "kind", kind.String(), "err", err)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		logger.Warn("request canceled", "err", err)
	default:
		logger.Error("internal simulation error", "kind", simerr.Internal.String(), "err", err)
	}
	return format.ErrorResponse(err)
}
