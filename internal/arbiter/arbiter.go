// Package arbiter composes the access-decision pipeline.
//
// For every protected or audited request it resolves the caller's session,
// asks the decision engine for a verdict, submits an audit record, and maps
// the outcome to the response code the HTTP proxy's auth_request directive
// expects. The auditor's opinion, when present, supersedes the local one.
package arbiter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"authgateway/internal/arbiter/metrics"
	"authgateway/internal/auditor"
	"authgateway/internal/authz"
	"authgateway/internal/platform/config"
	"authgateway/internal/platform/tracer"
	"authgateway/internal/session"
)

// Response codes for the auth_request contract.
const (
	StatusAllowed = http.StatusAccepted
	StatusDenied  = http.StatusUnauthorized
)

// Endpoint labels used for instrumentation.
const (
	EndpointAuth  = "/api/auth"
	EndpointAudit = "/api/audit"
)

// Request is the forwarded-header view of the original request being
// arbitrated, together with the inbound request carrying the cookie.
type Request struct {
	Host        string
	Proto       string
	OriginalURI string
	Inbound     *http.Request
}

// RequestFrom extracts the arbitration inputs from an auth_request call.
func RequestFrom(r *http.Request) Request {
	// net/http promotes the Host header onto the request itself.
	return Request{
		Host:        r.Host,
		Proto:       r.Header.Get("X-Forwarded-Proto"),
		OriginalURI: r.Header.Get("X-Original-URI"),
		Inbound:     r,
	}
}

// Service arbitrates requests. All collaborators are read-only after
// construction, so one Service serves arbitrary concurrent requests.
type Service struct {
	conf     *config.Config
	resolver *session.Resolver
	registry *auditor.Registry
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	logger   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collectors for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer sets the tracer for the service.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New creates the arbiter. Panics if a required collaborator is missing;
// this is a wiring defect caught at startup.
func New(conf *config.Config, resolver *session.Resolver, registry *auditor.Registry, logger *slog.Logger, opts ...Option) *Service {
	if conf == nil {
		panic("arbiter.New: config is required")
	}
	if resolver == nil {
		panic("arbiter.New: session resolver is required")
	}
	if registry == nil {
		panic("arbiter.New: auditor registry is required")
	}

	s := &Service{
		conf:     conf,
		resolver: resolver,
		registry: registry,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.tracer == nil {
		s.tracer = tracer.NewNoop()
	}
	return s
}

// Authorize arbitrates a request to a protected app and returns the status
// code to emit: 202 when allowed, 401 when denied, or whatever the auditor
// overrides with.
func (s *Service) Authorize(ctx context.Context, req Request) int {
	return s.arbitrate(ctx, req, EndpointAuth, tracer.SpanAuthorize, func(sess session.Session) authz.Result {
		return authz.CheckProtectedRequest(sess, req.Host, req.OriginalURI, s.conf)
	})
}

// Audited arbitrates a request to an audited app. The verdict always
// allows; only the auditor can turn the request away.
func (s *Service) Audited(ctx context.Context, req Request) int {
	return s.arbitrate(ctx, req, EndpointAudit, tracer.SpanAudited, authz.CheckAuditedRequest)
}

func (s *Service) arbitrate(ctx context.Context, req Request, endpoint, spanName string, check func(session.Session) authz.Result) int {
	start := time.Now()
	defer func() {
		s.metrics.ObserveDuration(endpoint, time.Since(start))
	}()

	ctx, span := s.tracer.Start(ctx, spanName, tracer.String(tracer.AttrHost, req.Host))
	defer span.End(nil)

	sess := s.resolveSession(ctx, req)
	result := check(sess)
	span.SetAttributes(
		tracer.Bool(tracer.AttrAllowed, result.Allowed),
		tracer.Bool(tracer.AttrWhitelisted, result.Whitelisted),
	)

	record := auditor.NewRecord(req.Proto, req.Host, req.OriginalURI, sess, result, start)
	override, overridden := s.submitAudit(ctx, record)

	code, allowed := finalStatus(result, override, overridden)
	s.metrics.CountRequest(allowed)
	span.SetAttributes(tracer.Int(tracer.AttrStatus, code))

	s.logger.InfoContext(ctx, "request arbitrated",
		"endpoint", endpoint,
		"host", req.Host,
		"resource", record.Resource,
		"reason", result.Reason,
		"status", code,
	)
	return code
}

func (s *Service) resolveSession(ctx context.Context, req Request) session.Session {
	ctx, span := s.tracer.Start(ctx, tracer.SpanResolve)
	defer span.End(nil)
	sess := s.resolver.Resolve(ctx, req.Inbound)
	span.SetAttributes(tracer.String(tracer.AttrSessionType, sess.Type))
	return sess
}

func (s *Service) submitAudit(ctx context.Context, record auditor.Record) (int, bool) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanAudit)
	defer span.End(nil)
	start := time.Now()
	override, overridden := s.registry.Instance().Audit(ctx, record)
	span.SetAttributes(
		tracer.Bool(tracer.AttrOverride, overridden),
		tracer.Duration(tracer.AttrAuditDuration, time.Since(start)),
	)
	return override, overridden
}

// finalStatus maps the verdict and any auditor override to the response
// code, and reports whether the effective outcome allows the request. Any
// defined override code wins; an overridden request counts as allowed only
// when the override itself is a success code.
func finalStatus(result authz.Result, override int, overridden bool) (code int, allowed bool) {
	if overridden {
		return override, override >= 200 && override < 300
	}
	if result.Allowed {
		return StatusAllowed, true
	}
	return StatusDenied, false
}
