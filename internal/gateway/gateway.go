// Package gateway implements the Upstream Gateway: the single choke point
// through which every call to the workspace API passes. It enforces a
// reservoir-style token bucket and retries transient failures with backoff,
// exactly once per call site. The token bucket limits the call rate only;
// the number of calls in flight at the same time is not capped.
package gateway

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	wgerrors "github.com/kestrel-labs/workspacegraph/internal/errors"
	"github.com/kestrel-labs/workspacegraph/internal/logging"
	"github.com/kestrel-labs/workspacegraph/internal/metrics"
	"github.com/kestrel-labs/workspacegraph/internal/tracing"
	"github.com/kestrel-labs/workspacegraph/internal/workspace"
)

// Transport is the thin HTTP-calling surface the Gateway drives. A concrete
// implementation (httptransport.Client) wraps net/http; tests supply a fake.
type Transport interface {
	QueryDatabase(ctx context.Context, databaseID string, cursor string, pageSize int, filter interface{}) (QueryResult, error)
	RetrievePage(ctx context.Context, id string) (workspace.Page, error)
	RetrieveProperty(ctx context.Context, pageID, propertyID, cursor string) (PropertyPage, error)
	UpdatePage(ctx context.Context, id string, properties map[string]workspace.Property) (workspace.Page, error)
	CreatePage(ctx context.Context, parentDatabaseID string, properties map[string]workspace.Property) (workspace.Page, error)
	ArchivePage(ctx context.Context, id string) (workspace.Page, error)
}

// QueryResult is the outcome of one queryDatabase call.
type QueryResult struct {
	Pages      []workspace.Page
	NextCursor string
	HasMore    bool
}

// PropertyPage is one page of a paginated relation property retrieval.
type PropertyPage struct {
	RelationIDs []string
	NextCursor  string
	HasMore     bool
}

// BackoffStrategy selects how retry delay grows between attempts.
type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
	BackoffLinear      BackoffStrategy = "linear"
)

// Config controls rate limiting and retry behavior.
type Config struct {
	RequestsPerSecond float64
	BurstSize         int
	MaxRetries        int
	InitialBackoff    time.Duration
	Strategy          BackoffStrategy
}

func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 3,
		BurstSize:         3,
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		Strategy:          BackoffExponential,
	}
}

// Gateway passes every outbound call through a token bucket and retries
// transient failures. It is the only component in the mediator aware that a
// concrete HTTP client exists.
type Gateway struct {
	transport Transport
	limiter   *rate.Limiter
	cfg       Config
	logger    *logging.ContextLogger
}

func New(transport Transport, cfg Config, logger *logging.ContextLogger) *Gateway {
	return &Gateway{
		transport: transport,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		cfg:       cfg,
		logger:    logger,
	}
}

// calculateBackoff mirrors the retry-delay shape used across the mediator's
// reference stack: exponential doubles per attempt, linear scales directly.
func calculateBackoff(attempt int, strategy BackoffStrategy, initial time.Duration) time.Duration {
	switch strategy {
	case BackoffLinear:
		return initial * time.Duration(attempt+1)
	default:
		return initial * time.Duration(math.Pow(2, float64(attempt)))
	}
}

// call runs fn under the rate limiter, retrying transient errors with
// backoff up to cfg.MaxRetries. Permanent (4xx-equivalent) errors and
// context cancellation are not retried. Every call is wrapped in a span and
// records its duration/outcome to internal/metrics so the gateway's choke
// point is observable without every call site duplicating the bookkeeping.
func (g *Gateway) call(ctx context.Context, opName string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.Tracer("workspacegraph/gateway").Start(ctx, "gateway."+opName)
	defer span.End()
	span.SetAttributes(attribute.String("gateway.operation", opName))

	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.ObserveGatewayCall(opName, outcome, start)
	}()

	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limiter wait cancelled")
			return wgerrors.UpstreamTransient("rate limiter wait cancelled", err)
		}

		err := fn(ctx)
		if err == nil {
			outcome = "ok"
			return nil
		}

		var wgErr *wgerrors.Error
		if wgerrors.As(err, &wgErr) && !wgErr.Retryable() {
			span.RecordError(err)
			span.SetStatus(codes.Error, "permanent upstream error")
			return err
		}

		lastErr = err
		if attempt == g.cfg.MaxRetries {
			break
		}

		metrics.GatewayRetries.WithLabelValues(opName).Inc()
		delay := calculateBackoff(attempt, g.cfg.Strategy, g.cfg.InitialBackoff)
		g.logger.WithFields(map[string]interface{}{
			"operation": opName,
			"attempt":   attempt,
			"delay_ms":  delay.Milliseconds(),
		}).WithError(err).Warn("retrying upstream call")

		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context cancelled during retry wait")
			return wgerrors.UpstreamTransient("context cancelled during retry wait", ctx.Err())
		case <-time.After(delay):
		}
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "retries exhausted")
	return wgerrors.UpstreamTransient("upstream call exhausted retries: "+opName, lastErr)
}

func (g *Gateway) QueryDatabase(ctx context.Context, databaseID string, cursor string, pageSize int, filter interface{}) (QueryResult, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	var out QueryResult
	err := g.call(ctx, "queryDatabase", func(ctx context.Context) error {
		res, err := g.transport.QueryDatabase(ctx, databaseID, cursor, pageSize, filter)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

func (g *Gateway) RetrievePage(ctx context.Context, id string) (workspace.Page, error) {
	var out workspace.Page
	err := g.call(ctx, "retrievePage", func(ctx context.Context) error {
		page, err := g.transport.RetrievePage(ctx, id)
		if err != nil {
			return err
		}
		out = page
		return nil
	})
	return out, err
}

func (g *Gateway) RetrieveProperty(ctx context.Context, pageID, propertyID, cursor string) (PropertyPage, error) {
	var out PropertyPage
	err := g.call(ctx, "retrieveProperty", func(ctx context.Context) error {
		pp, err := g.transport.RetrieveProperty(ctx, pageID, propertyID, cursor)
		if err != nil {
			return err
		}
		out = pp
		return nil
	})
	return out, err
}

func (g *Gateway) UpdatePage(ctx context.Context, id string, properties map[string]workspace.Property) (workspace.Page, error) {
	var out workspace.Page
	err := g.call(ctx, "updatePage", func(ctx context.Context) error {
		page, err := g.transport.UpdatePage(ctx, id, properties)
		if err != nil {
			return err
		}
		out = page
		return nil
	})
	return out, err
}

func (g *Gateway) CreatePage(ctx context.Context, parentDatabaseID string, properties map[string]workspace.Property) (workspace.Page, error) {
	var out workspace.Page
	err := g.call(ctx, "createPage", func(ctx context.Context) error {
		page, err := g.transport.CreatePage(ctx, parentDatabaseID, properties)
		if err != nil {
			return err
		}
		out = page
		return nil
	})
	return out, err
}

func (g *Gateway) ArchivePage(ctx context.Context, id string) (workspace.Page, error) {
	var out workspace.Page
	err := g.call(ctx, "archivePage", func(ctx context.Context) error {
		page, err := g.transport.ArchivePage(ctx, id)
		if err != nil {
			return err
		}
		out = page
		return nil
	})
	return out, err
}

// RetrieveFullRelation fetches a relation property's complete id list,
// following "has more" pagination until exhausted — the precondition I1
// depends on: a relation marked incomplete must never be silently truncated.
func (g *Gateway) RetrieveFullRelation(ctx context.Context, pageID, propertyID string, first workspace.Property) ([]string, error) {
	ids := append([]string(nil), first.RelationIDs...)
	cursor := ""
	hasMore := first.RelationMore
	for hasMore {
		pp, err := g.RetrieveProperty(ctx, pageID, propertyID, cursor)
		if err != nil {
			return nil, err
		}
		ids = append(ids, pp.RelationIDs...)
		hasMore = pp.HasMore
		cursor = pp.NextCursor
	}
	return ids, nil
}
