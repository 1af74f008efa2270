package interceptors

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/jacobxo0/synapticai-sub001/contextx"
	"github.com/jacobxo0/synapticai-sub001/policy"
	"github.com/jacobxo0/synapticai-sub001/ratelimit"
	"github.com/jacobxo0/synapticai-sub001/security"
)

// RateLimitConfig wires the rate-limit interceptors.
type RateLimitConfig struct {
	Limiter *ratelimit.Limiter
	Clients *security.ClientResolver

	// Policies is optional. Methods in an exempt group skip limiting, and
	// groups with a RateLimit rule get their own quota.
	Policies *policy.Holder
}

// rateLimiter holds the shared state of both interceptors.
type rateLimiter struct {
	RateLimitConfig
}

// check resolves the caller and the method's group and consumes one request.
// It returns the enriched context, the decision and whether limiting applied.
func (rl *rateLimiter) check(ctx context.Context, fullMethod string) (context.Context, ratelimit.Decision, bool) {
	group, pol, _ := rl.Policies.Resolve(fullMethod)
	if pol != nil && pol.Exempt {
		return ctx, ratelimit.Decision{}, false
	}

	md, _ := metadata.FromIncomingContext(ctx)
	client := security.Anonymous
	if rl.Clients != nil {
		client = rl.Clients.ResolveMD(ctx, md)
	}
	ctx = contextx.WithClientID(ctx, client)
	if group != "" {
		ctx = contextx.WithGroup(ctx, group)
	}

	var d ratelimit.Decision
	if pol != nil && pol.RateLimit != nil {
		d = rl.Limiter.CheckAndConsumeN(ctx, group, client, pol.RateLimit.Rate, pol.RateLimit.Window)
	} else {
		d = rl.Limiter.CheckAndConsume(ctx, client)
	}
	return ctx, d, true
}

// decisionMD renders d as response header metadata.
func decisionMD(d ratelimit.Decision, retryAfter int) metadata.MD {
	md := metadata.Pairs(
		"x-ratelimit-limit", strconv.Itoa(d.Limit),
		"x-ratelimit-remaining", strconv.Itoa(d.Remaining),
		"x-ratelimit-reset", strconv.FormatInt(d.ResetUnix(), 10),
	)
	if !d.Allowed {
		md.Set("retry-after", strconv.Itoa(retryAfter))
	}
	return md
}

func rejected(retryAfter int) error {
	return status.Errorf(codes.ResourceExhausted, "too many requests, retry after %ds", retryAfter)
}

// RateLimitUnary returns a unary server interceptor that counts each call
// against the caller's quota, reports the quota in response headers and
// rejects calls over the limit with codes.ResourceExhausted.
func RateLimitUnary(cfg RateLimitConfig) grpc.UnaryServerInterceptor {
	rl := &rateLimiter{RateLimitConfig: cfg}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, d, limited := rl.check(ctx, info.FullMethod)
		if !limited {
			return handler(ctx, req)
		}
		retryAfter := d.RetryAfter(rl.Limiter.Now())
		_ = grpc.SetHeader(ctx, decisionMD(d, retryAfter))
		if !d.Allowed {
			return nil, rejected(retryAfter)
		}
		return handler(ctx, req)
	}
}

// RateLimitStream is the stream counterpart of [RateLimitUnary]. A stream
// counts as a single request when it is opened.
func RateLimitStream(cfg RateLimitConfig) grpc.StreamServerInterceptor {
	rl := &rateLimiter{RateLimitConfig: cfg}
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, d, limited := rl.check(ss.Context(), info.FullMethod)
		if !limited {
			return handler(srv, ss)
		}
		retryAfter := d.RetryAfter(rl.Limiter.Now())
		_ = ss.SetHeader(decisionMD(d, retryAfter))
		if !d.Allowed {
			return rejected(retryAfter)
		}
		return handler(srv, withContext(ss, ctx))
	}
}
