// Package ping provides the built-in synapticai.Health/Ping RPC used by load
// balancers and operators. It reports whether the shared rate-limit store is
// reachable and how many entries the local cache holds. It uses
// [grpc.ServiceDesc] registration so that no protobuf code generation is
// required.
//
// Because the request/response types are plain Go structs (not generated
// protobuf messages), the package registers a thin codec wrapper that
// JSON-encodes Ping types while delegating all other messages to the
// standard proto codec. Import this package (or call [Register]) to
// activate the codec automatically.
package ping

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	grpcEncoding "google.golang.org/grpc/encoding"
	_ "google.golang.org/grpc/encoding/proto" // ensure default proto codec is registered first
	"google.golang.org/protobuf/proto"
)

// FullMethod is the full gRPC method name of Ping.
const FullMethod = "/synapticai.Health/Ping"

// Status values reported in PingResponse.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// PingRequest is the input for the Ping method.
type PingRequest struct {
	Message string `json:"message"`
}

// PingResponse is the output of the Ping method.
type PingResponse struct {
	Message        string `json:"message"`
	ServerTimeUnix int64  `json:"server_time_unix"`

	// Status is "degraded" when the rate-limit store is unreachable and
	// requests are being let through unmetered.
	Status       string `json:"status"`
	StoreError   string `json:"store_error,omitempty"`
	CacheEntries int    `json:"cache_entries"`
}

// pingMsg is a marker interface satisfied by PingRequest and PingResponse.
type pingMsg interface {
	isPingMsg()
}

func (*PingRequest) isPingMsg()  {}
func (*PingResponse) isPingMsg() {}

// Handler is the interface that a Ping service implementation must satisfy.
type Handler interface {
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
}

// Probes are the health sources consulted by [NewHandler]. Nil fields are
// skipped.
type Probes struct {
	// Store checks the rate-limit store.
	Store func(ctx context.Context) error

	// CacheLen reports the number of live local cache entries.
	CacheLen func() int
}

// NewHandler returns a Handler that echoes the request message, attaches the
// current server time and reports the probes' results.
func NewHandler(p Probes) Handler { return healthHandler{probes: p, now: time.Now} }

type healthHandler struct {
	probes Probes
	now    func() time.Time
}

func (h healthHandler) Ping(ctx context.Context, req *PingRequest) (*PingResponse, error) {
	resp := &PingResponse{
		Message:        req.Message,
		ServerTimeUnix: h.now().Unix(),
		Status:         StatusOK,
	}
	if h.probes.Store != nil {
		if err := h.probes.Store(ctx); err != nil {
			resp.Status = StatusDegraded
			resp.StoreError = err.Error()
		}
	}
	if h.probes.CacheLen != nil {
		resp.CacheEntries = h.probes.CacheLen()
	}
	return resp, nil
}

// ServiceDesc is the grpc.ServiceDesc for the synapticai.Health service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "synapticai.Health",
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ping",
			Handler:    pingHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "synapticai/health.proto",
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(PingRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).Ping(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FullMethod,
	}
	handler := func(ctx context.Context, r any) (any, error) {
		return srv.(Handler).Ping(ctx, r.(*PingRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// Register registers a Ping service implementation on the given gRPC server.
func Register(s *grpc.Server, h Handler) {
	s.RegisterService(&ServiceDesc, h)
}

func init() {
	// Replace the default proto codec with a thin wrapper that JSON-encodes
	// ping types and delegates all other (protobuf) messages to proto.Marshal.
	grpcEncoding.RegisterCodec(pingCodec{})
}

// pingCodec wraps the default proto codec. It handles PingRequest and
// PingResponse via JSON, and delegates all other types to proto.Marshal/Unmarshal.
type pingCodec struct{}

func (pingCodec) Name() string { return "proto" }

func (pingCodec) Marshal(v any) ([]byte, error) {
	if _, ok := v.(pingMsg); ok {
		return json.Marshal(v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("ping codec: unsupported message type %T", v)
}

func (pingCodec) Unmarshal(data []byte, v any) error {
	if _, ok := v.(pingMsg); ok {
		return json.Unmarshal(data, v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("ping codec: unsupported message type %T", v)
}
