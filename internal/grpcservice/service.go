// Package grpcservice implements the clipscope.v1.Inspector gRPC service.
//
// The service is declared by hand below and carries JSON-encoded messages
// (see CodecName), so clients must call with grpc.CallContentSubtype("json");
// DialOptions does that for them.
package grpcservice

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipscope/internal/acquire"
	"go.klb.dev/clipscope/internal/clip"
	"go.klb.dev/clipscope/internal/copyback"
	"go.klb.dev/clipscope/internal/hub"
	"go.klb.dev/clipscope/internal/session"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "clipscope.v1.Inspector"

// Backend is what the service exposes. *session.Session implements it.
type Backend interface {
	Acquire(ctx context.Context) (acquire.State, error)
	State() acquire.State
	Capabilities() []string
	CopyBack(ctx context.Context, snapshotID string, edits map[int]string) (copyback.Result, error)
	CopyEntry(ctx context.Context, snapshotID string, index int, edits map[int]string) (copyback.Result, error)
}

// InspectorServer is the server API for the Inspector service.
type InspectorServer interface {
	Acquire(context.Context, *AcquireRequest) (*AcquireResponse, error)
	CopyBack(context.Context, *CopyBackRequest) (*CopyBackResponse, error)
	State(context.Context, *StateRequest) (*StateResponse, error)
	Watch(*WatchRequest, WatchServer) error
}

// WatchServer is the server side of a Watch stream.
type WatchServer interface {
	Send(*WatchEvent) error
	grpc.ServerStream
}

type watchServer struct{ grpc.ServerStream }

func (w watchServer) Send(ev *WatchEvent) error { return w.ServerStream.SendMsg(ev) }

func unary[Req, Resp any](name string, call func(InspectorServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(InspectorServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InspectorServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Acquire", InspectorServer.Acquire),
		unary("CopyBack", InspectorServer.CopyBack),
		unary("State", InspectorServer.State),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Watch",
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(WatchRequest)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return srv.(InspectorServer).Watch(in, watchServer{stream})
		},
	}},
	Metadata: "clipscope/v1/inspector",
}

// Register adds srv to s.
func Register(s grpc.ServiceRegistrar, srv InspectorServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Service implements InspectorServer.
type Service struct {
	b     Backend
	h     *hub.Hub
	token string // empty = no auth
	watch atomic.Uint64
}

// New returns a Service backed by b; live events come from h. token may be
// empty to disable auth.
func New(b Backend, h *hub.Hub, token string) *Service {
	return &Service{b: b, h: h, token: token}
}

// Acquire implements Inspector.Acquire.
func (s *Service) Acquire(ctx context.Context, _ *AcquireRequest) (*AcquireResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	slog.Debug("acquire requested", "peer", addrFromCtx(ctx))
	st, err := s.b.Acquire(ctx)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &AcquireResponse{State: st}, nil
}

// CopyBack implements Inspector.CopyBack.
func (s *Service) CopyBack(ctx context.Context, req *CopyBackRequest) (*CopyBackResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	var (
		res copyback.Result
		err error
	)
	if req.Index != nil {
		res, err = s.b.CopyEntry(ctx, req.SnapshotID, *req.Index, req.Edits)
	} else {
		res, err = s.b.CopyBack(ctx, req.SnapshotID, req.Edits)
	}
	if err != nil {
		return nil, ToStatus(err)
	}
	return &CopyBackResponse{Result: res}, nil
}

// State implements Inspector.State.
func (s *Service) State(ctx context.Context, _ *StateRequest) (*StateResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	resp := &StateResponse{State: s.b.State(), Capabilities: s.b.Capabilities()}
	if resp.Capabilities == nil {
		resp.Capabilities = []string{}
	}
	if s.h != nil {
		resp.Viewers = s.h.Len()
	}
	return resp, nil
}

// Watch implements Inspector.Watch.
func (s *Service) Watch(req *WatchRequest, stream WatchServer) error {
	ctx := stream.Context()
	if err := s.auth(ctx); err != nil {
		return err
	}
	if s.h == nil {
		return status.Error(codes.Unimplemented, "watch not available")
	}

	wv := &watchViewer{
		id:    addrFromCtx(ctx) + "/watch/" + strconv.FormatUint(s.watch.Add(1), 10),
		kinds: req.Kinds,
		ch:    make(chan hub.Event, 16),
	}
	s.h.Register(wv)
	defer s.h.Unregister(wv)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-wv.ch:
			if err := stream.Send(&WatchEvent{Kind: string(ev.Kind), Data: ev.Data}); err != nil {
				return err
			}
		}
	}
}

// auth validates the bearer token in ctx metadata. Skipped when s.token is empty.
func (s *Service) auth(ctx context.Context) error {
	if s.token == "" {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}
	const prefix = "Bearer "
	tok := vals[0]
	if len(tok) > len(prefix) && tok[:len(prefix)] == prefix {
		tok = tok[len(prefix):]
	}
	if subtle.ConstantTimeCompare([]byte(tok), []byte(s.token)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

func addrFromCtx(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

// ToStatus maps domain errors to gRPC status errors.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case errors.Is(err, acquire.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, acquire.ErrNoCapability), errors.Is(err, clip.ErrUnavailable):
		code = codes.FailedPrecondition
	case errors.Is(err, acquire.ErrSuperseded), errors.Is(err, session.ErrStaleSnapshot):
		code = codes.Aborted
	case errors.Is(err, session.ErrNoSnapshot), errors.Is(err, copyback.ErrNoEntry):
		code = codes.NotFound
	case errors.Is(err, copyback.ErrWriteFailed), errors.Is(err, acquire.ErrClosed):
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// watchViewer is a transient hub.Viewer backed by a Watch stream.
type watchViewer struct {
	id    string
	kinds []string
	ch    chan hub.Event
}

func (v *watchViewer) ID() string { return v.id }

func (v *watchViewer) Send(ev hub.Event) {
	if len(v.kinds) > 0 && !slices.Contains(v.kinds, string(ev.Kind)) {
		return
	}
	select {
	case v.ch <- ev:
	default:
		slog.Warn("watch stream channel full, dropping", "viewer", v.id, "kind", ev.Kind)
	}
}
