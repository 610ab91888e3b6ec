package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/core/service"
)

// JSONCodec carries KitchenService messages as JSON so the service needs no
// generated stubs.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                       { return "json" }

type ListPendingRequest struct {
	ProductionHouseID string `json:"production_house_id"`
}

type ListPendingResponse struct {
	Requests []domain.ProductionRequest `json:"requests"`
}

type DispatchLine struct {
	SKU      string `json:"sku"`
	Quantity string `json:"quantity"`
}

type KitchenDispatchRequest struct {
	RequestID string         `json:"request_id"`
	Lines     []DispatchLine `json:"lines,omitempty"`
}

type KitchenDispatchResponse struct {
	Request domain.ProductionRequest `json:"request"`
}

// KitchenServer is the production house side of production requests.
type KitchenServer interface {
	ListPending(ctx context.Context, req *ListPendingRequest) (*ListPendingResponse, error)
	Dispatch(ctx context.Context, req *KitchenDispatchRequest) (*KitchenDispatchResponse, error)
}

var KitchenServiceDesc = grpc.ServiceDesc{
	ServiceName: "momo.KitchenService",
	HandlerType: (*KitchenServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListPending", Handler: listPendingHandler},
		{MethodName: "Dispatch", Handler: dispatchHandler},
	},
	Metadata: "momo/kitchen.proto",
}

func listPendingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListPendingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KitchenServer).ListPending(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/momo.KitchenService/ListPending"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KitchenServer).ListPending(ctx, req.(*ListPendingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(KitchenDispatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KitchenServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/momo.KitchenService/Dispatch"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KitchenServer).Dispatch(ctx, req.(*KitchenDispatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type GRPCHandler struct {
	production *service.ProductionService
	auth       *service.AuthService
	logger     *slog.Logger
}

func NewGRPCHandler(svc *service.Services, logger *slog.Logger) *GRPCHandler {
	return &GRPCHandler{production: svc.Production, auth: svc.Auth, logger: logger}
}

// NewGRPCServer returns a server with KitchenService registered behind the
// bearer token interceptor.
func NewGRPCServer(h *GRPCHandler) *grpc.Server {
	s := grpc.NewServer(
		grpc.ForceServerCodec(JSONCodec{}),
		grpc.UnaryInterceptor(h.authenticate),
	)
	s.RegisterService(&KitchenServiceDesc, h)
	return s
}

type principalKey struct{}

func (h *GRPCHandler) authenticate(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	var token string
	if v := md.Get("authorization"); len(v) > 0 {
		token, _ = strings.CutPrefix(v[0], "Bearer ")
	}
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	p, err := h.auth.Authenticate(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := next(context.WithValue(ctx, principalKey{}, p), req)
	if err != nil {
		h.logger.Warn("grpc_request_failed", "method", info.FullMethod, "employee_id", p.EmployeeID, "err", err)
	}
	return resp, err
}

func grpcPrincipal(ctx context.Context) domain.Principal {
	p, _ := ctx.Value(principalKey{}).(domain.Principal)
	return p
}

func (h *GRPCHandler) ListPending(ctx context.Context, req *ListPendingRequest) (*ListPendingResponse, error) {
	out, err := h.production.ListPending(ctx, grpcPrincipal(ctx), req.ProductionHouseID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListPendingResponse{Requests: out}, nil
}

func (h *GRPCHandler) Dispatch(ctx context.Context, req *KitchenDispatchRequest) (*KitchenDispatchResponse, error) {
	lines := make([]lineRequest, 0, len(req.Lines))
	for i, l := range req.Lines {
		q, err := decimal.NewFromString(l.Quantity)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "lines[%d].quantity: %v", i, err)
		}
		lines = append(lines, lineRequest{SKU: l.SKU, Quantity: q})
	}
	r, err := h.production.Dispatch(ctx, grpcPrincipal(ctx), req.RequestID, lineInputs(lines))
	if err != nil {
		return nil, toStatus(err)
	}
	return &KitchenDispatchResponse{Request: *r}, nil
}

func toStatus(err error) error {
	code := codes.Internal
	if ae, ok := apperr.As(err); ok {
		switch ae.Kind {
		case apperr.Invalid:
			code = codes.InvalidArgument
		case apperr.NotFound:
			code = codes.NotFound
		case apperr.Unauthorized:
			code = codes.Unauthenticated
		case apperr.Forbidden:
			code = codes.PermissionDenied
		case apperr.Conflict:
			code = codes.FailedPrecondition
		}
	}
	return status.Error(code, apperr.PublicMessage(err))
}

// KitchenClient calls KitchenService with a bearer token.
type KitchenClient struct {
	conn  grpc.ClientConnInterface
	token string
}

func NewKitchenClient(conn grpc.ClientConnInterface, token string) *KitchenClient {
	return &KitchenClient{conn: conn, token: token}
}

func (c *KitchenClient) invoke(ctx context.Context, method string, in, out any) error {
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	return c.conn.Invoke(ctx, "/momo.KitchenService/"+method, in, out, grpc.ForceCodec(JSONCodec{}))
}

func (c *KitchenClient) ListPending(ctx context.Context, houseID string) ([]domain.ProductionRequest, error) {
	var out ListPendingResponse
	if err := c.invoke(ctx, "ListPending", &ListPendingRequest{ProductionHouseID: houseID}, &out); err != nil {
		return nil, err
	}
	return out.Requests, nil
}

func (c *KitchenClient) Dispatch(ctx context.Context, requestID string, lines ...DispatchLine) (*domain.ProductionRequest, error) {
	var out KitchenDispatchResponse
	if err := c.invoke(ctx, "Dispatch", &KitchenDispatchRequest{RequestID: requestID, Lines: lines}, &out); err != nil {
		return nil, err
	}
	return &out.Request, nil
}
