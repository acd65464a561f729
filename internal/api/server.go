package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"agrirent/internal/config"
	"agrirent/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	rentalServiceName   = "agrirent.rental.v1.RentalService"
	methodCheckDate     = "/" + rentalServiceName + "/CheckDate"
	methodQuote         = "/" + rentalServiceName + "/Quote"
	methodListEquipment = "/" + rentalServiceName + "/ListEquipment"
)

// RentalServer is the gRPC surface. Messages are google.protobuf.Struct.
type RentalServer interface {
	CheckDate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Quote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListEquipment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(fullMethod string, call func(RentalServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RentalServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RentalServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var rentalServiceDesc = grpc.ServiceDesc{
	ServiceName: rentalServiceName,
	HandlerType: (*RentalServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckDate", Handler: unaryHandler(methodCheckDate, RentalServer.CheckDate)},
		{MethodName: "Quote", Handler: unaryHandler(methodQuote, RentalServer.Quote)},
		{MethodName: "ListEquipment", Handler: unaryHandler(methodListEquipment, RentalServer.ListEquipment)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: rentalProtoFile,
}

// RegisterRentalServer attaches srv to a gRPC server.
func RegisterRentalServer(s grpc.ServiceRegistrar, srv RentalServer) {
	s.RegisterService(&rentalServiceDesc, srv)
}

// RentalClient calls RentalService over a client connection.
type RentalClient struct {
	cc grpc.ClientConnInterface
}

func NewRentalClient(cc grpc.ClientConnInterface) *RentalClient {
	return &RentalClient{cc: cc}
}

func (c *RentalClient) invoke(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RentalClient) CheckDate(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodCheckDate, req, opts...)
}

func (c *RentalClient) Quote(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodQuote, req, opts...)
}

func (c *RentalClient) ListEquipment(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListEquipment, req, opts...)
}

// RentalService answers catalog and availability questions over gRPC.
type RentalService struct {
	svc Services
}

func NewRentalService(svc Services) *RentalService {
	return &RentalService{svc: svc}
}

func stringField(req *structpb.Struct, name string) string {
	if v, ok := req.GetFields()[name]; ok {
		return strings.TrimSpace(v.GetStringValue())
	}
	return ""
}

func idField(req *structpb.Struct, name string) (int64, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	id := int64(v.GetNumberValue())
	if id <= 0 || float64(id) != v.GetNumberValue() {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a positive integer", name)
	}
	return id, nil
}

func dateField(req *structpb.Struct, name string) (time.Time, error) {
	raw := stringField(req, name)
	if raw == "" {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "invalid %s; expected YYYY-MM-DD", name)
	}
	return d, nil
}

// toStruct converts any JSON-encodable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func (s *RentalService) CheckDate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req, "equipment_id")
	if err != nil {
		return nil, err
	}
	date, err := dateField(req, "date")
	if err != nil {
		return nil, err
	}

	blocked, reason, err := s.svc.Bookings.IsDateBlocked(ctx, id, date)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{
		"equipment_id": id,
		"date":         date.Format(models.DateLayout),
		"blocked":      blocked,
		"reason":       reason,
	})
}

func (s *RentalService) Quote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req, "equipment_id")
	if err != nil {
		return nil, err
	}
	start, err := dateField(req, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := dateField(req, "end_date")
	if err != nil {
		return nil, err
	}
	iv, err := models.NewDateInterval(start, end)
	if err != nil {
		return nil, grpcError(err)
	}

	quote, err := s.svc.Bookings.Quote(ctx, id, iv)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(quote)
}

func (s *RentalService) ListEquipment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filter := models.EquipmentFilter{
		Search:   stringField(req, "search"),
		Category: stringField(req, "category"),
		Location: stringField(req, "location"),
	}
	if v, ok := req.GetFields()["max_price_per_day"]; ok {
		filter.MaxPricePerDay = v.GetNumberValue()
	}

	items, err := s.svc.Equipment.List(ctx, filter)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"equipment": items})
}

type GRPCServer struct {
	cfg      *config.APIConfig
	server   *grpc.Server
	listener net.Listener
	log      zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, svc Services, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return newGRPCServer(cfg, svc, lis, logger)
}

func newGRPCServer(cfg *config.APIConfig, svc Services, lis net.Listener, logger *zerolog.Logger) (*GRPCServer, error) {
	auth := NewAuthInterceptor(cfg)
	unary := ChainUnaryInterceptors(
		LoggingUnaryInterceptor(logger),
		auth.Unary(),
	)

	serverOpts := []grpc.ServerOption{grpc.UnaryInterceptor(unary)}
	if cfg.GRPC.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(cfg.GRPC.TLS)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	grpcServer := grpc.NewServer(serverOpts...)
	RegisterRentalServer(grpcServer, NewRentalService(svc))

	if cfg.GRPC.Reflection {
		reflection.Register(grpcServer)
	}

	serverLogger := zerolog.Nop()
	if logger != nil {
		serverLogger = logger.With().Str("component", "grpc").Logger()
	}

	return &GRPCServer{
		cfg:      cfg,
		server:   grpcServer,
		listener: lis,
		log:      serverLogger,
	}, nil
}

func buildTLSConfig(cfg config.APITLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("grpc tls enabled but cert_file/key_file not set")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load grpc tls keypair: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.RequireClientCert {
		if cfg.ClientCAFile == "" {
			return nil, fmt.Errorf("grpc tls require_client_cert=true but client_ca_file not set")
		}
		caPEM, err := os.ReadFile(cfg.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("read client_ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse client_ca_file PEM")
		}
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		tlsCfg.ClientCAs = pool
	}

	return tlsCfg, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
		return
	case <-time.After(10 * time.Second):
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
		return
	}
}
