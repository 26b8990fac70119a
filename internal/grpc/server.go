package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"invest-wallet/internal/logger"
	"invest-wallet/internal/metrics"
	"invest-wallet/internal/ratelimit"
	"invest-wallet/internal/repository"
	"invest-wallet/internal/services"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type Server struct {
	Wallet     *services.WalletService
	Withdrawal *services.WithdrawalService
	Commission *services.CommissionService
	Limiter    *ratelimit.Limiter
}

// NewGRPCServer registers the Ledger and health services on a new server.
func NewGRPCServer(srv *Server) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor))
	RegisterLedgerServer(s, srv)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)
	return s
}

// StartGRPCServer listens on port and serves until the listener fails.
func StartGRPCServer(port string, srv *Server) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s := NewGRPCServer(srv)
	logger.Log.Info("gRPC server listening", zap.String("port", port))
	return s.Serve(lis)
}

func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Duration("latency", time.Since(start)),
		zap.String("code", status.Code(err).String()),
	}
	if err != nil {
		logger.Log.Warn("gRPC call failed", append(fields, zap.Error(err))...)
	} else {
		logger.Log.Debug("gRPC call handled", fields...)
	}
	return resp, err
}

func (s *Server) DistributeCommission(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	transactionId, err := intField(req, "transaction_id")
	if err != nil {
		return nil, err
	}

	earnings, err := s.Commission.Distribute(ctx, transactionId)
	if err != nil && len(earnings) == 0 {
		return reply(err)
	}
	if err != nil {
		// Paid levels stay paid; the rest are left to retries and the reconciler.
		logger.Log.Warn("Commission partially distributed", zap.Int("transactionId", transactionId), zap.Error(err))
		return response(false, "Commission partially distributed", earnings)
	}
	return response(true, "Commission distributed", earnings)
}

func (s *Server) RequestWithdrawal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userId, err := intField(req, "user_id")
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}

	result, err := s.Withdrawal.RequestWithdrawal(ctx, services.WithdrawRequestDTO{
		UserId:        userId,
		Amount:        amount,
		PaymentMethod: stringField(req, "payment_method"),
		Phone:         stringField(req, "phone"),
		PinVerified:   req.GetFields()["pin_verified"].GetBoolValue(),
	})
	if err != nil {
		return reply(err)
	}
	return response(true, "Withdrawal request submitted", result)
}

// CheckRateLimit counts one request. Either a named profile or an explicit
// window_ms and max_requests pair selects the limits.
func (s *Server) CheckRateLimit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	identifier := stringField(req, "identifier")
	if identifier == "" {
		return nil, status.Error(codes.InvalidArgument, "identifier is required")
	}

	key := identifier
	label := "custom"
	var cfg ratelimit.Config
	if profile := stringField(req, "profile"); profile != "" {
		c, err := s.Limiter.Profile(profile)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		cfg, key, label = c, ratelimit.AccountKey(profile, identifier), profile
	} else {
		windowMs, err := intField(req, "window_ms")
		if err != nil {
			return nil, err
		}
		maxRequests, err := intField(req, "max_requests")
		if err != nil {
			return nil, err
		}
		cfg = ratelimit.Config{Window: time.Duration(windowMs) * time.Millisecond, MaxRequests: maxRequests}
	}

	res, err := s.Limiter.Check(ctx, key, cfg)
	if err != nil {
		if errors.Is(err, ratelimit.ErrInvalidConfig) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		metrics.RateLimitDecisionsTotal.WithLabelValues(label, "error").Inc()
		return nil, status.Error(codes.Unavailable, "rate limiter unavailable")
	}

	decision := "allowed"
	if !res.Allowed {
		decision = "denied"
	}
	metrics.RateLimitDecisionsTotal.WithLabelValues(label, decision).Inc()

	return structpb.NewStruct(map[string]interface{}{
		"allowed":             res.Allowed,
		"remaining":           res.Remaining,
		"reset_time":          res.ResetTime.UTC().Format(time.RFC3339Nano),
		"retry_after_seconds": int(res.RetryAfter(s.Limiter.Now()).Seconds()),
	})
}

func (s *Server) GetWallet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userId, err := intField(req, "user_id")
	if err != nil {
		return nil, err
	}
	wallet, err := s.Wallet.GetWallet(ctx, userId)
	if err != nil {
		return reply(err)
	}
	return response(true, "Wallet retrieved", wallet)
}

// reply turns business rejections into an unsuccessful response and
// infrastructure failures into status errors.
func reply(err error) (*structpb.Struct, error) {
	var policyErr *services.PolicyError
	switch {
	case errors.As(err, &policyErr):
		return structpb.NewStruct(map[string]interface{}{
			"success":           false,
			"message":           policyErr.Message,
			"code":              string(policyErr.Code),
			"withdrawal_number": policyErr.WithdrawalNumber,
			"bound":             policyErr.Bound.String(),
			"remaining_hours":   policyErr.RemainingHours,
		})
	case errors.Is(err, repository.ErrNotFound):
		return nil, status.Error(codes.NotFound, "resource not found")
	case errors.Is(err, services.ErrPinNotVerified), errors.Is(err, services.ErrInvalidAmount):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, services.ErrNotEligible), errors.Is(err, services.ErrInvalidState), errors.Is(err, repository.ErrGuardRejected):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, repository.ErrConflict):
		return nil, status.Error(codes.Aborted, "concurrent update, please retry")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, status.FromContextError(err).Err()
	case errors.Is(err, repository.ErrUnavailable):
		logger.Log.Error("Storage unavailable", zap.Error(err))
		return nil, status.Error(codes.Unavailable, "service temporarily unavailable")
	}
	logger.Log.Error("gRPC call failed", zap.Error(err))
	return nil, status.Error(codes.Internal, "internal error")
}

func response(success bool, message string, data interface{}) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"success": success,
		"message": message,
	}
	if data != nil {
		converted, err := toValue(data)
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to encode response")
		}
		fields["data"] = converted
	}
	return structpb.NewStruct(fields)
}

// toValue round-trips through JSON so struct tags and decimal encoding apply.
func toValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func intField(req *structpb.Struct, name string) (int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != float64(int(n)) {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
		}
		return int(n), nil
	case *structpb.Value_StringValue:
		n, err := strconv.Atoi(kind.StringValue)
		if err != nil {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
		}
		return n, nil
	}
	return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
}

// decimalField accepts amounts as strings or numbers. Strings are preferred
// since they keep the exact value.
func decimalField(req *structpb.Struct, name string) (decimal.Decimal, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s is not a valid amount", name)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		return decimal.NewFromFloat(kind.NumberValue), nil
	}
	return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s is not a valid amount", name)
}
