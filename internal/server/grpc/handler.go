package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Ping(ctx context.Context, req *pb.PingRequest) (*pb.PingResponse, error) {

	return &pb.PingResponse{Status: "OK"}, nil

}

func (s *GRPCServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.LoginResponse, error) {

	tokens, err := s.credentials.Login(ctx, req.Username, req.Password)

	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
	}, nil

}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *pb.RefreshTokenRequest) (*pb.RefreshTokenResponse, error) {

	access, err := s.credentials.Refresh(ctx, req.RefreshToken)

	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.RefreshTokenResponse{AccessToken: access, TokenType: common.TokenTypeBearer}, nil

}

func (s *GRPCServer) Logout(ctx context.Context, req *pb.LogoutRequest) (*pb.LogoutResponse, error) {

	if err := s.credentials.Logout(ctx, req.RefreshToken); err != nil {
		return nil, toStatus(err)
	}

	return &pb.LogoutResponse{}, nil

}

func (s *GRPCServer) GetPublicKey(ctx context.Context, req *pb.GetPublicKeyRequest) (*pb.GetPublicKeyResponse, error) {

	return &pb.GetPublicKeyResponse{
		Pem:         string(s.credentials.PublicKeyPEM()),
		Fingerprint: s.credentials.KeyFingerprint(),
	}, nil

}

func (s *GRPCServer) RegisterUser(ctx context.Context, req *pb.RegisterUserRequest) (*pb.RegisterUserResponse, error) {

	s.logger.Info(ctx, "Registration request", "username", req.Username)

	user, err := s.credentials.RegisterUser(ctx, claimsFromContext(ctx), req.Username, req.Password, req.RoleId)

	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.RegisterUserResponse{Id: user.ID, Username: user.UserName, RoleId: user.RoleID}, nil

}

// toStatus maps service errors onto fixed gRPC statuses. Messages never carry
// internal detail.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, common.ErrInvalidOrExpiredRefreshToken):
		return status.Error(codes.Unauthenticated, "invalid or expired refresh token")
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, MsgTokenExpired)
	case common.IsTokenError(err):
		return status.Error(codes.Unauthenticated, MsgInvalidToken)
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorInvalidArgument):
		return status.Error(codes.InvalidArgument, "invalid argument")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
