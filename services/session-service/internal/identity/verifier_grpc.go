//go:build protogen

package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/coachdesk/coachdesk/libs/grpcx"
	identityv1 "github.com/coachdesk/coachdesk/protos/gen/identity/v1"
)

type grpcVerifier struct {
	client identityv1.IdentityServiceClient
}

// NewVerifier dials identity-service when an address is configured so token
// revocation takes effect immediately; otherwise tokens are verified locally
// with the shared secret.
func NewVerifier(logger *slog.Logger, secret string, addr string) (Verifier, error) {
	if addr == "" {
		return NewLocalVerifier(secret), nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		logger.Warn("identity verifier unavailable, using local verification", "err", err)
		return NewLocalVerifier(secret), nil
	}
	logger.Info("grpc identity verifier enabled", "addr", addr)
	return &grpcVerifier{client: identityv1.NewIdentityServiceClient(conn)}, nil
}

func (v *grpcVerifier) Verify(ctx context.Context, token string) (Principal, error) {
	resp, err := v.client.VerifyToken(ctx, &identityv1.VerifyTokenRequest{Token: token})
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		ID:   resp.GetUserId(),
		Role: resp.GetRole(),
		Name: resp.GetName(),
	}, nil
}
