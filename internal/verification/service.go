package verification

import (
	"context"
	"fmt"
	"log/slog"

	"compass/internal/audit"
	"compass/internal/domain"
	"compass/internal/user"
)

// Service applies provider verdicts to user records.
type Service struct {
	tokens *TokenService
	users  user.Store
	audit  *audit.Publisher
	logger *slog.Logger
}

func NewService(tokens *TokenService, users user.Store, auditPub *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{tokens: tokens, users: users, audit: auditPub, logger: logger}
}

// HandleCallback validates a signed verdict and updates the user's
// verification status. Unknown statuses are rejected before any state
// changes.
func (s *Service) HandleCallback(ctx context.Context, tokenString string) error {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return err
	}

	status, ok := domain.ParseVerificationStatus(claims.Status)
	if !ok {
		return fmt.Errorf("verification callback: unknown status %q", claims.Status)
	}

	u, err := s.users.Load(ctx, claims.Handle)
	if err != nil {
		return fmt.Errorf("verification callback: load user: %w", err)
	}

	u.Verification = status
	if err := s.users.Save(ctx, u); err != nil {
		return fmt.Errorf("verification callback: save user: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "verification status updated",
			"handle", claims.Handle, "status", status)
	}
	if s.audit != nil {
		if err := s.audit.Emit(ctx, audit.Event{
			Kind:     audit.KindDecision,
			Handle:   claims.Handle,
			Decision: "verification_updated",
			Reason:   string(status),
		}); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "audit emit failed", "error", err)
		}
	}
	return nil
}
