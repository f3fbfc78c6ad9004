package identity

import (
	"palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	authmw "palisade/pkg/platform/middleware/auth"
)

// ToMiddlewareClaims converts validated token claims into the typed claims
// the auth middleware stores in the request context. Tokens whose IDs or
// role fail to parse are treated as invalid.
func ToMiddlewareClaims(claims *Claims) (*authmw.Claims, error) {
	userID, err := domain.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	sessionID, err := domain.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return &authmw.Claims{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		JTI:       claims.ID,
	}, nil
}

// ServiceAdapter adapts Service to the middleware TokenValidator interface.
type ServiceAdapter struct {
	service *Service
}

func NewServiceAdapter(service *Service) *ServiceAdapter {
	return &ServiceAdapter{service: service}
}

func (a *ServiceAdapter) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
