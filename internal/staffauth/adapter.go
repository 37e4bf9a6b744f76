package staffauth

import (
	authmw "registrar/pkg/platform/middleware/auth"
)

// Adapter exposes TokenService to the auth middleware.
type Adapter struct {
	service *TokenService
}

func NewAdapter(service *TokenService) *Adapter {
	return &Adapter{service: service}
}

func (a *Adapter) ValidateToken(tokenString string) (*authmw.StaffClaims, error) {
	claims, err := a.service.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.StaffClaims{Subject: claims.Subject, Role: claims.Role}, nil
}
