package platform

import (
	"context"
	"net/http"

	"trustline-client-go/internal/transport"
)

// FeatureService exposes endpoints on the secondary feature origin. The same
// bearer credential is valid there; only the origin differs.
type FeatureService struct {
	api Doer
}

func NewFeatureService(api Doer) *FeatureService {
	return &FeatureService{api: api}
}

// Passkey is a registered WebAuthn credential.
type Passkey struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	CreatedAt string `json:"created_at"`
}

func (s *FeatureService) Passkeys(ctx context.Context) ([]Passkey, error) {
	var out struct {
		Passkeys []Passkey `json:"passkeys"`
	}
	err := s.api.DoJSON(ctx, &transport.Request{
		Origin: transport.OriginFeature,
		Method: http.MethodGet,
		Path:   "/passkeys",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Passkeys, nil
}

// ProbeSession checks whether the session is still accepted by the backend.
// It is a background probe: an authoritative 401 here must not force logout,
// so the request opts out of session teardown.
func (s *FeatureService) ProbeSession(ctx context.Context) error {
	return s.api.DoJSON(ctx, &transport.Request{
		Origin:   transport.OriginAPI,
		Method:   http.MethodGet,
		Path:     "/auth/session",
		NoLogout: true,
	}, nil)
}
