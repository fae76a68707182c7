package platform

import (
	"context"
	"net/http"

	"trustline-client-go/internal/transport"
)

// CaseService exposes validation-case endpoints on the primary API.
type CaseService struct {
	api Doer
}

func NewCaseService(api Doer) *CaseService {
	return &CaseService{api: api}
}

// ValidationCase is a case summary.
type ValidationCase struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Guarantee string `json:"guarantee_id,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

func (s *CaseService) List(ctx context.Context) ([]ValidationCase, error) {
	var out struct {
		Cases []ValidationCase `json:"cases"`
	}
	err := s.api.DoJSON(ctx, &transport.Request{
		Origin: transport.OriginAPI,
		Method: http.MethodGet,
		Path:   "/cases",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Cases, nil
}

func (s *CaseService) Get(ctx context.Context, caseID string) (*ValidationCase, error) {
	var out ValidationCase
	err := s.api.DoJSON(ctx, &transport.Request{
		Origin: transport.OriginAPI,
		Method: http.MethodGet,
		Path:   "/cases/" + caseID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
