package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"trustline-client-go/internal/transport"
)

// DisputeService exposes dispute endpoints on the primary API.
type DisputeService struct {
	api Doer
}

func NewDisputeService(api Doer) *DisputeService {
	return &DisputeService{api: api}
}

// Dispute is a dispute summary.
type Dispute struct {
	ID        string `json:"id"`
	CaseID    string `json:"case_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

// OpenDisputeInput opens a dispute against a guarantee or transfer.
type OpenDisputeInput struct {
	CaseID string `json:"case_id"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (s *DisputeService) List(ctx context.Context) ([]Dispute, error) {
	var out struct {
		Disputes []Dispute `json:"disputes"`
	}
	err := s.api.DoJSON(ctx, &transport.Request{
		Origin: transport.OriginAPI,
		Method: http.MethodGet,
		Path:   "/disputes/",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Disputes, nil
}

func (s *DisputeService) Open(ctx context.Context, in OpenDisputeInput) (*Dispute, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode dispute: %w", err)
	}
	var out Dispute
	err = s.api.DoJSON(ctx, &transport.Request{
		Origin: transport.OriginAPI,
		Method: http.MethodPost,
		Path:   "/disputes/open",
		Body:   body,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Act applies an action (accept, escalate, withdraw) to an open dispute.
func (s *DisputeService) Act(ctx context.Context, disputeID, action string) (*Dispute, error) {
	body, err := json.Marshal(map[string]string{"action": action})
	if err != nil {
		return nil, fmt.Errorf("encode dispute action: %w", err)
	}
	var out Dispute
	err = s.api.DoJSON(ctx, &transport.Request{
		Origin: transport.OriginAPI,
		Method: http.MethodPost,
		Path:   "/disputes/" + disputeID + "/actions",
		Body:   body,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
