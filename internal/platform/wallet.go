package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"trustline-client-go/internal/transport"
)

// WalletService exposes wallet endpoints on the primary API.
type WalletService struct {
	api Doer
}

func NewWalletService(api Doer) *WalletService {
	return &WalletService{api: api}
}

// Balance is the wallet balance snapshot.
type Balance struct {
	Available string `json:"available"`
	Locked    string `json:"locked"`
	Currency  string `json:"currency"`
}

// TransferInput describes an outgoing transfer.
type TransferInput struct {
	RecipientID string `json:"recipient_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Note        string `json:"note,omitempty"`
}

// TransferResult is the backend's acknowledgement of a transfer.
type TransferResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *WalletService) Balance(ctx context.Context) (*Balance, error) {
	var out Balance
	err := s.api.DoJSON(ctx, &transport.Request{
		Origin: transport.OriginAPI,
		Method: http.MethodGet,
		Path:   "/wallet/balance",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Transfer moves funds. The path is on the idempotency allow-list, so a
// refresh-retried delivery is not applied twice.
func (s *WalletService) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode transfer: %w", err)
	}
	var out TransferResult
	err = s.api.DoJSON(ctx, &transport.Request{
		Origin: transport.OriginAPI,
		Method: http.MethodPost,
		Path:   "/wallet/transfer",
		Body:   body,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
