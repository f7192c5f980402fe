package dto

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type NonceResponse struct {
	Payload   string `json:"payload"`
	ExpiresAt int64  `json:"expires_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// ProposePactResponse carries the partner's payable address so the client
// can build the on-chain proposePact call.
type ProposePactResponse struct {
	Pact           any    `json:"pact"`
	OnchainID      string `json:"onchain_id"`
	PartnerAddress string `json:"partner_address"`
}

type ReconcileResponse struct {
	Repaired bool `json:"repaired"`
}
