// Package transport defines the wire-level submission envelope a future
// HTTP/gRPC server would sit behind, plus a bearer-token format for
// exporting delegations across process boundaries. The request/response
// envelope shape is grounded on the teacher's otc-gateway HTTP handlers'
// JSON request/response struct pairing.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"governancekernel/kernel/ontology"
)

// SubmitRequest is the wire shape a caller sends to submit an Action for
// guarding and commit.
type SubmitRequest struct {
	Actor      string           `json:"actor"`
	ProtocolID string           `json:"protocolId,omitempty"`
	Action     *ontology.Action `json:"action"`
	Cost       uint64           `json:"cost"`
}

// SubmitResponse is the wire shape returned once the pipeline has run to
// completion (guard rejection, commit abort, or a successful receipt).
type SubmitResponse struct {
	AttemptID     string `json:"attemptId"`
	Status        string `json:"status"`
	NewStateHash  string `json:"newStateHash,omitempty"`
	ViolationCode string `json:"violationCode,omitempty"`
	Message       string `json:"message,omitempty"`
}

// NewAttemptID generates a fresh identifier for callers that don't derive
// their own deterministic ActionID before submitting.
func NewAttemptID() string {
	return uuid.New().String()
}

// EncodeSubmitRequest serializes req for transmission.
func EncodeSubmitRequest(req SubmitRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("transport: encode submit request: %w", err)
	}
	return payload, nil
}

// DecodeSubmitRequest parses a wire-encoded SubmitRequest.
func DecodeSubmitRequest(payload []byte) (SubmitRequest, error) {
	var req SubmitRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return SubmitRequest{}, fmt.Errorf("transport: decode submit request: %w", err)
	}
	return req, nil
}

// EncodeSubmitResponse serializes resp for transmission.
func EncodeSubmitResponse(resp SubmitResponse) ([]byte, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("transport: encode submit response: %w", err)
	}
	return payload, nil
}

// DecodeSubmitResponse parses a wire-encoded SubmitResponse.
func DecodeSubmitResponse(payload []byte) (SubmitResponse, error) {
	var resp SubmitResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return SubmitResponse{}, fmt.Errorf("transport: decode submit response: %w", err)
	}
	return resp, nil
}
