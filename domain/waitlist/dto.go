package waitlist

import (
	"bytes"
	"encoding/json"

	"github.com/akeren/lore-anchor-waitlist/internal/models"
)

// RegisterRequest is the body posted by the landing page. Ref is not
// validated: null or absent is no ref, a string is kept as is, and any other
// JSON value is kept as its compact JSON text.
type RegisterRequest struct {
	Email string  `json:"email" validate:"waitlist_email"`
	Ref   *string `json:"ref"`
}

func (r *RegisterRequest) UnmarshalJSON(data []byte) error {
	var wire struct {
		Email string          `json:"email"`
		Ref   json.RawMessage `json:"ref"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	r.Email = wire.Email
	r.Ref = refText(wire.Ref)
	return nil
}

func refText(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return &text
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		text = string(raw)
	} else {
		text = compact.String()
	}
	return &text
}

type RegisterResponse struct {
	Success  bool  `json:"success"`
	Position int64 `json:"position"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// CountResult separates an empty waitlist from one that could not be read.
type CountResult struct {
	Count     int64
	Available bool
}

// ========================================
// Mappers
// ========================================

func ToWaitlistEntryModel(req *RegisterRequest) *models.WaitlistEntry {
	if req == nil {
		return nil
	}
	return &models.WaitlistEntry{
		Email:     req.Email,
		RefSource: req.Ref,
	}
}

func ToCountResponse(result CountResult) CountResponse {
	if !result.Available || result.Count < 0 {
		return CountResponse{Count: 0}
	}
	return CountResponse{Count: result.Count}
}
