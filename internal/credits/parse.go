package credits

import (
	"encoding/json"
	"math"
	"strconv"
)

// Payload keys of the login response.
const (
	keyContactID           = "contact_id"
	keyName                = "name"
	keyCredits             = "credits"
	keySJCredits           = "sj_credits"
	keyCSCredits           = "cs_credits"
	keySJMiniCredits       = "sjmini_credits"
	keyMockDiscussionToken = "mock_discussion_token"
	keySharedMockCredits   = "shared_mock_credits"
)

// ParseLoginResponse reads a decoded JSON login response. Absent or
// non-numeric credit fields become 0, negative balances are clamped to 0 and
// fractional ones truncated. A nil payload, or one whose credits entry is
// missing or not an object, yields a response without credit data.
func ParseLoginResponse(payload map[string]interface{}) *LoginResponse {
	if payload == nil {
		return nil
	}

	resp := &LoginResponse{
		Identity: IdentitySnapshot{
			StudentName: coerceString(payload[keyName]),
			ContactID:   coerceID(payload[keyContactID]),
		},
	}

	raw, ok := payload[keyCredits].(map[string]interface{})
	if !ok {
		return resp
	}

	resp.Credits = &CreditSnapshot{
		SJCredits:            coerceCount(raw[keySJCredits]),
		CSCredits:            coerceCount(raw[keyCSCredits]),
		SJMiniCredits:        coerceCount(raw[keySJMiniCredits]),
		MockDiscussionTokens: coerceCount(raw[keyMockDiscussionToken]),
		SharedMockCredits:    coerceCount(raw[keySharedMockCredits]),
	}
	return resp
}

// UnmarshalJSON applies the same coercion rules as ParseLoginResponse.
func (r *LoginResponse) UnmarshalJSON(data []byte) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	parsed := ParseLoginResponse(payload)
	if parsed == nil {
		*r = LoginResponse{}
		return nil
	}
	*r = *parsed
	return nil
}

// TransformPayload is Transform over a decoded JSON payload.
func TransformPayload(payload map[string]interface{}) Eligibility {
	return Transform(ParseLoginResponse(payload))
}

func coerceCount(v interface{}) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func coerceString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// coerceID accepts string or numeric identifiers; HubSpot ids arrive as both.
func coerceID(v interface{}) *string {
	var s string
	switch id := v.(type) {
	case string:
		s = id
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) || id != math.Trunc(id) {
			return nil
		}
		s = strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		s = id.String()
	default:
		return nil
	}
	return &s
}
