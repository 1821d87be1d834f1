package keyauth

import (
	"encoding/json"
	"fmt"
)

// apiResponse is the structured body returned by every license authority
// endpoint: {"success": bool, "message": "...", "info": ...}. The info
// field is either a JSON string or an embedded object depending on the
// operation, so it is kept raw and normalized on access.
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Info    json.RawMessage `json:"info"`
}

// parseResponse decodes a response body. A body that is not a JSON object
// with the expected shape is a protocol error, never retried.
func parseResponse(body []byte) (*apiResponse, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError(KindProtocol, "invalid server response", err)
	}
	return &resp, nil
}

// HasInfo reports whether the response carries license metadata
func (r *apiResponse) HasInfo() bool {
	if len(r.Info) == 0 {
		return false
	}
	s := string(r.Info)
	return s != "null" && s != `""`
}

// InfoString returns the info payload as text: JSON strings are unquoted,
// embedded objects are returned verbatim.
func (r *apiResponse) InfoString() string {
	if len(r.Info) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Info, &s); err == nil {
		return s
	}
	return string(r.Info)
}

func (r *apiResponse) String() string {
	return fmt.Sprintf("apiResponse{success=%t message=%q}", r.Success, r.Message)
}
