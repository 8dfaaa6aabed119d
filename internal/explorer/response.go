package explorer

import (
	"encoding/json"
	"fmt"
)

// Request identifies one logical explorer query. Address must already be in
// canonical checksummed form.
type Request struct {
	Provider string
	Module   string
	Action   string
	Address  string
}

// String renders the request for logs.
func (r Request) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", r.Provider, r.Module, r.Action, r.Address)
}

// Response is an explorer reply kept as the raw JSON document.
type Response json.RawMessage

// MarshalJSON returns the document unchanged.
func (r Response) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// Envelope holds the fields every etherscan-style reply carries.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Envelope decodes the status, message and result fields.
func (r Response) Envelope() (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(r, &env); err != nil {
		return nil, fmt.Errorf("decoding explorer response: %w", err)
	}
	return &env, nil
}

// SourceCodeEntry is one element of a getsourcecode result.
type SourceCodeEntry struct {
	SourceCode           string `json:"SourceCode"`
	ABI                  string `json:"ABI"`
	ContractName         string `json:"ContractName"`
	CompilerVersion      string `json:"CompilerVersion"`
	ConstructorArguments string `json:"ConstructorArguments"`
}

// SourceCodeEntries decodes result as a getsourcecode array. ok is false when
// result is not an array (explorers answer errors with a plain string).
func (e *Envelope) SourceCodeEntries() (entries []SourceCodeEntry, ok bool) {
	if err := json.Unmarshal(e.Result, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

// ResultString decodes result as a JSON string.
func (e *Envelope) ResultString() (string, bool) {
	var s string
	if err := json.Unmarshal(e.Result, &s); err != nil {
		return "", false
	}
	return s, true
}
