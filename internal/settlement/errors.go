package settlement

import "fmt"

// HTTPError is a failed round trip to the node. StatusCode 0 means the
// request never got a response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("settlement: transport: %s", e.Body)
	}
	return fmt.Sprintf("settlement: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable is true for transport failures, rate limits and 5xx.
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("settlement: rpc %d: %s", e.Code, e.Message)
}

// IsRetryable is true for the JSON-RPC internal error range.
func (e *RPCError) IsRetryable() bool {
	return e.Code == -32603 || (e.Code <= -32000 && e.Code >= -32099)
}
