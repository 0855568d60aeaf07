// Package sandbox defines the contract with the external connector runtime
// that executes partner-authored JavaScript in isolation. The gateway's
// responsibility ends at assembling the request correctly (secrets, host
// allow-list, timeout) and consuming the structured result; the isolation
// mechanics belong to the runtime service.
package sandbox

import "context"

// Request asks the runtime to run one connector operation
type Request struct {
	Code         string                 `json:"code"`
	Operation    string                 `json:"operation"`
	Params       map[string]interface{} `json:"params,omitempty"`
	Variables    map[string]interface{} `json:"variables,omitempty"`
	Secrets      map[string]string      `json:"secrets"`
	AllowedHosts []string               `json:"allowed_hosts"`
	TimeoutMs    int                    `json:"timeout_ms"`
}

// Response is the runtime's structured result. A non-success response is an
// operation failure, not a transport error.
type Response struct {
	Success    bool        `json:"success"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	Logs       []string    `json:"logs,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// Client executes connector code in the sandbox runtime
type Client interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Defaults applied by the gateway when the integration's connector config
// leaves them unset.
const (
	DefaultTimeoutMs = 30000
)
