package types

// WSCommandResult is the standard response for command execution.
type WSCommandResult struct {
	Type    string `json:"type"`            // "<command>_result"
	ID      string `json:"id,omitempty"`    // Echoed command ID
	Success bool   `json:"success"`         // true if command succeeded
	Error   any    `json:"error,omitempty"` // Error message or *ValidationError if failed
	Data    any    `json:"data,omitempty"`  // Optional response data
}
