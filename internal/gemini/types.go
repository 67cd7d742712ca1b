package gemini

// Interaction statuses reported by the Interactions API.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// IsTerminal reports whether status marks the end of a research run.
// Unknown statuses are treated as still in progress.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsSuccess reports whether status is the successful terminal state.
func IsSuccess(status string) bool {
	return status == StatusCompleted
}

// OutputStep is one entry in an interaction's output stream. Intermediate
// steps carry the agent's thinking; the final step carries the report.
type OutputStep struct {
	Text string `json:"text,omitempty"`
}

// Interaction is the subset of the Interactions resource this tool consumes.
type Interaction struct {
	ID      string       `json:"id"`
	Status  string       `json:"status"`
	Outputs []OutputStep `json:"outputs,omitempty"`
}

// InteractionConfig carries optional grounding configuration.
type InteractionConfig struct {
	FileSearchStoreNames []string `json:"fileSearchStoreNames,omitempty"`
}

// CreateInteractionRequest starts a background research run.
type CreateInteractionRequest struct {
	Input      string             `json:"input"`
	Agent      string             `json:"agent"`
	Background bool               `json:"background"`
	Config     *InteractionConfig `json:"config,omitempty"`
}
