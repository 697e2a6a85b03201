package models

type ResponseStatus string

const (
	ResponseStarted    ResponseStatus = "started"
	ResponseGenerating ResponseStatus = "generating"
	ResponseCompleted  ResponseStatus = "completed"
	ResponseFailed     ResponseStatus = "failed"
	ResponseCanceled   ResponseStatus = "canceled"
)

// CompletedContent carries the fully assembled assistant reply once a
// stream finishes.
type CompletedContent struct {
	Content string `json:"content"`
}

// ResponseEvent is one element of the streamed reply to a posted message.
// The stream is lazy, finite and non-restartable: zero or more generating
// deltas followed by exactly one of completed, failed or canceled.
type ResponseEvent struct {
	Status  ResponseStatus    `json:"status"`
	Delta   string            `json:"delta,omitempty"`
	Content *CompletedContent `json:"content,omitempty"`
	Error   string            `json:"error,omitempty"`
}
