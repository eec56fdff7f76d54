package model

// CompletionRequest is a single-shot call to a generative completion service.
type CompletionRequest struct {
	Model     string // Provider model name; empty selects the completer's default.
	System    string
	Prompt    string
	MaxTokens int
}

// CommandResult is the outcome of a synchronous external command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}
