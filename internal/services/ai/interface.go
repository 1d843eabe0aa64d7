package ai

// ChatMessage is one {role, content} pair sent to the provider. Only user
// and assistant roles ever appear here.
type ChatMessage struct {
	Role    string
	Content string
}
