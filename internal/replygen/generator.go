// Package replygen produces automatic replies to comments with a generative model.
package replygen

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyReply is returned when the model answers without any text
var ErrEmptyReply = errors.New("model returned an empty reply")

// Generator writes a reply to a comment given the post it belongs to
type Generator interface {
	GenerateReply(ctx context.Context, commentText, postText string) (string, error)
}

// GeneratorFunc adapts a plain function to Generator
type GeneratorFunc func(ctx context.Context, commentText, postText string) (string, error)

func (f GeneratorFunc) GenerateReply(ctx context.Context, commentText, postText string) (string, error) {
	return f(ctx, commentText, postText)
}

// BuildPrompt renders the reply prompt
func BuildPrompt(commentText, postText string) string {
	var b strings.Builder
	b.WriteString("Reply to this comment: ")
	b.WriteString(commentText)
	b.WriteString("\n\nPost: ")
	b.WriteString(postText)
	return b.String()
}
