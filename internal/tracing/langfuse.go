// Package tracing wires optional Langfuse tracing into chat model calls made
// by the feedback scorer and skill extraction.
package tracing

import (
	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/prepai-go/internal/config"
)

// Setup initialises the Langfuse callback handler if LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY are set. Returns a flush function that must be called
// before process exit to ensure all traces are sent. If Langfuse is not
// configured, both return values are nil and tracing is silently disabled.
func Setup() (callbacks.Handler, func(), bool) {
	publicKey := config.String("LANGFUSE_PUBLIC_KEY", "")
	secretKey := config.String("LANGFUSE_SECRET_KEY", "")
	if publicKey == "" || secretKey == "" {
		return nil, nil, false
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      config.String("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		PublicKey: publicKey,
		SecretKey: secretKey,
	})

	return handler, flusher, true
}
