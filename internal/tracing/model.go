package tracing

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// tracedModel starts a callback run around every call so that global
// handlers (Langfuse) observe chat models invoked outside a compose graph.
type tracedModel struct {
	inner model.BaseChatModel
	info  *callbacks.RunInfo
}

// Wrap returns m with each call reported to the global callback handlers
// under name, e.g. "feedback" or "skill-extraction".
func Wrap(m model.BaseChatModel, name string) model.BaseChatModel {
	return &tracedModel{
		inner: m,
		info: &callbacks.RunInfo{
			Name:      name,
			Type:      "ChatModel",
			Component: components.ComponentOfChatModel,
		},
	}
}

// Generate implements model.BaseChatModel.
func (t *tracedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return t.inner.Generate(callbacks.InitCallbacks(ctx, t.info), input, opts...)
}

// Stream implements model.BaseChatModel.
func (t *tracedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return t.inner.Stream(callbacks.InitCallbacks(ctx, t.info), input, opts...)
}
