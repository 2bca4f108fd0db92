package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	reply  *schema.Message
	err    error
	prompt string
}

func (f *fakeChat) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.prompt = in[0].Content
	return f.reply, f.err
}

func TestSkillExtractor(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{reply: schema.AssistantMessage(" Go, gRPC, PostgreSQL \n", nil)}
	got, err := NewSkillExtractor(chat).Extract(context.Background(), "Senior Go engineer")
	require.NoError(t, err)
	assert.Equal(t, "Go, gRPC, PostgreSQL", got)
	assert.True(t, strings.HasSuffix(chat.prompt, "Senior Go engineer"))

	_, err = NewSkillExtractor(&fakeChat{err: errors.New("boom")}).Extract(context.Background(), "x")
	require.Error(t, err)

	_, err = NewSkillExtractor(&fakeChat{reply: schema.AssistantMessage("", nil)}).Extract(context.Background(), "x")
	require.Error(t, err)
}
