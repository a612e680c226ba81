package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(12),
			OutputTokens: aws.Int32(30),
			TotalTokens:  aws.Int32(42),
		},
	}
}

func TestBedrockClient_Complete(t *testing.T) {
	api := &fakeConverse{out: textOutput("  {\"condition\":\"Migraine\"}  ")}
	client := NewBedrockClient(api, "anthropic.claude-3-haiku")

	resp, err := client.Complete(context.Background(), Request{
		System:      []string{"You are a clinical assistant.", " "},
		Messages:    []Message{{Role: RoleSystem, Content: "Respond in JSON."}, {Role: RoleUser, Content: "headache"}},
		MaxTokens:   500,
		Temperature: 0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"condition":"Migraine"}`, resp.Text)
	assert.Equal(t, "bedrock", resp.Provider)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int32(42), resp.Usage.TotalTokens)

	require.NotNil(t, api.input)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.input.ModelId))
	assert.Len(t, api.input.System, 2)
	assert.Len(t, api.input.Messages, 1)
	assert.Equal(t, int32(500), aws.ToInt32(api.input.InferenceConfig.MaxTokens))
}

func TestBedrockClient_RequestModelOverridesDefault(t *testing.T) {
	api := &fakeConverse{out: textOutput("ok")}
	client := NewBedrockClient(api, "default-model")
	_, err := client.Complete(context.Background(), Request{
		Model:       "override-model",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		Temperature: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, "override-model", aws.ToString(api.input.ModelId))
	assert.Nil(t, api.input.InferenceConfig)
}

func TestBedrockClient_Errors(t *testing.T) {
	_, err := NewBedrockClient(&fakeConverse{}, "").Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	_, err = NewBedrockClient(&fakeConverse{}, "m").Complete(context.Background(), Request{
		Messages: []Message{{Role: "tool", Content: "hi"}},
	})
	require.ErrorContains(t, err, "unsupported role")

	upstream := errors.New("throttled")
	_, err = NewBedrockClient(&fakeConverse{err: upstream}, "m").Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.ErrorIs(t, err, upstream)

	_, err = NewBedrockClient(&fakeConverse{out: textOutput("   ")}, "m").Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.ErrorContains(t, err, "no text content")
}

func TestNewBedrockClientPanicsOnNilAPI(t *testing.T) {
	assert.Panics(t, func() { NewBedrockClient(nil, "m") })
}
