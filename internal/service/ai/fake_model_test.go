package ai

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/mock"

	"evalsum/internal/config"
)

type mockChatModel struct {
	mock.Mock
}

func (m *mockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	args := m.Called(ctx, input)
	msg, _ := args.Get(0).(*schema.Message)
	return msg, args.Error(1)
}

func (m *mockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type factoryCall struct {
	apiKey    string
	maxTokens int
}

func fakeFactory(m model.BaseChatModel, calls *[]factoryCall) ModelFactory {
	return func(ctx context.Context, cfg config.ProviderConfig, apiKey string, maxTokens int) (model.BaseChatModel, error) {
		*calls = append(*calls, factoryCall{apiKey: apiKey, maxTokens: maxTokens})
		return m, nil
	}
}
