package memory

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

type llmCall struct {
	messages []llms.MessageContent
	options  llms.CallOptions
}

type fakeLLM struct {
	mu    sync.Mutex
	calls []llmCall
	reply string
	err   error
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	f.mu.Lock()
	f.calls = append(f.calls, llmCall{messages: messages, options: opts})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func (f *fakeLLM) lastCall() llmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func text(m llms.MessageContent) string {
	return m.Parts[0].(llms.TextContent).Text
}
