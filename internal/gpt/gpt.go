package gpt

import (
	"context"
	"fmt"

	gpt "github.com/m-ariany/gpt-chat-client"
)

type ClientConfig = gpt.ClientConfig

// ClientFactory hands out independent conversations over one configured chat client.
type ClientFactory interface {
	Client() (Client, error)
	Complete(ctx context.Context, instruction, prompt string) (string, error)
}

type factory struct {
	client *gpt.Client
}

func NewClientFactory(cnf ClientConfig) (ClientFactory, error) {
	client, err := gpt.NewClient(cnf)
	if err != nil {
		return nil, fmt.Errorf("new gpt client: %w", err)
	}
	return &factory{client: client}, nil
}

func (f *factory) Client() (Client, error) {
	if f.client == nil {
		return Client{}, fmt.Errorf("gpt client is not configured")
	}
	return Client{Client: f.client.Clone()}, nil
}

// Complete runs a single-turn exchange on a fresh conversation.
func (f *factory) Complete(ctx context.Context, instruction, prompt string) (string, error) {
	c, err := f.Client()
	if err != nil {
		return "", err
	}

	c.Instruct(instruction)
	return c.Prompt(ctx, prompt)
}

type Client struct {
	*gpt.Client
}
