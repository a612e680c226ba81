package llm

import "context"

// StubClient always fails so callers take their rule based path. It is used
// when no provider is configured and in tests.
type StubClient struct {
	Err error
}

func (c StubClient) Complete(ctx context.Context, _ Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if c.Err != nil {
		return Response{}, c.Err
	}
	return Response{}, ErrUnavailable
}
