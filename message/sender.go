package message

import (
	"context"
	"errors"
	"time"
)

// Sender delivers a request and waits for its response.
type Sender interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, req Request) (Response, error)

func (f SenderFunc) Send(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// Call sends req with a timeout and folds transport failures into the
// response: a missed deadline becomes TIMEOUT, anything else ERROR.
func Call(ctx context.Context, s Sender, req Request, timeout time.Duration) Response {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := s.Send(ctx, req)
	if err == nil {
		return resp
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Fail(CodeTimeout, err.Error())
	}
	return Fail(CodeError, err.Error())
}

// Local returns a Sender that runs requests against h in-process. The
// handler runs on its own goroutine so callers' deadlines are honoured
// even when h blocks.
func Local(h Handler) Sender {
	return SenderFunc(func(ctx context.Context, req Request) (Response, error) {
		done := make(chan Response, 1)
		go func() { done <- Dispatch(ctx, h, req) }()
		select {
		case resp := <-done:
			return resp, nil
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	})
}
