package hostfuncs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/modbridge/domain/entities"
)

func TestPanicRecoveryMiddleware(t *testing.T) {
	panicHandler := func(ctx context.Context, payload []byte) ([]byte, error) {
		panic("test panic")
	}

	mw := PanicRecoveryMiddleware()
	wrapped := mw(panicHandler)

	// Should not panic, should return structured error
	resp, err := wrapped(context.Background(), []byte("{}"))
	require.NoError(t, err)
	require.NotNil(t, resp)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(resp, &errResp))
	assert.Equal(t, "INTERNAL_ERROR", errResp.Error)
	assert.Equal(t, 500, errResp.Code)
	assert.Contains(t, errResp.Message, "panic")
	assert.Contains(t, errResp.Message, "test panic")
}

func TestPanicRecoveryMiddleware_NoPanic(t *testing.T) {
	normalHandler := func(ctx context.Context, payload []byte) ([]byte, error) {
		return []byte(`{"result":"ok"}`), nil
	}

	mw := PanicRecoveryMiddleware()
	wrapped := mw(normalHandler)

	resp, err := wrapped(context.Background(), []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, `{"result":"ok"}`, string(resp))
}

func TestMiddlewareOrder_FIFO(t *testing.T) {
	var callOrder []string

	middleware1 := func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			callOrder = append(callOrder, "mw1-before")
			resp, err := next(ctx, payload)
			callOrder = append(callOrder, "mw1-after")
			return resp, err
		}
	}

	middleware2 := func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			callOrder = append(callOrder, "mw2-before")
			resp, err := next(ctx, payload)
			callOrder = append(callOrder, "mw2-after")
			return resp, err
		}
	}

	middleware3 := func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			callOrder = append(callOrder, "mw3-before")
			resp, err := next(ctx, payload)
			callOrder = append(callOrder, "mw3-after")
			return resp, err
		}
	}

	handler := func(ctx context.Context, payload []byte) ([]byte, error) {
		callOrder = append(callOrder, "handler")
		return nil, nil
	}

	reg, err := NewRegistry(
		WithMiddleware(middleware1, middleware2, middleware3),
		WithByteHandler("test", handler),
	)
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), "test", 1, nil)
	require.NoError(t, err)

	// FIFO: mw1 wraps mw2 wraps mw3 wraps handler (onion model)
	expected := []string{
		"mw1-before", "mw2-before", "mw3-before",
		"handler",
		"mw3-after", "mw2-after", "mw1-after",
	}
	assert.Equal(t, expected, callOrder)
}

func TestMiddleware_AppliesToAllHandlers(t *testing.T) {
	handlerCalls := make(map[string]bool)

	trackingMiddleware := func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if hc, ok := ctx.(HostContext); ok {
				handlerCalls[hc.FunctionName()] = true
			}
			return next(ctx, payload)
		}
	}

	handler1 := func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, nil
	}
	handler2 := func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, nil
	}

	reg, err := NewRegistry(
		WithMiddleware(trackingMiddleware),
		WithByteHandler("handler1", handler1),
		WithByteHandler("handler2", handler2),
	)
	require.NoError(t, err)

	_, _ = reg.Invoke(context.Background(), "handler1", 1, nil)
	_, _ = reg.Invoke(context.Background(), "handler2", 1, nil)

	assert.True(t, handlerCalls["handler1"])
	assert.True(t, handlerCalls["handler2"])
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ok := func(ctx context.Context, payload []byte) ([]byte, error) {
		return []byte("ok"), nil
	}
	failing := func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, assert.AnError
	}

	reg, err := NewRegistry(
		WithMiddleware(LoggingMiddleware(logger)),
		WithByteHandler("test", ok),
		WithByteHandler("broken", failing),
	)
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), "test", 1, []byte("{}"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "host function completed")
	assert.Contains(t, buf.String(), "function=test")
	assert.Contains(t, buf.String(), "request_bytes=2")

	_, err = reg.Invoke(context.Background(), "broken", 1, nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "host function failed")
	assert.Contains(t, buf.String(), "function=broken")
}

func TestChain_FIFO(t *testing.T) {
	var order []string
	mw := func(name string) CommandMiddleware {
		return func(next Invoker) Invoker {
			return func(ctx context.Context, inv *Invocation) entities.Status {
				order = append(order, name+"-before")
				st := next(ctx, inv)
				order = append(order, name+"-after")
				return st
			}
		}
	}
	base := func(ctx context.Context, inv *Invocation) entities.Status {
		order = append(order, "base")
		return entities.StatusOK
	}

	st := chain([]CommandMiddleware{mw("a"), mw("b")}, base)(context.Background(), &Invocation{})
	assert.Equal(t, entities.StatusOK, st)
	assert.Equal(t, []string{"a-before", "b-before", "base", "b-after", "a-after"}, order)
}

func TestChain_Empty(t *testing.T) {
	called := false
	base := func(ctx context.Context, inv *Invocation) entities.Status {
		called = true
		return entities.StatusErr
	}
	assert.Equal(t, entities.StatusErr, chain(nil, base)(context.Background(), &Invocation{}))
	assert.True(t, called)
}
