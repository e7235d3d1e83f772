package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// serverBaseCtx is canceled when the process shuts down.
var serverBaseCtx = context.Background()

// errShuttingDown is the cancel cause of a generation interrupted by shutdown.
var errShuttingDown = errors.New("server shutting down")

// SetBaseContext sets the process-level context that in-flight generations
// observe. A nil ctx resets it to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives from req a context that is also canceled, with cause
// errShuttingDown, when base ends. The cancel func must be called.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(req)
	stop := context.AfterFunc(base, func() { cancel(errShuttingDown) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// generationContext is the context a generate call runs under: client
// disconnect, server shutdown or the generate timeout stop it.
func generationContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	if generateTimeout <= 0 {
		return ctx, cancel
	}
	tctx, tcancel := context.WithTimeout(ctx, time.Duration(generateTimeout)*time.Second)
	return tctx, func() {
		tcancel()
		cancel()
	}
}

// interruptedByShutdown reports whether ctx ended because the server stopped.
func interruptedByShutdown(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), errShuttingDown)
}
