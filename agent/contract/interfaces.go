package contract

import "context"

type Resolver interface {
	Resolve(text string) Resolution
}

// ToolGateway executes a sequence of tool requests. Failures are reported
// inside each ToolResult, never as a returned error.
type ToolGateway interface {
	Execute(ctx context.Context, reqs []ToolRequest) []ToolResult
}

type FallbackResponder interface {
	Respond(ctx context.Context, req FallbackRequest) (string, error)
}

type RemoteCaller interface {
	CallTool(ctx context.Context, service, tool string, args map[string]any) (RemoteResult, error)
}

type Alerter interface {
	Escalate(ctx context.Context, err error, tags map[string]string)
}

// AuditSink receives dispatch records. Record must not block the caller.
type AuditSink interface {
	Record(entry AuditEntry)
}
