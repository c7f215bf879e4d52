package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpd/internal/callrecord"
	"mcpd/internal/configcache"
	"mcpd/internal/configstore"
	"mcpd/internal/partitionkey"
	"mcpd/pkg/logging"
)

// pollInterval and pollTimeout are the literal poll-loop parameters of
// spec.md §4.G: check every 500ms, give up after 3s.
const (
	pollInterval = 500 * time.Millisecond
	pollTimeout  = 3 * time.Second
)

type asyncOutcome struct {
	content []mcp.Content
	err     error
}

// dispatchAsync implements component G. If arguments carries
// mcp_function_call_uuid, it returns a handle for that existing call;
// otherwise it creates a new record, spawns a background task that runs the
// handler through the same execute_decorator protocol as the synchronous
// path, and waits up to pollTimeout for it to finish, per spec.md §4.G.
func (e *Engine) dispatchAsync(ctx context.Context, key partitionkey.Key, link configcache.ModuleLink, mod configcache.ModuleEntry, arguments map[string]any) ([]mcp.Content, error) {
	if callUUID := stringField(arguments, "mcp_function_call_uuid"); callUUID != "" {
		return e.lookupAsyncHandle(ctx, key.PartitionKey, callUUID)
	}

	rec, err := e.records.Create(ctx, key.PartitionKey, link.Name, link.Type, arguments)
	if err != nil {
		return nil, err
	}

	done := make(chan asyncOutcome, 1)
	e.group.Go(func() error {
		e.runAsyncTask(key, link, mod, arguments, rec.CallUUID, done)
		return nil
	})

	return e.awaitAsyncResult(ctx, key.PartitionKey, rec.CallUUID, done)
}

// runAsyncTask is the background task body: it resolves the handler, runs
// it under runWithRecord (which persists completed/failed status), and
// signals done for the fast-path waiter in awaitAsyncResult. It is run on
// context.Background() because the originating request's context may be
// cancelled (client disconnect, response already sent on timeout) before
// the task finishes.
func (e *Engine) runAsyncTask(key partitionkey.Key, link configcache.ModuleLink, mod configcache.ModuleEntry, arguments map[string]any, callUUID string, done chan<- asyncOutcome) {
	ctx := context.Background()

	handler, err := e.loader.Load(ctx, mod.PackageName, mod.ModuleName, mod.ClassName, mod.Source, mod.Setting, key)
	if err != nil {
		notes := err.Error()
		e.updateRecordBestEffort(ctx, key.PartitionKey, callUUID, callrecord.Patch{Status: configstore.CallStatusFailed, Notes: &notes})
		done <- asyncOutcome{err: err}
		return
	}

	_, result, err := e.runWithRecord(ctx, key, callUUID, link.Name, link.Type, arguments, func(ctx context.Context) (any, error) {
		return handler.Invoke(ctx, link.FunctionName, arguments)
	})
	if err != nil {
		done <- asyncOutcome{err: err}
		return
	}

	content, err := classifyContent(link.ReturnType, result)
	done <- asyncOutcome{content: content, err: err}
}

// awaitAsyncResult waits for either the background task's completion signal
// or the literal poll loop to observe a terminal status, whichever comes
// first. A still-initial record is moved to in_process on the first tick;
// a record already completed or failed by then is left alone. On timeout
// it returns a handle pointing at the call's current status.
func (e *Engine) awaitAsyncResult(ctx context.Context, partitionKey, callUUID string, done <-chan asyncOutcome) ([]mcp.Content, error) {
	deadline := time.NewTimer(pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	firstTick := true
	for {
		select {
		case outcome := <-done:
			if outcome.err != nil {
				return e.asyncFailureHandle(ctx, partitionKey, callUUID, outcome.err)
			}
			return outcome.content, nil

		case <-ticker.C:
			rec, err := e.records.Get(ctx, partitionKey, callUUID)
			if err != nil || rec == nil {
				continue
			}
			switch rec.Status {
			case configstore.CallStatusCompleted:
				return []mcp.Content{mcp.TextContent{Type: "text", Text: rec.Content}}, nil
			case configstore.CallStatusFailed:
				return asyncHandle(callUUID, rec.Status, rec.Notes), nil
			case configstore.CallStatusInitial:
				// Only ever move initial -> in_process here: the background task
				// may already have raced this tick to a terminal status above,
				// and that must never be overwritten backward.
				if firstTick {
					firstTick = false
					e.updateRecordBestEffort(ctx, partitionKey, callUUID, callrecord.Patch{Status: configstore.CallStatusInProcess})
				}
			}

		case <-deadline.C:
			rec, _ := e.records.Get(ctx, partitionKey, callUUID)
			status := configstore.CallStatusInProcess
			notes := ""
			if rec != nil {
				status = rec.Status
				notes = rec.Notes
			}
			logging.Debug("Dispatch", "async call %s still %s after %s, returning handle", callUUID, status, pollTimeout)
			return asyncHandle(callUUID, status, notes), nil

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (e *Engine) asyncFailureHandle(ctx context.Context, partitionKey, callUUID string, cause error) ([]mcp.Content, error) {
	notes := cause.Error()
	if rec, err := e.records.Get(ctx, partitionKey, callUUID); err == nil && rec != nil && rec.Notes != "" {
		notes = rec.Notes
	}
	return asyncHandle(callUUID, configstore.CallStatusFailed, notes), nil
}

func (e *Engine) lookupAsyncHandle(ctx context.Context, partitionKey, callUUID string) ([]mcp.Content, error) {
	rec, err := e.records.Get(ctx, partitionKey, callUUID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return asyncHandle(callUUID, configstore.CallStatusFailed, "call record not found"), nil
	}
	if rec.Status == configstore.CallStatusCompleted {
		return []mcp.Content{mcp.TextContent{Type: "text", Text: rec.Content}}, nil
	}
	return asyncHandle(callUUID, rec.Status, rec.Notes), nil
}

// asyncHandle builds the embedded-resource pointer a caller polls against,
// per spec.md §4.G: uri "mcp://function-call/{uuid}" with a JSON body
// reporting the current status.
func asyncHandle(callUUID string, status configstore.CallStatus, notes string) []mcp.Content {
	payload, _ := json.Marshal(map[string]any{"uuid": callUUID, "status": string(status), "notes": notes})
	return []mcp.Content{
		mcp.EmbeddedResource{
			Type: "resource",
			Resource: mcp.TextResourceContents{
				URI:      "mcp://function-call/" + callUUID,
				MIMEType: "application/json",
				Text:     string(payload),
			},
		},
	}
}
