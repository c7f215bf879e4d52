package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"mcpd/internal/callrecord"
	"mcpd/internal/configcache"
	"mcpd/internal/configstore"
	"mcpd/internal/mcperrors"
	"mcpd/internal/modloader"
	"mcpd/internal/partitionkey"
	"mcpd/internal/validate"
	"mcpd/pkg/logging"
)

// Engine is the component F/G dispatch engine: list/call/read/get operations
// against the cached configuration, backed by the module loader and the
// function-call recorder.
type Engine struct {
	cache   *configcache.Cache
	loader  *modloader.Loader
	records *callrecord.Recorder
	group   errgroup.Group
}

// New constructs an Engine.
func New(cache *configcache.Cache, loader *modloader.Loader, records *callrecord.Recorder) *Engine {
	return &Engine{cache: cache, loader: loader, records: records}
}

// Shutdown waits for every background async task this Engine has spawned to
// finish, or for ctx to be done, whichever comes first.
func (e *Engine) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- e.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetchWithRetry fetches the cached view, retrying once against a forced
// refresh on any failure, per spec.md §4.F.
func (e *Engine) fetchWithRetry(ctx context.Context, partitionKey string) (*configcache.View, error) {
	view, err := e.cache.Fetch(ctx, partitionKey, false)
	if err == nil {
		return view, nil
	}
	view, refreshErr := e.cache.Refresh(ctx, partitionKey)
	if refreshErr != nil {
		return nil, refreshErr
	}
	return view, nil
}

// ListTools returns every tool visible to partitionKey.
func (e *Engine) ListTools(ctx context.Context, partitionKey string) ([]mcp.Tool, error) {
	view, err := e.fetchWithRetry(ctx, partitionKey)
	if err != nil {
		return nil, err
	}
	out := make([]mcp.Tool, 0, len(view.Tools))
	for _, t := range view.Tools {
		out = append(out, toMCPTool(t))
	}
	return out, nil
}

// ListResources returns every resource visible to partitionKey.
func (e *Engine) ListResources(ctx context.Context, partitionKey string) ([]mcp.Resource, error) {
	view, err := e.fetchWithRetry(ctx, partitionKey)
	if err != nil {
		return nil, err
	}
	out := make([]mcp.Resource, 0, len(view.Resources))
	for _, r := range view.Resources {
		out = append(out, toMCPResource(r))
	}
	return out, nil
}

// ListPrompts returns every prompt visible to partitionKey.
func (e *Engine) ListPrompts(ctx context.Context, partitionKey string) ([]mcp.Prompt, error) {
	view, err := e.fetchWithRetry(ctx, partitionKey)
	if err != nil {
		return nil, err
	}
	out := make([]mcp.Prompt, 0, len(view.Prompts))
	for _, p := range view.Prompts {
		out = append(out, toMCPPrompt(p))
	}
	return out, nil
}

// ReadResource resolves uri's handler and invokes it, per spec.md §4.F.
func (e *Engine) ReadResource(ctx context.Context, key partitionkey.Key, uri string) (*mcp.ReadResourceResult, error) {
	view, err := e.fetchWithRetry(ctx, key.PartitionKey)
	if err != nil {
		return nil, err
	}

	entry, ok := view.FindResourceByURI(uri)
	if !ok {
		return nil, mcperrors.UnknownResource(uri)
	}
	name := stringField(entry, "name")

	handler, err := e.loadHandlerFor(ctx, view, key, name, "resource")
	if err != nil {
		return nil, err
	}

	result, err := handler.Invoke(ctx, e.functionNameFor(view, name, "resource"), map[string]any{"uri": uri})
	if err != nil {
		return nil, err
	}

	mimeType := stringFieldDefault(entry, "mimeType", "text/plain")
	return &mcp.ReadResourceResult{
		Contents: []mcp.ResourceContents{
			mcp.TextResourceContents{URI: uri, MIMEType: mimeType, Text: fmt.Sprintf("%v", result)},
		},
	}, nil
}

// GetPrompt resolves name's handler and invokes it with arguments, per
// spec.md §4.F.
func (e *Engine) GetPrompt(ctx context.Context, key partitionkey.Key, name string, arguments map[string]any) (*mcp.GetPromptResult, error) {
	view, err := e.fetchWithRetry(ctx, key.PartitionKey)
	if err != nil {
		return nil, err
	}

	entry, ok := view.FindPrompt(name)
	if !ok {
		return nil, mcperrors.UnknownPrompt(name)
	}
	for _, req := range requiredPromptArgs(entry) {
		if _, present := arguments[req]; !present {
			return nil, mcperrors.MissingArgument(req)
		}
	}

	handler, err := e.loadHandlerFor(ctx, view, key, name, "prompt")
	if err != nil {
		return nil, err
	}

	callArgs := map[string]any{}
	for k, v := range arguments {
		callArgs[k] = v
	}
	callArgs["partition_key"] = key.PartitionKey

	result, err := handler.Invoke(ctx, e.functionNameFor(view, name, "prompt"), callArgs)
	if err != nil {
		return nil, err
	}

	return &mcp.GetPromptResult{
		Description: stringField(entry, "description"),
		Messages: []mcp.PromptMessage{
			{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: fmt.Sprintf("%v", result)}},
		},
	}, nil
}

// CallTool runs name with arguments against partitionKey's configuration,
// per spec.md §4.F. If the tool's module_link is async, execution is
// delegated to the async dispatcher (component G).
func (e *Engine) CallTool(ctx context.Context, key partitionkey.Key, name string, arguments map[string]any) ([]mcp.Content, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}

	view, err := e.fetchWithRetry(ctx, key.PartitionKey)
	if err != nil {
		return nil, err
	}

	tool, ok := view.FindTool(name)
	if !ok {
		return nil, mcperrors.UnknownTool(name)
	}
	if schema, ok := tool["inputSchema"].(map[string]any); ok {
		if err := validate.Validate(schema, arguments); err != nil {
			return nil, err
		}
	}

	link, ok := view.FindModuleLink(name, "tool")
	if !ok {
		return nil, mcperrors.ModuleUnavailable(name)
	}

	if link.IsAsync {
		if key.IsDefault() {
			return nil, mcperrors.InvalidArgument("tool %s is async and cannot run against the default partition", name)
		}
		mod, _ := view.FindModule(link.ModuleName, link.ClassName)
		return e.dispatchAsync(ctx, key, link, mod, arguments)
	}

	mod, _ := view.FindModule(link.ModuleName, link.ClassName)
	handler, err := e.loader.Load(ctx, mod.PackageName, mod.ModuleName, mod.ClassName, mod.Source, mod.Setting, key)
	if err != nil {
		return nil, err
	}

	callUUID := stringField(arguments, "mcp_function_call_uuid")
	_, result, err := e.runWithRecord(ctx, key, callUUID, name, "tool", arguments, func(ctx context.Context) (any, error) {
		return handler.Invoke(ctx, link.FunctionName, arguments)
	})
	if err != nil {
		return nil, err
	}

	return classifyContent(link.ReturnType, result)
}

func (e *Engine) loadHandlerFor(ctx context.Context, view *configcache.View, key partitionkey.Key, name, mcpType string) (modloader.Handler, error) {
	link, ok := view.FindModuleLink(name, mcpType)
	if !ok {
		return nil, mcperrors.ModuleUnavailable(name)
	}
	mod, _ := view.FindModule(link.ModuleName, link.ClassName)
	return e.loader.Load(ctx, mod.PackageName, mod.ModuleName, mod.ClassName, mod.Source, mod.Setting, key)
}

func (e *Engine) functionNameFor(view *configcache.View, name, mcpType string) string {
	link, _ := view.FindModuleLink(name, mcpType)
	return link.FunctionName
}

// runWithRecord implements the execute_decorator protocol of spec.md §4.F:
// it ensures a call record exists (for any non-default partition), runs
// invoke, and updates the record to completed or failed with the elapsed
// time. The default partition carries no call-record persistence.
func (e *Engine) runWithRecord(ctx context.Context, key partitionkey.Key, callUUID, name, mcpType string, arguments map[string]any, invoke func(context.Context) (any, error)) (*configstore.CallRecord, any, error) {
	persist := !key.IsDefault()

	var rec *configstore.CallRecord
	var err error
	if persist {
		if callUUID != "" {
			rec, err = e.records.Get(ctx, key.PartitionKey, callUUID)
			if err != nil {
				return nil, nil, err
			}
		}
		if rec == nil {
			rec, err = e.records.Create(ctx, key.PartitionKey, name, mcpType, arguments)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	start := time.Now()
	result, invokeErr := invoke(ctx)
	elapsed := time.Since(start).Milliseconds()

	if invokeErr != nil {
		if persist {
			notes := fmt.Sprintf("%s\n%s", invokeErr.Error(), debug.Stack())
			e.updateRecordBestEffort(ctx, key.PartitionKey, rec.CallUUID, callrecord.Patch{
				Status:      configstore.CallStatusFailed,
				Notes:       &notes,
				TimeSpentMS: &elapsed,
			})
		}
		return rec, nil, invokeErr
	}

	content, serErr := callrecord.SerializeContent(result)
	if serErr != nil {
		return rec, nil, serErr
	}
	if persist {
		if err := e.records.Update(ctx, key.PartitionKey, rec.CallUUID, callrecord.Patch{
			Status:      configstore.CallStatusCompleted,
			Content:     &content,
			TimeSpentMS: &elapsed,
		}); err != nil {
			return rec, nil, err
		}
	}
	return rec, result, nil
}

func (e *Engine) updateRecordBestEffort(ctx context.Context, partitionKey, callUUID string, patch callrecord.Patch) {
	if err := e.records.Update(ctx, partitionKey, callUUID, patch); err != nil {
		logging.Error("Dispatch", err, "failed to update call record %s", callUUID)
	}
}
