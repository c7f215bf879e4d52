package configstore

import (
	"context"
	"sync"

	"mcpd/internal/mcperrors"
)

// FakeClient is an in-memory Client for tests, letting
// internal/configcache, internal/dispatch, and internal/callrecord tests
// exercise real call sites without a network.
type FakeClient struct {
	mu sync.Mutex

	Functions map[string][]FunctionRecord          // partitionKey -> functions
	Modules   map[string]map[string]ModuleRecord    // partitionKey -> moduleName -> module
	Settings  map[string]map[string]SettingRecord   // partitionKey -> settingId -> setting
	Calls     map[string]map[string]CallRecord      // partitionKey -> callUuid -> record

	// FunctionListErr, when set, is returned by FunctionList for every call.
	FunctionListErr error
	// ModuleErr, when set, is returned by Module for every call.
	ModuleErr error
	// SettingErr, when set, is returned by Setting for every call.
	SettingErr error

	// Mutations records every Mutate call in order, for invalidation tests.
	Mutations []string

	// RawDocuments records every document passed to Raw, in order.
	RawDocuments []string

	// ItemTooLargeFor, when a call UUID is present, makes the next UpdateCall
	// carrying inline "content" for that UUID fail once with
	// mcperrors.KindItemTooLarge, simulating the metadata store's per-item
	// size limit. The flag is consumed on that attempt.
	ItemTooLargeFor map[string]bool
}

// NewFakeClient constructs an empty FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Functions: make(map[string][]FunctionRecord),
		Modules:   make(map[string]map[string]ModuleRecord),
		Settings:  make(map[string]map[string]SettingRecord),
		Calls:     make(map[string]map[string]CallRecord),
	}
}

func (f *FakeClient) Query(ctx context.Context, partitionKey, queryName string, variables map[string]any, dest any) error {
	return mcperrors.Internal(nil)
}

func (f *FakeClient) Mutate(ctx context.Context, partitionKey, mutationName string, variables map[string]any, dest any) error {
	f.mu.Lock()
	f.Mutations = append(f.Mutations, mutationName)
	f.mu.Unlock()
	return nil
}

// RawDocuments records every document passed to Raw, for assertions in
// tests that exercise the mcp_core_graphql pass-through.
func (f *FakeClient) Raw(ctx context.Context, partitionKey, document string, variables map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.RawDocuments = append(f.RawDocuments, document)
	f.mu.Unlock()
	return map[string]any{}, nil
}

func (f *FakeClient) FunctionList(ctx context.Context, partitionKey string) ([]FunctionRecord, error) {
	if f.FunctionListErr != nil {
		return nil, f.FunctionListErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FunctionRecord(nil), f.Functions[partitionKey]...), nil
}

func (f *FakeClient) Module(ctx context.Context, partitionKey, moduleName string) (*ModuleRecord, error) {
	if f.ModuleErr != nil {
		return nil, f.ModuleErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.Modules[partitionKey][moduleName]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f *FakeClient) Setting(ctx context.Context, partitionKey, settingID string) (*SettingRecord, error) {
	if f.SettingErr != nil {
		return nil, f.SettingErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Settings[partitionKey][settingID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *FakeClient) CreateCall(ctx context.Context, rec CallRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Calls[rec.PartitionKey] == nil {
		f.Calls[rec.PartitionKey] = make(map[string]CallRecord)
	}
	f.Calls[rec.PartitionKey][rec.CallUUID] = rec
	f.Mutations = append(f.Mutations, "insertUpdateMcpFunctionCall")
	return nil
}

func (f *FakeClient) UpdateCall(ctx context.Context, partitionKey, callUUID string, patch map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.Calls[partitionKey][callUUID]
	if !ok {
		return mcperrors.UpstreamSemanticError("call not found: " + callUUID)
	}
	if _, hasContent := patch["content"]; hasContent && f.ItemTooLargeFor[callUUID] {
		delete(f.ItemTooLargeFor, callUUID)
		return mcperrors.ItemTooLarge("call content exceeds item size limit")
	}
	if v, ok := patch["status"]; ok {
		rec.Status = CallStatus(v.(string))
	}
	if v, ok := patch["content"]; ok {
		rec.Content = v.(string)
	}
	if v, ok := patch["hasContent"]; ok {
		rec.HasContent = v.(bool)
	}
	if v, ok := patch["notes"]; ok {
		rec.Notes = v.(string)
	}
	if v, ok := patch["timeSpentMs"]; ok {
		rec.TimeSpentMS = v.(int64)
	}
	f.Calls[partitionKey][callUUID] = rec
	f.Mutations = append(f.Mutations, "insertUpdateMcpFunctionCall")
	return nil
}

func (f *FakeClient) GetCall(ctx context.Context, partitionKey, callUUID string) (*CallRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.Calls[partitionKey][callUUID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}
