package callrecord

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"mcpd/internal/blob"
	"mcpd/internal/configstore"
	"mcpd/internal/mcperrors"
	"mcpd/pkg/logging"
)

// Patch is the set of fields an Update call may change.
type Patch struct {
	Status      configstore.CallStatus
	Content     *string
	Notes       *string
	TimeSpentMS *int64
}

// Recorder implements component E: create/update/read of function-call
// records, with blob-store offload on oversized content.
type Recorder struct {
	store configstore.Client
	blob  blob.Store
}

// New constructs a Recorder backed by store and blob.
func New(store configstore.Client, blobStore blob.Store) *Recorder {
	return &Recorder{store: store, blob: blobStore}
}

// Create inserts a new call record in status "initial" and returns it.
func (r *Recorder) Create(ctx context.Context, partitionKey, name, mcpType string, arguments map[string]any) (*configstore.CallRecord, error) {
	rec := configstore.CallRecord{
		PartitionKey: partitionKey,
		CallUUID:     uuid.NewString(),
		Name:         name,
		MCPType:      mcpType,
		Arguments:    arguments,
		Status:       configstore.CallStatusInitial,
	}
	if err := r.store.CreateCall(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get reads a call record, resolving externalised content from the blob
// store when has_content is set.
func (r *Recorder) Get(ctx context.Context, partitionKey, callUUID string) (*configstore.CallRecord, error) {
	rec, err := r.store.GetCall(ctx, partitionKey, callUUID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if rec.HasContent {
		data, err := r.blob.Get(ctx, blob.ContentKey(callUUID))
		if err != nil {
			return nil, err
		}
		rec.Content = string(data)
	}
	return rec, nil
}

// Update applies patch to the call record identified by (partitionKey,
// callUUID). If patch.Content's serialised size trips the metadata store's
// per-item limit (reported as mcperrors.KindItemTooLarge), the content is
// offloaded to the blob store at mcp_content/{call_uuid}.json, inline
// content is cleared, has_content is set, and the metadata update is
// retried, per spec.md §4.E.
func (r *Recorder) Update(ctx context.Context, partitionKey, callUUID string, patch Patch) error {
	vars := patchVariables(patch)

	err := r.store.UpdateCall(ctx, partitionKey, callUUID, vars)
	if err == nil {
		return nil
	}
	if !mcperrors.Is(err, mcperrors.KindItemTooLarge) || patch.Content == nil {
		return err
	}

	logging.Warn("CallRecord", "call %s content exceeds item size limit, offloading to blob store", callUUID)
	if putErr := r.blob.Put(ctx, blob.ContentKey(callUUID), []byte(*patch.Content), "application/json"); putErr != nil {
		return putErr
	}

	offloaded := patchVariables(patch)
	offloaded["content"] = ""
	offloaded["hasContent"] = true
	return r.store.UpdateCall(ctx, partitionKey, callUUID, offloaded)
}

func patchVariables(patch Patch) map[string]any {
	vars := map[string]any{}
	if patch.Status != "" {
		vars["status"] = string(patch.Status)
	}
	if patch.Content != nil {
		vars["content"] = *patch.Content
		vars["hasContent"] = false
	}
	if patch.Notes != nil {
		vars["notes"] = *patch.Notes
	}
	if patch.TimeSpentMS != nil {
		vars["timeSpentMs"] = *patch.TimeSpentMS
	}
	return vars
}

// SerializeContent turns a handler's return value into the string form
// stored inline (or offloaded) as a call record's content field. A plain
// string is stored as-is so a later text-content read round-trips exactly;
// anything else is JSON-marshaled.
func SerializeContent(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", mcperrors.Wrap(mcperrors.KindInternal, err, "serialize call content")
	}
	return string(data), nil
}
