package configstore

import (
	"context"
	"strings"

	"github.com/machinebox/graphql"

	"mcpd/internal/mcperrors"
	"mcpd/pkg/logging"
)

// Client is the component B config store client: a single `query` operation
// plus mutation helpers, all issued against one GraphQL endpoint.
type Client interface {
	// Query issues a named GraphQL query against the partition and decodes
	// the "data" payload into dest. Mirrors spec.md §4.B's
	// query(partition_key, query_name, variables) -> JSON.
	Query(ctx context.Context, partitionKey, queryName string, variables map[string]any, dest any) error

	// Mutate issues a named GraphQL mutation and decodes its "data" payload
	// into dest. Whether the mutation triggers cascading cache invalidation
	// is not reported here; callers look it up in MutationTriggersInvalidation.
	Mutate(ctx context.Context, partitionKey, mutationName string, variables map[string]any, dest any) error

	// Raw passes an arbitrary GraphQL document straight through to the
	// store, for the `/{endpoint}/mcp_core_graphql` surface spec.md §6
	// exposes directly to callers. It returns the decoded "data" payload.
	Raw(ctx context.Context, partitionKey, document string, variables map[string]any) (map[string]any, error)

	FunctionList(ctx context.Context, partitionKey string) ([]FunctionRecord, error)
	Module(ctx context.Context, partitionKey, moduleName string) (*ModuleRecord, error)
	Setting(ctx context.Context, partitionKey, settingID string) (*SettingRecord, error)

	CreateCall(ctx context.Context, rec CallRecord) error
	UpdateCall(ctx context.Context, partitionKey, callUUID string, patch map[string]any) error
	GetCall(ctx context.Context, partitionKey, callUUID string) (*CallRecord, error)
}

type graphQLClient struct {
	gql      *graphql.Client
	endpoint string
}

// NewClient constructs a Client against the given GraphQL endpoint URL.
func NewClient(endpoint string) Client {
	return &graphQLClient{gql: graphql.NewClient(endpoint), endpoint: endpoint}
}

func (c *graphQLClient) run(ctx context.Context, document string, variables map[string]any, dest any) error {
	req := graphql.NewRequest(document)
	for k, v := range variables {
		req.Var(k, v)
	}

	if err := c.gql.Run(ctx, req, dest); err != nil {
		// machinebox/graphql prefixes server-reported GraphQL errors with
		// "graphql: "; anything else is a transport-level failure.
		if strings.HasPrefix(err.Error(), "graphql: ") {
			if isItemTooLargeError(err.Error()) {
				return mcperrors.ItemTooLarge(err.Error())
			}
			return mcperrors.UpstreamSemanticError(err.Error())
		}
		return mcperrors.UpstreamFailure(err)
	}
	return nil
}

// itemSizeLimitMarkers are substrings the store's GraphQL error message
// carries when a mutation's item would exceed its per-item size budget
// (the store's backing table enforces DynamoDB's 400KB item cap). Matched
// case-insensitively since the exact wording is the store's, not ours.
var itemSizeLimitMarkers = []string{
	"item size has exceeded",
	"exceeds the maximum allowed size",
	"exceeded the maximum item size",
}

func isItemTooLargeError(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range itemSizeLimitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (c *graphQLClient) Query(ctx context.Context, partitionKey, queryName string, variables map[string]any, dest any) error {
	doc, ok := queryDocuments[queryName]
	if !ok {
		return mcperrors.InvalidArgument("unknown query: %s", queryName)
	}
	vars := withPartitionKey(partitionKey, variables)
	if err := c.run(ctx, doc, vars, dest); err != nil {
		logging.Error("ConfigStore", err, "query %s failed for partition %s", queryName, partitionKey)
		return err
	}
	return nil
}

func (c *graphQLClient) Mutate(ctx context.Context, partitionKey, mutationName string, variables map[string]any, dest any) error {
	doc, ok := mutationDocuments[mutationName]
	if !ok {
		return mcperrors.InvalidArgument("unknown mutation: %s", mutationName)
	}
	vars := withPartitionKey(partitionKey, variables)
	if err := c.run(ctx, doc, vars, dest); err != nil {
		logging.Error("ConfigStore", err, "mutation %s failed for partition %s", mutationName, partitionKey)
		return err
	}
	return nil
}

// Raw runs document (a caller-supplied GraphQL query or mutation) against
// the store with no document lookup, for mcp_core_graphql's pass-through
// contract. Cache invalidation on the result is the caller's
// responsibility: Raw itself has no visibility into which mutation names
// the document invokes.
func (c *graphQLClient) Raw(ctx context.Context, partitionKey, document string, variables map[string]any) (map[string]any, error) {
	vars := withPartitionKey(partitionKey, variables)
	var dest map[string]any
	if err := c.run(ctx, document, vars, &dest); err != nil {
		logging.Error("ConfigStore", err, "raw graphql document failed for partition %s", partitionKey)
		return nil, err
	}
	return dest, nil
}

func withPartitionKey(partitionKey string, variables map[string]any) map[string]any {
	vars := make(map[string]any, len(variables)+1)
	for k, v := range variables {
		vars[k] = v
	}
	vars["partitionKey"] = partitionKey
	return vars
}

func (c *graphQLClient) FunctionList(ctx context.Context, partitionKey string) ([]FunctionRecord, error) {
	var resp struct {
		MCPFunctionList struct {
			MCPFunctionList []FunctionRecord `json:"mcpFunctionList"`
		} `json:"mcpFunctionList"`
	}
	if err := c.Query(ctx, partitionKey, QueryFunctionList, nil, &resp); err != nil {
		return nil, err
	}
	return resp.MCPFunctionList.MCPFunctionList, nil
}

func (c *graphQLClient) Module(ctx context.Context, partitionKey, moduleName string) (*ModuleRecord, error) {
	var resp struct {
		MCPModule *ModuleRecord `json:"mcpModule"`
	}
	if err := c.Query(ctx, partitionKey, QueryModule, map[string]any{"moduleName": moduleName}, &resp); err != nil {
		return nil, err
	}
	return resp.MCPModule, nil
}

func (c *graphQLClient) Setting(ctx context.Context, partitionKey, settingID string) (*SettingRecord, error) {
	var resp struct {
		MCPSetting *SettingRecord `json:"mcpSetting"`
	}
	if err := c.Query(ctx, partitionKey, QuerySetting, map[string]any{"settingId": settingID}, &resp); err != nil {
		return nil, err
	}
	return resp.MCPSetting, nil
}

func (c *graphQLClient) CreateCall(ctx context.Context, rec CallRecord) error {
	var resp struct {
		InsertUpdateMcpFunctionCall CallRecord `json:"insertUpdateMcpFunctionCall"`
	}
	vars := map[string]any{
		"callUuid":  rec.CallUUID,
		"name":      rec.Name,
		"mcpType":   rec.MCPType,
		"arguments": rec.Arguments,
		"status":    string(rec.Status),
	}
	return c.Mutate(ctx, rec.PartitionKey, "insertUpdateMcpFunctionCall", vars, &resp)
}

func (c *graphQLClient) UpdateCall(ctx context.Context, partitionKey, callUUID string, patch map[string]any) error {
	var resp struct {
		InsertUpdateMcpFunctionCall CallRecord `json:"insertUpdateMcpFunctionCall"`
	}
	vars := map[string]any{"callUuid": callUUID}
	for k, v := range patch {
		vars[k] = v
	}
	return c.Mutate(ctx, partitionKey, "insertUpdateMcpFunctionCall", vars, &resp)
}

func (c *graphQLClient) GetCall(ctx context.Context, partitionKey, callUUID string) (*CallRecord, error) {
	var resp struct {
		MCPFunctionCall *CallRecord `json:"mcpFunctionCall"`
	}
	if err := c.Query(ctx, partitionKey, QueryFunctionCall, map[string]any{"callUuid": callUUID}, &resp); err != nil {
		return nil, err
	}
	return resp.MCPFunctionCall, nil
}
