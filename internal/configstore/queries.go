package configstore

// Query name constants, used as both the map key below and the value passed
// to Client.Query's queryName parameter: the three fixed metadata queries
// (function list, module, setting) plus QueryFunctionCall for call-record
// reads.
const (
	QueryFunctionList = "mcp_function_list"
	QueryModule       = "mcp_module"
	QuerySetting      = "mcp_setting"
	QueryFunctionCall = "mcp_function_call"
)

// queryDocuments holds the literal GraphQL documents for each named query,
// shaped after original_source/ai_mcp_daemon_engine/handlers/config.py's
// MCP_FUNCTION_LIST query.
var queryDocuments = map[string]string{
	QueryFunctionList: `query mcpFunctionList($partitionKey: String!) {
		mcpFunctionList(partitionKey: $partitionKey) {
			mcpFunctionList {
				name
				mcpType
				description
				data
				annotations
				moduleName
				className
				functionName
				returnType
				isAsync
			}
		}
	}`,

	QueryModule: `query mcpModule($partitionKey: String!, $moduleName: String!) {
		mcpModule(partitionKey: $partitionKey, moduleName: $moduleName) {
			moduleName
			packageName
			classes {
				className
				settingId
			}
			source
		}
	}`,

	QuerySetting: `query mcpSetting($partitionKey: String!, $settingId: String!) {
		mcpSetting(partitionKey: $partitionKey, settingId: $settingId) {
			settingId
			setting
		}
	}`,

	QueryFunctionCall: `query mcpFunctionCall($partitionKey: String!, $callUuid: String!) {
		mcpFunctionCall(partitionKey: $partitionKey, callUuid: $callUuid) {
			partitionKey
			callUuid
			name
			mcpType
			arguments
			status
			hasContent
			content
			notes
			timeSpentMs
		}
	}`,
}

// mutationDocuments holds the literal GraphQL documents for each named
// mutation. Names intersect with configstore.MutationTriggersInvalidation
// for the six entity-kind mutations; insertUpdateMcpFunctionCall is not a
// trigger (call records are leaves in the invalidation DAG, see spec.md
// §4.H / §9).
var mutationDocuments = map[string]string{
	"insertUpdateMcpFunctionCall": `mutation insertUpdateMcpFunctionCall(
		$partitionKey: String!, $callUuid: String!, $name: String, $mcpType: String,
		$arguments: AWSJSON, $status: String, $content: String, $hasContent: Boolean,
		$notes: String, $timeSpentMs: Int
	) {
		insertUpdateMcpFunctionCall(
			partitionKey: $partitionKey, callUuid: $callUuid, name: $name, mcpType: $mcpType,
			arguments: $arguments, status: $status, content: $content, hasContent: $hasContent,
			notes: $notes, timeSpentMs: $timeSpentMs
		) {
			partitionKey
			callUuid
			status
			hasContent
			content
			notes
			timeSpentMs
		}
	}`,

	"insertUpdateMcpFunction": `mutation insertUpdateMcpFunction($partitionKey: String!, $name: String!, $input: AWSJSON!) {
		insertUpdateMcpFunction(partitionKey: $partitionKey, name: $name, input: $input) { name }
	}`,
	"deleteMcpFunction": `mutation deleteMcpFunction($partitionKey: String!, $name: String!) {
		deleteMcpFunction(partitionKey: $partitionKey, name: $name) { name }
	}`,
	"insertUpdateMcpModule": `mutation insertUpdateMcpModule($partitionKey: String!, $moduleName: String!, $input: AWSJSON!) {
		insertUpdateMcpModule(partitionKey: $partitionKey, moduleName: $moduleName, input: $input) { moduleName }
	}`,
	"deleteMcpModule": `mutation deleteMcpModule($partitionKey: String!, $moduleName: String!) {
		deleteMcpModule(partitionKey: $partitionKey, moduleName: $moduleName) { moduleName }
	}`,
	"insertUpdateMcpSetting": `mutation insertUpdateMcpSetting($partitionKey: String!, $settingId: String!, $input: AWSJSON!) {
		insertUpdateMcpSetting(partitionKey: $partitionKey, settingId: $settingId, input: $input) { settingId }
	}`,
	"deleteMcpSetting": `mutation deleteMcpSetting($partitionKey: String!, $settingId: String!) {
		deleteMcpSetting(partitionKey: $partitionKey, settingId: $settingId) { settingId }
	}`,
}
