package configstore

// FunctionRecord is an MCP Function entity as defined in spec.md §3.
type FunctionRecord struct {
	Name         string         `json:"name"`
	MCPType      string         `json:"mcpType"` // "tool" | "resource" | "prompt"
	Description  string         `json:"description"`
	Data         map[string]any `json:"data"`
	Annotations  map[string]any `json:"annotations"`
	ModuleName   string         `json:"moduleName"`
	ClassName    string         `json:"className"`
	FunctionName string         `json:"functionName"`
	ReturnType   string         `json:"returnType"` // "text" | "image" | "embedded_resource"
	IsAsync      bool           `json:"isAsync"`
}

// ModuleClass is one entry in an MCP Module's classes list.
type ModuleClass struct {
	ClassName string `json:"className"`
	SettingID string `json:"settingId"`
}

// ModuleRecord is an MCP Module entity as defined in spec.md §3.
type ModuleRecord struct {
	ModuleName  string        `json:"moduleName"`
	PackageName string        `json:"packageName"`
	Classes     []ModuleClass `json:"classes"`
	Source      string        `json:"source"` // opaque tag; non-empty means "fetch from blob store"
}

// SettingRecord is an MCP Setting entity as defined in spec.md §3.
type SettingRecord struct {
	SettingID string         `json:"settingId"`
	Setting   map[string]any `json:"setting"`
}

// CallStatus is the function-call record state, per spec.md §3's state
// machine: initial -> in_process -> {completed | failed}.
type CallStatus string

const (
	CallStatusInitial    CallStatus = "initial"
	CallStatusInProcess  CallStatus = "in_process"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
)

// CallRecord is an MCP Function Call entity as defined in spec.md §3.
type CallRecord struct {
	PartitionKey string         `json:"partitionKey"`
	CallUUID     string         `json:"callUuid"`
	Name         string         `json:"name"`
	MCPType      string         `json:"mcpType"`
	Arguments    map[string]any `json:"arguments"`
	Status       CallStatus     `json:"status"`
	HasContent   bool           `json:"hasContent"`
	Content      string         `json:"content"`
	Notes        string         `json:"notes"`
	TimeSpentMS  int64          `json:"timeSpentMs"`
}

// MutationTriggersInvalidation is the set of GraphQL mutation names that, on
// success, must purge the configuration cache for the partition they were
// issued against (spec.md §4.H "Cascading invalidation").
var MutationTriggersInvalidation = map[string]bool{
	"insertUpdateMcpFunction": true,
	"deleteMcpFunction":       true,
	"insertUpdateMcpModule":   true,
	"deleteMcpModule":         true,
	"insertUpdateMcpSetting":  true,
	"deleteMcpSetting":        true,
}
