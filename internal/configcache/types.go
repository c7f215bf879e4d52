package configcache

// ModuleLink is a function record's pointer to executable code, per
// spec.md's glossary.
type ModuleLink struct {
	Type         string // "tool" | "resource" | "prompt"
	Name         string
	ModuleName   string
	ClassName    string
	FunctionName string
	ReturnType   string
	IsAsync      bool
}

// ModuleEntry is one (module, class) row of the materialised view's
// "modules" list, with settings already merged in by setting_id.
type ModuleEntry struct {
	ModuleName  string
	PackageName string
	ClassName   string
	Setting     map[string]any
	Source      string
}

// View is the materialised configuration for one partition, per spec.md §3.
type View struct {
	Tools       []map[string]any
	Resources   []map[string]any
	Prompts     []map[string]any
	ModuleLinks []ModuleLink
	Modules     []ModuleEntry
}

// FindModuleLink returns the first module_link matching (name, mcpType), per
// spec.md §4.F's tie-break rule ("when multiple module_links match, the
// first is chosen").
func (v *View) FindModuleLink(name, mcpType string) (ModuleLink, bool) {
	for _, l := range v.ModuleLinks {
		if l.Name == name && l.Type == mcpType {
			return l, true
		}
	}
	return ModuleLink{}, false
}

// FindModule returns the first modules entry matching (moduleName,
// className), per spec.md §4.F's tie-break rule.
func (v *View) FindModule(moduleName, className string) (ModuleEntry, bool) {
	for _, m := range v.Modules {
		if m.ModuleName == moduleName && m.ClassName == className {
			return m, true
		}
	}
	return ModuleEntry{}, false
}

func findByName(entries []map[string]any, name string) (map[string]any, bool) {
	for _, e := range entries {
		if n, _ := e["name"].(string); n == name {
			return e, true
		}
	}
	return nil, false
}

// FindTool returns the tool descriptor with the given name.
func (v *View) FindTool(name string) (map[string]any, bool) { return findByName(v.Tools, name) }

// FindResourceByURI returns the resource descriptor with the given uri.
func (v *View) FindResourceByURI(uri string) (map[string]any, bool) {
	for _, e := range v.Resources {
		if u, _ := e["uri"].(string); u == uri {
			return e, true
		}
	}
	return nil, false
}

// FindPrompt returns the prompt descriptor with the given name.
func (v *View) FindPrompt(name string) (map[string]any, bool) { return findByName(v.Prompts, name) }
