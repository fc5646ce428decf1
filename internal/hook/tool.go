package hook

import (
	"strings"
)

// Tool identifies the server-side check that produced a problem
type Tool string

const (
	ToolFileSize      Tool = "file-size"
	ToolEncoding      Tool = "encoding"
	ToolEclipseConfig Tool = "eclipse-configuration"
	ToolCompiler      Tool = "javac"
	ToolCheckstyle    Tool = "checkstyle"
	ToolHook          Tool = "hook"
	ToolJUnit         Tool = "junit"
	ToolCommitHandler Tool = "commit-handler"
	ToolUnknown       Tool = "unknown"
)

var knownTools = []Tool{
	ToolFileSize,
	ToolEncoding,
	ToolEclipseConfig,
	ToolCompiler,
	ToolCheckstyle,
	ToolHook,
	ToolJUnit,
	ToolCommitHandler,
}

// older hooks still send the previous names
var toolAliases = map[string]Tool{
	"file-size-check": ToolFileSize,
}

// LookupTool resolves a tool name case-insensitively. Unknown names yield ToolUnknown.
func LookupTool(name string) Tool {
	lower := strings.ToLower(name)
	if alias, ok := toolAliases[lower]; ok {
		return alias
	}
	for _, t := range knownTools {
		if string(t) == lower {
			return t
		}
	}
	return ToolUnknown
}

// Severity of a reported problem
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityUnknown Severity = "unknown"
)

// LookupSeverity resolves a severity name case-insensitively
func LookupSeverity(name string) Severity {
	switch Severity(strings.ToLower(name)) {
	case SeverityError:
		return SeverityError
	case SeverityWarning:
		return SeverityWarning
	default:
		return SeverityUnknown
	}
}
