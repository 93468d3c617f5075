// Package builtin provides the demo text-analysis tools the server registers
// at startup.
package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/seantiz/graphrun/internal/tool"
)

// Tool names.
const (
	ExtractFunctions    = "extract_functions"
	CheckComplexity     = "check_complexity"
	DetectIssues        = "detect_issues"
	SuggestImprovements = "suggest_improvements"
	LongTask            = "long_task"
)

const (
	defaultNameLenThreshold = 20
	defaultMaxLineLen       = 120
	defaultLongTaskSeconds  = 5
	defaultLongTaskKey      = "long_result"
)

// RegisterAll registers every builtin tool on reg.
func RegisterAll(reg *tool.Registry) {
	reg.Register(ExtractFunctions, tool.BlockingFunc(extractFunctions))
	reg.Register(CheckComplexity, tool.BlockingFunc(checkComplexity))
	reg.Register(DetectIssues, tool.BlockingFunc(detectIssues))
	reg.Register(SuggestImprovements, tool.BlockingFunc(suggestImprovements))
	reg.Register(LongTask, tool.Func(longTask))
}

// extractFunctions lists the names of Python-style "def" lines in state["code"]
// and resets the issue counter.
func extractFunctions(state, _ map[string]any) (map[string]any, error) {
	functions := []string{}
	for _, line := range splitLines(stringValue(state["code"])) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "def ") {
			continue
		}
		name, _, _ := strings.Cut(line, "(")
		name = strings.TrimSpace(strings.Replace(name, "def ", "", 1))
		functions = append(functions, name)
	}
	return map[string]any{"functions": functions, "issues": 0}, nil
}

// checkComplexity scores each function by name length and counts one issue per
// name longer than params["threshold_name_len"].
func checkComplexity(state, params map[string]any) (map[string]any, error) {
	issues, _ := intValue(state["issues"])
	threshold := intParam(params, "threshold_name_len", defaultNameLenThreshold)

	complexity := make(map[string]int)
	for _, fn := range stringSlice(state["functions"]) {
		complexity[fn] = utf8.RuneCountInString(fn)
	}
	for _, score := range complexity {
		if score > threshold {
			issues++
		}
	}
	return map[string]any{"complexity": complexity, "issues": issues}, nil
}

// detectIssues counts one issue per line longer than params["max_line_len"].
func detectIssues(state, params map[string]any) (map[string]any, error) {
	issues, _ := intValue(state["issues"])
	maxLen := intParam(params, "max_line_len", defaultMaxLineLen)

	for _, line := range splitLines(stringValue(state["code"])) {
		if utf8.RuneCountInString(line) > maxLen {
			issues++
		}
	}
	return map[string]any{"issues": issues}, nil
}

// suggestImprovements turns the issue count into suggestions and a 0-100 score.
func suggestImprovements(state, _ map[string]any) (map[string]any, error) {
	issues, _ := intValue(state["issues"])

	var suggestions []string
	if issues == 0 {
		suggestions = append(suggestions, "Code looks fine.")
	} else {
		suggestions = append(suggestions, fmt.Sprintf("Found %d issues. Consider refactoring and reducing long lines.", issues))
	}
	quality := max(0, 100-issues*10)
	return map[string]any{"suggestions": suggestions, "quality_score": quality}, nil
}

// longTask simulates slow I/O. It waits params["seconds"] and stores a
// completion message under params["result_key"].
func longTask(ctx context.Context, _, params map[string]any) (map[string]any, error) {
	seconds := intParam(params, "seconds", defaultLongTaskSeconds)
	key := stringValue(params["result_key"])
	if key == "" {
		key = defaultLongTaskKey
	}

	timer := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return map[string]any{key: fmt.Sprintf("completed after %ds", seconds)}, nil
}
