package verify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// maxDetailLen bounds the command output kept as a result reason. Full output
// stays on the operator's terminal; records only need the tail.
const maxDetailLen = 600

// CommandHandler runs an external command and maps its exit status to a
// verdict: exit 0 passes, any other exit fails with the output tail as
// detail. A command that cannot be started at all is a backend error.
//
// Parameters:
//
//	args: [prog, arg...]  argv form, preferred
//	command: "string"     run through "sh -c"
//	dir: "path"           working directory override, relative to WorkDir
type CommandHandler struct{}

// Invoke implements [Handler].
func (h *CommandHandler) Invoke(ctx context.Context, kind string, params map[string]any, env ExecutionContext) (bool, string, error) {
	argv, err := commandArgv(params)
	if err != nil {
		return false, "", err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = resolveDir(env.WorkDir, params)
	if env.Env != nil {
		cmd.Env = env.Env
	}

	out, runErr := cmd.CombinedOutput()
	detail := tail(strings.TrimSpace(string(out)), maxDetailLen)
	if runErr == nil {
		return true, detail, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && ctx.Err() == nil {
		if detail == "" {
			detail = fmt.Sprintf("command exited with status %d", exitErr.ExitCode())
		} else {
			detail = fmt.Sprintf("exit status %d: %s", exitErr.ExitCode(), detail)
		}
		return false, detail, nil
	}
	// Binary missing, permission denied, or killed by the deadline.
	return false, "", fmt.Errorf("running %q: %w", strings.Join(argv, " "), runErr)
}

func commandArgv(params map[string]any) ([]string, error) {
	if raw, ok := params["args"]; ok {
		list, ok := raw.([]any)
		if !ok || len(list) == 0 {
			return nil, errors.New(`parameter "args" must be a non-empty list`)
		}
		argv := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf(`parameter "args" element %d is not a string`, i)
			}
			argv[i] = s
		}
		return argv, nil
	}
	if line, ok := stringParam(params, "command"); ok {
		if strings.TrimSpace(line) == "" {
			return nil, errors.New(`parameter "command" is empty`)
		}
		return []string{"sh", "-c", line}, nil
	}
	return nil, errors.New(`command check needs an "args" list or a "command" string`)
}

func resolveDir(workDir string, params map[string]any) string {
	dir, ok := stringParam(params, "dir")
	if !ok || dir == "" {
		return workDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(workDir, dir)
}

// ResourceHandler checks properties of a file or directory in the working
// tree: presence, content substring, and non-emptiness.
//
// Parameters:
//
//	path: "rel/or/abs"    required; relative paths resolve against WorkDir
//	exists: bool          default true; false asserts absence
//	contains: "substr"    file must contain this text
//	non_empty: bool       file must have size > 0
type ResourceHandler struct{}

// Invoke implements [Handler].
func (h *ResourceHandler) Invoke(ctx context.Context, kind string, params map[string]any, env ExecutionContext) (bool, string, error) {
	rel, ok := stringParam(params, "path")
	if !ok || rel == "" {
		return false, "", errors.New(`resource check needs a "path" parameter`)
	}
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(env.WorkDir, rel)
	}

	wantExists := boolParam(params, "exists", true)
	info, statErr := os.Stat(path)
	switch {
	case statErr == nil && !wantExists:
		return false, fmt.Sprintf("%s exists but should not", rel), nil
	case errors.Is(statErr, os.ErrNotExist):
		if wantExists {
			return false, fmt.Sprintf("%s does not exist", rel), nil
		}
		return true, fmt.Sprintf("%s absent as required", rel), nil
	case statErr != nil:
		return false, "", fmt.Errorf("stat %s: %w", path, statErr)
	}

	if boolParam(params, "non_empty", false) && info.Size() == 0 {
		return false, fmt.Sprintf("%s is empty", rel), nil
	}

	if substr, ok := stringParam(params, "contains"); ok && substr != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return false, "", fmt.Errorf("reading %s: %w", path, err)
		}
		if !strings.Contains(string(data), substr) {
			return false, fmt.Sprintf("%s does not contain %q", rel, substr), nil
		}
	}

	return true, fmt.Sprintf("%s satisfies resource check", rel), nil
}

// AttestHandler implements the check kinds that can never decide on their
// own: it always defers to a human by returning an [AwaitAttestation] error
// carrying the step's prompt.
type AttestHandler struct {
	// DefaultPrompt is used when the spec carries no "prompt" parameter.
	DefaultPrompt string
}

// Invoke implements [Handler].
func (h *AttestHandler) Invoke(ctx context.Context, kind string, params map[string]any, env ExecutionContext) (bool, string, error) {
	prompt, ok := stringParam(params, "prompt")
	if !ok || prompt == "" {
		prompt = h.DefaultPrompt
	}
	if prompt == "" {
		prompt = fmt.Sprintf("confirm step %s", env.StepID)
	}
	return false, "", AwaitAttestation(prompt)
}

func stringParam(params map[string]any, key string) (string, bool) {
	raw, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func boolParam(params map[string]any, key string, fallback bool) bool {
	raw, ok := params[key]
	if !ok {
		return fallback
	}
	b, ok := raw.(bool)
	if !ok {
		return fallback
	}
	return b
}

func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}
