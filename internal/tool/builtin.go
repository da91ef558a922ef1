package tool

import (
	"encoding/json"
	"os"
	"os/exec"

	"github.com/gobwas/glob"
)

// registerBuiltins installs the gateway's always-active tools, layered
// the way engine.Engine separates built-in rules from custom ones.
func registerBuiltins(r *Registry) {
	r.Register(Definition{
		Name:                "read_file",
		Description:         "Read the contents of a file on the local filesystem",
		ParameterSchemaJSON: `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`,
		Run:                 runReadFile,
	})
	r.Register(Definition{
		Name:                 "write_file",
		Description:          "Write contents to a file on the local filesystem",
		ParameterSchemaJSON:  `{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`,
		RequiresConfirmation: true,
		Run:                  runWriteFile,
	})
	r.Register(Definition{
		Name:                 "exec_shell",
		Description:          "Execute a shell command and return its output",
		ParameterSchemaJSON:  `{"type":"object","properties":{"command":{"type":"string"}},"required":["command"]}`,
		RequiresConfirmation: true,
		Run:                  runExecShell,
	})
}

type readFileArgs struct {
	Path string `json:"path"`
}

func runReadFile(argsJSON string) Result {
	var args readFileArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return Result{Output: "error: invalid arguments: " + err.Error(), IsError: true, ExitCode: -1}
	}
	data, err := os.ReadFile(args.Path)
	if err != nil {
		return Result{Output: "error: " + err.Error(), IsError: true, ExitCode: 1}
	}
	return Result{Output: string(data), IsError: false, ExitCode: 0}
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func runWriteFile(argsJSON string) Result {
	var args writeFileArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return Result{Output: "error: invalid arguments: " + err.Error(), IsError: true, ExitCode: -1}
	}
	if err := os.WriteFile(args.Path, []byte(args.Content), 0o644); err != nil {
		return Result{Output: "error: " + err.Error(), IsError: true, ExitCode: 1}
	}
	return Result{Output: "ok", IsError: false, ExitCode: 0}
}

type execShellArgs struct {
	Command string `json:"command"`
}

func runExecShell(argsJSON string) Result {
	var args execShellArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return Result{Output: "error: invalid arguments: " + err.Error(), IsError: true, ExitCode: -1}
	}
	cmd := exec.Command("sh", "-c", args.Command)
	out, err := cmd.CombinedOutput()
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return Result{Output: string(out) + err.Error(), IsError: true, ExitCode: exitCode}
	}
	return Result{Output: string(out), IsError: false, ExitCode: 0}
}

// desktopShimPattern matches tool names reserved for the desktop shell's
// own tool set. The registry never forwards these itself — it only marks
// results so the dispatch layer (the chat handler) knows to delegate
// elsewhere, resolved at the dispatch layer rather than at registration
// time.
var desktopShimPattern = glob.MustCompile("desktop_*")

// IsDesktopShim reports whether name belongs to the desktop forwarding
// namespace.
func IsDesktopShim(name string) bool {
	return desktopShimPattern.Match(name)
}

// RegisterDesktopShim installs a pass-through executor for a desktop_*
// tool name. Its result always carries Forwarded=true so the caller
// recognizes it needs delegating, never interpreting the marker output
// as a real tool result.
func RegisterDesktopShim(r *Registry, name, description, paramSchemaJSON string) {
	r.Register(Definition{
		Name:                name,
		Description:         description,
		ParameterSchemaJSON: paramSchemaJSON,
		Run: func(string) Result {
			return Result{Output: "forward:desktop", IsError: false, ExitCode: 0, Forwarded: true}
		},
	})
}
