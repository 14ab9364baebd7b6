package environment

import (
	"encoding/json"
	"fmt"
	"strings"

	igniteErrors "github.com/harunnryd/ignite/internal/errors"
)

// StartupFile is loaded by the interpreter before any program runs when the
// site directory is on its module path.
const StartupFile = "sitecustomize.py"

// InstallProgram is the Python submitted to an environment to run its own
// package manager for a single package.
func InstallProgram(name, target string) string {
	return fmt.Sprintf(`import subprocess, sys
cmd = [sys.executable, "-m", "pip", "install", "--quiet", "--disable-pip-version-check", "--no-input", "--target", %s, %s]
sys.exit(subprocess.run(cmd).returncode)
`, pyString(target), pyString(name))
}

// ConfigProgram sets key in the running interpreter and persists it in the
// startup file so the handed-off program sees it from its first line.
func ConfigProgram(key, value, startupPath string) string {
	return fmt.Sprintf(`import os
os.environ[%[1]s] = %[2]s
with open(%[3]s, "a", encoding="utf-8") as f:
    f.write("import os\nos.environ[%%r] = %%r\n" %% (%[1]s, %[2]s))
`, pyString(key), pyString(value), pyString(startupPath))
}

// ValidateConfigKey rejects keys that cannot name an environment variable.
func ValidateConfigKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return igniteErrors.InvalidInput("config key is empty")
	}
	if strings.ContainsAny(key, "=\x00") {
		return igniteErrors.InvalidInput(fmt.Sprintf("config key %q contains '=' or NUL", key))
	}
	return nil
}

// ValidatePackageName rejects names the package manager would read as flags.
func ValidatePackageName(name string) error {
	if strings.TrimSpace(name) == "" {
		return igniteErrors.InvalidInput("package name is empty")
	}
	if strings.HasPrefix(name, "-") {
		return igniteErrors.InvalidInput(fmt.Sprintf("package name %q looks like an option", name))
	}
	return nil
}

// pyString renders s as a Python string literal; JSON string escapes are a
// subset of Python's.
func pyString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
