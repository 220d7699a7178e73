package mi

// These name sets form the case-insensitive command table from spec
// §4.3. Kept as a set of name sets (rather than a map of funcs) since several
// entries need shared argument handling and the special two-word
// "target exec" form doesn't fit a flat string key.
var (
	execRunNames       = set("exec-run", "exec")
	execContinueNames  = set("exec-continue", "continue")
	execAbortNames     = set("exec-abort")
	attachNames        = set("target-attach", "attach")
	detachNames        = set("target-detach", "gdb-detach", "detach", "target-disconnect")
	fileExecNames      = set("file-exec-and-symbols")
	execArgumentsNames = set("exec-arguments")
	environmentCdNames = set("environment-cd")
	showNames          = set("show")
	infoGdbMiNames     = set("info-gdb-mi-command")
	listFeaturesNames  = set("list-features")
	gdbExitNames       = set("gdb-exit", "quit", "q")
	gdbSetNames        = set("gdb-set", "inferior-tty-set")
)

// knownCommands backs info-gdb-mi-command's existence check: every name
// this table recognizes, including the two-word "target" family.
var knownCommands = set(
	"exec-run", "exec", "exec-continue", "continue", "exec-abort",
	"target-attach", "attach", "target-detach", "gdb-detach", "detach",
	"target-disconnect", "target", "file-exec-and-symbols", "exec-arguments",
	"environment-cd", "show", "info-gdb-mi-command", "list-features",
	"gdb-exit", "quit", "q", "gdb-set", "inferior-tty-set",
)

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
