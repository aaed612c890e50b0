// Command reefcheck validates reef survey drafts against the protocol
// pipelines, toggles operator dismissals and lists pipeline identities.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// errBlocking signals that a validation run finished with ERROR outcomes.
var errBlocking = errors.New("validation reported blocking errors")

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and maps its result to an exit status.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errBlocking):
		return 2
	default:
		fmt.Fprintln(stderr, "reefcheck:", err)
		return 1
	}
}
