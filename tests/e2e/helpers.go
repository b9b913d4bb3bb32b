package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// findRdebugBinary finds the rdebug binary under test.
// The binary is expected on PATH, usually from a local ./bin directory.
func findRdebugBinary() (string, error) {
	path, err := exec.LookPath("rdebug")
	if err != nil {
		return "", fmt.Errorf("could not find 'rdebug' binary in PATH; build it with 'go build -o bin/rdebug ./cmd/rdebug' and add bin to PATH")
	}
	return filepath.Abs(path)
}

// rdebugArgs returns arguments for env(1) that run rdebug with home as
// RDEBUG_HOME, no Slurm job identity, and the extra NAME=value pairs in env.
func rdebugArgs(home string, env []string, args ...string) ([]string, error) {
	bin, err := findRdebugBinary()
	if err != nil {
		return nil, err
	}
	argv := []string{}
	for _, key := range []string{"SLURM_JOB_ID", "SLURM_JOB_USER", "SLURM_SUBMIT_HOST", "RDEBUG_LOCAL_PORT", "RDEBUG_LAUNCH_PATH"} {
		argv = append(argv, "-u", key)
	}
	argv = append(argv, "RDEBUG_HOME="+home)
	argv = append(argv, env...)
	argv = append(argv, bin)
	return append(argv, args...), nil
}

const fakeJob = "12345|train|RUNNING|0:42|node042"

// writeFakeSlurm installs squeue and srun scripts in dir. squeue lists
// fakeJob. srun records its arguments in dir/srun.log and exits with
// srunExit, printing a Slurm style error when it fails.
func writeFakeSlurm(dir string, srunExit int) error {
	squeue := "#!/bin/sh\necho '" + fakeJob + "'\n"

	var srun strings.Builder
	srun.WriteString("#!/bin/sh\n")
	srun.WriteString(`echo "$@" >> "$(dirname "$0")/srun.log"` + "\n")
	if srunExit != 0 {
		srun.WriteString("echo 'srun: error: Invalid job id specified' >&2\n")
	}
	fmt.Fprintf(&srun, "exit %d\n", srunExit)

	for name, script := range map[string]string{"squeue": squeue, "srun": srun.String()} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755); err != nil {
			return fmt.Errorf("failed to write fake %s: %w", name, err)
		}
	}
	return nil
}

// pathWith puts dir in front of the current PATH.
func pathWith(dir string) string {
	return "PATH=" + dir + string(os.PathListSeparator) + os.Getenv("PATH")
}
