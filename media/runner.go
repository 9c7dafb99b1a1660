package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// runCommand executes an external tool and returns captured stdout.
// Stderr rides along in the error so provider CLI failures stay
// diagnosable from logs alone.
func runCommand(ctx context.Context, log *logrus.Logger, name string, args ...string) ([]byte, error) {
	log.WithFields(logrus.Fields{
		"command": name,
		"args":    args,
	}).Debug("Executing command")

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrOutput := stderr.String()
		log.WithFields(logrus.Fields{
			"command": name,
			"error":   err,
			"stderr":  stderrOutput,
		}).Error("Command execution failed")
		return nil, fmt.Errorf("%s failed: %v (stderr: %s)", name, err, truncate(stderrOutput, 2048))
	}

	return stdout.Bytes(), nil
}

// runCommandCombined is for tools like ffmpeg that report on stderr
// even on success.
func runCommandCombined(ctx context.Context, log *logrus.Logger, name string, args ...string) ([]byte, error) {
	log.WithFields(logrus.Fields{
		"command": name,
		"args":    args,
	}).Debug("Executing command")

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.WithFields(logrus.Fields{
			"command": name,
			"error":   err,
			"output":  truncate(string(output), 2048),
		}).Error("Command execution failed")
		return output, fmt.Errorf("%s failed: %v", name, err)
	}
	return output, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
