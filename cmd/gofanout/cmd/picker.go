package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dbsmedya/gofanout/internal/orchestrator"
)

// ensureFolder creates dir if needed and returns its absolute path.
func ensureFolder(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create output folder: %w", err)
	}
	return abs, nil
}

// staticPicker always answers with dir.
func staticPicker(dir string) orchestrator.FolderPicker {
	return orchestrator.FolderPickerFunc(func(ctx context.Context) (string, bool, error) {
		abs, err := ensureFolder(dir)
		if err != nil {
			return "", false, err
		}
		return abs, true, nil
	})
}

// promptPicker asks for a folder on out and reads one line from in. An
// empty answer (or end of input) declines; suggested is offered as the
// default when set.
func promptPicker(in io.Reader, out io.Writer, suggested string) orchestrator.FolderPicker {
	return orchestrator.FolderPickerFunc(func(ctx context.Context) (string, bool, error) {
		if suggested != "" {
			fmt.Fprintf(out, "Export folder [%s] (\"-\" to cancel): ", suggested)
		} else {
			fmt.Fprint(out, "Export folder (empty to cancel): ")
		}

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", false, err
		}
		answer := strings.TrimSpace(line)
		if answer == "" {
			answer = suggested
		}
		if answer == "" || answer == "-" {
			return "", false, nil
		}

		abs, err := ensureFolder(answer)
		if err != nil {
			return "", false, err
		}
		return abs, true, nil
	})
}
