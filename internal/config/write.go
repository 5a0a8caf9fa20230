package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeycumines/turnbench/internal/results"
)

// SetKeyInFile updates or adds key in the given section ("" for global) of
// the config file at path, preserving comments and the order of other lines.
//
// An existing line for key within the section is replaced in place. A new
// global key is inserted before the first section header. A new section key
// is appended to the end of its section, and a missing section is appended
// to the end of the file.
func SetKeyInFile(path, section, key, value string) error {
	if key == "" || strings.ContainsAny(key, " \t\r\n") {
		return fmt.Errorf("invalid config key: %q", key)
	}
	if strings.ContainsAny(section, "[]\r\n") || strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("config section and value must be single-line: [%s] %s", section, key)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}

	newLine := key
	if value != "" {
		newLine = key + " " + value
	}

	var (
		current   string
		inSection = section == ""
		found     bool
		// insertAt is the index after the last line belonging to section,
		// or -1 if the section has not been seen.
		insertAt = -1
	)
	if section == "" {
		insertAt = len(lines)
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			current = strings.TrimSpace(strings.Trim(trimmed, "[]"))
			if section == "" && inSection {
				insertAt = i
			}
			inSection = current == section
			if inSection {
				insertAt = i + 1
			}
			continue
		}

		if !inSection {
			continue
		}
		if section != "" {
			if trimmed != "" {
				insertAt = i + 1
			}
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if name, _, _ := strings.Cut(trimmed, " "); name == key {
			lines[i] = newLine
			found = true
			break
		}
	}

	switch {
	case found:
	case insertAt < 0:
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, "["+section+"]", newLine)
	default:
		lines = append(lines[:insertAt], append([]string{newLine}, lines[insertAt:]...)...)
	}

	return results.AtomicWriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}
