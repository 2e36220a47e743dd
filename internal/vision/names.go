package vision

import (
	"fmt"
	"os"
	"strings"
)

// LoadClassNames reads a YOLO .names file: one class name per line, blank
// lines ignored. The slice index is the network's class ID.
func LoadClassNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class names: %w", err)
	}

	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("class names file %s is empty", path)
	}
	return names, nil
}

// ClassName returns the name for a class ID, or "unknown" when the ID is
// out of range.
func ClassName(names []string, id int) string {
	if id < 0 || id >= len(names) {
		return "unknown"
	}
	return names[id]
}
