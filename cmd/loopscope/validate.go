package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vinayprograms/loopscope/internal/visual"
)

// readVisual parses a VisualState file. YAML is chosen by extension.
func readVisual(path string) (visual.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return visual.State{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return visual.ParseYAML(data)
	default:
		return visual.Parse(data)
	}
}

// Run validates a VisualState file and prints what it contains.
func (c *ValidateCmd) Run() error {
	st, err := readVisual(c.File)
	if err != nil {
		var se *visual.SchemaError
		if errors.As(err, &se) {
			fmt.Fprintf(os.Stderr, "✗ %s: invalid visual state\n", c.File)
			for _, issue := range se.Issues {
				fmt.Fprintf(os.Stderr, "  - %s: %s\n", issue.Path, issue.Message)
			}
			return fmt.Errorf("validation failed")
		}
		return err
	}

	fmt.Printf("✓ %s is valid\n", c.File)
	fmt.Printf("  Nodes: %d\n", len(st.Nodes))
	fmt.Printf("  Loops: %d\n", len(st.Loops))
	fmt.Printf("  Levers: %d\n", len(st.Levers))
	fmt.Printf("  Flows: %d\n", len(st.Flows))
	if st.Field != nil {
		fmt.Printf("  Field: chaos=%.2f density=%.2f\n", st.Field.Chaos, st.Field.Density)
	}
	if st.Focus != "" {
		fmt.Printf("  Focus: %s\n", st.Focus)
	}
	return nil
}
