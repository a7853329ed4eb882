// File: internal/runner/steps.go
package runner

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/stagecheck/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LoadSteps reads a step sequence from a JSON file. The file is a flat array
// of step objects. Actions are validated against the supported set here, so
// a typo fails before a browser ever launches.
func LoadSteps(path string) ([]schemas.Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read steps file: %w", err)
	}

	var steps []schemas.Step
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("failed to parse steps file %s: %w", path, err)
	}

	for i, step := range steps {
		if step.Action == "" {
			return nil, fmt.Errorf("step %d (%s) has no action", i+1, step.DisplayName(i))
		}
		if !step.Action.Known() {
			return nil, fmt.Errorf("step %d (%s) has unknown action %q", i+1, step.DisplayName(i), step.Action)
		}
	}
	return steps, nil
}
