package state

import (
	"encoding/json"
	"os"

	"MeterWatch/internal/model"
)

// Load reads the per-meter state map from a JSON file. An absent file
// yields an empty map; a corrupt file also yields an empty map along with
// the parse error so the caller can log it. A bad state file must never
// fail a run.
func Load(path string) (map[string]model.MeterState, error) {
	states := make(map[string]model.MeterState)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return states, nil
		}
		return states, err
	}
	if err := json.Unmarshal(data, &states); err != nil {
		return make(map[string]model.MeterState), err
	}
	return states, nil
}

// Save writes the state map to a JSON file, overwriting whatever is there.
// Single writer assumed; overlapping invocations are excluded by the
// external schedule.
func Save(path string, states map[string]model.MeterState) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
