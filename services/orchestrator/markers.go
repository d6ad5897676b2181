package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/KiboNaku/utreview-backend-sub000/services/schedule"
)

// ReadMarkers loads the semester-marker file written by a previous run.
// A missing file means no markers yet, not an error.
func ReadMarkers(path string) (schedule.Markers, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return schedule.Markers{}, nil
	}
	if err != nil {
		return schedule.Markers{}, err
	}

	var markers schedule.Markers
	err = json.Unmarshal(data, &markers)
	if err != nil {
		return schedule.Markers{}, fmt.Errorf("parse marker file %s: %w", path, err)
	}
	return markers, nil
}

func WriteMarkers(path string, markers schedule.Markers) error {
	data, err := json.MarshalIndent(markers, "", "\t")
	if err != nil {
		return err
	}
	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return fmt.Errorf("write marker file %s: %w", path, err)
	}
	return nil
}
