package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DisplayStatus is the JSON status file the frame process and the
// server share, written next to the render cache.
type DisplayStatus struct {
	IsUpdating   bool   `json:"isUpdating"`
	LastUpdate   string `json:"lastUpdate"`
	Status       string `json:"status"`
	CurrentPhoto string `json:"currentPhoto,omitempty"`
	Error        string `json:"error,omitempty"`
}

func statusFilePath() string {
	return filepath.Join(cacheDir, "display_status.json")
}

// writeDisplayStatus updates the status file, keeping fields that are
// not part of this update.
func writeDisplayStatus(status, photo, errMsg string) error {
	current, err := readDisplayStatus()
	if err != nil {
		current = DisplayStatus{}
	}

	current.IsUpdating = status == "updating"
	current.LastUpdate = time.Now().UTC().Format(time.RFC3339)
	current.Status = status
	if photo != "" {
		current.CurrentPhoto = photo
	}
	current.Error = errMsg

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal display status: %w", err)
	}
	if err := os.WriteFile(statusFilePath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write display status: %w", err)
	}
	return nil
}

func readDisplayStatus() (DisplayStatus, error) {
	var status DisplayStatus
	data, err := os.ReadFile(statusFilePath())
	if err != nil {
		return status, fmt.Errorf("failed to read display status: %w", err)
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return status, fmt.Errorf("failed to parse display status: %w", err)
	}
	return status, nil
}
