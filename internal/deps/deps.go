package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"vodmill/internal/config"
)

// Requirement defines an external binary vodmill relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements returns the external binaries the daemon needs to operate.
func Requirements(cfg *config.Config) []Requirement {
	binary := "ffmpeg"
	if cfg != nil && strings.TrimSpace(cfg.FFmpeg.Binary) != "" {
		binary = cfg.FFmpeg.Binary
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     binary,
			Description: "Transcodes uploads into HLS renditions",
		},
	}
}

// Check evaluates the daemon's requirements against the environment.
func Check(cfg *config.Config) []Status {
	return CheckBinaries(Requirements(cfg))
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
