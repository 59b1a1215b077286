package encoding

import (
	"fmt"
	"path/filepath"
	"strings"

	"vodmill/internal/quality"
)

// Rendition is one selected profile with its assigned output stream index.
type Rendition struct {
	Index   int
	Profile quality.Profile
}

// Plan is an ordered encode ladder. Stream indices are contiguous from 0 and
// follow catalog order, so index 0 is always the lowest resolution selected.
type Plan struct {
	Renditions []Rendition
}

// ArgOptions carries the transcoder tuning values composed into plan arguments.
type ArgOptions struct {
	Preset         string
	CRF            int
	SegmentSeconds int
}

// BuildPlan selects catalog entries by requested name, preserving catalog
// order regardless of request order. An empty request selects the full
// catalog. A non-empty request matching nothing falls back to the single
// lowest profile. Unknown names are ignored; planning never fails.
func BuildPlan(profiles []quality.Profile, requested []string) Plan {
	var selected []quality.Profile
	if len(requested) == 0 {
		selected = profiles
	} else {
		want := make(map[string]struct{}, len(requested))
		for _, name := range requested {
			want[strings.TrimSpace(name)] = struct{}{}
		}
		for _, p := range profiles {
			if _, ok := want[p.Name]; ok {
				selected = append(selected, p)
			}
		}
		if len(selected) == 0 && len(profiles) > 0 {
			selected = profiles[:1]
		}
	}

	plan := Plan{Renditions: make([]Rendition, len(selected))}
	for i, p := range selected {
		plan.Renditions[i] = Rendition{Index: i, Profile: p}
	}
	return plan
}

// VariantMap composes the ffmpeg var_stream_map value pairing each video
// stream with its audio stream in selection order.
func (p Plan) VariantMap() string {
	pairs := make([]string, len(p.Renditions))
	for i, r := range p.Renditions {
		pairs[i] = fmt.Sprintf("v:%d,a:%d", r.Index, r.Index)
	}
	return strings.Join(pairs, " ")
}

// Names returns the selected profile names in stream-index order.
func (p Plan) Names() []string {
	names := make([]string, len(p.Renditions))
	for i, r := range p.Renditions {
		names[i] = r.Profile.Name
	}
	return names
}

// Args composes the full single-batch ffmpeg invocation for this plan:
// the sole video and audio input streams are mapped once per rendition,
// each rendition scaled to its target height (aspect preserved, even width)
// with bitrate and buffer ceilings applied, and all renditions segmented
// into a VOD HLS set with independent segments, per-variant playlists, and
// a master playlist.
func (p Plan) Args(inputPath, outputDir string, opts ArgOptions) []string {
	args := []string{"-i", inputPath}

	for range p.Renditions {
		args = append(args, "-map", "0:v:0", "-map", "0:a:0")
	}

	args = append(args,
		"-c:v", "h264",
		"-crf", fmt.Sprintf("%d", opts.CRF),
		"-g", "48",
		"-keyint_min", "48",
		"-sc_threshold", "0",
		"-reset_timestamps", "1",
		"-preset", opts.Preset,
		"-c:a", "aac",
		"-ar", "48000",
	)

	for _, r := range p.Renditions {
		args = append(args,
			fmt.Sprintf("-filter:v:%d", r.Index), fmt.Sprintf("scale=w=-2:h=%d", r.Profile.Height),
			fmt.Sprintf("-maxrate:v:%d", r.Index), r.Profile.MaxRate,
			fmt.Sprintf("-bufsize:v:%d", r.Index), r.Profile.BufSize,
			fmt.Sprintf("-b:a:%d", r.Index), r.Profile.AudioRate,
		)
	}

	args = append(args,
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", opts.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_flags", "independent_segments",
		"-var_stream_map", p.VariantMap(),
		"-master_pl_name", "master.m3u8",
		"-hls_segment_filename", filepath.Join(outputDir, "v%v_segment%d.ts"),
		filepath.Join(outputDir, "v%v_code.m3u8"),
	)

	return args
}
