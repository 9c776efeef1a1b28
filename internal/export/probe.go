package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var ffprobeLookPath = exec.LookPath

// Probe is what ffprobe reports about a written recording.
type Probe struct {
	Width    int
	Height   int
	FPS      float64
	Duration time.Duration
	Codec    string
	HasAudio bool
}

type ffprobeResult struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeOutput inspects an exported file with ffprobe.
func ProbeOutput(ctx context.Context, path string) (Probe, error) {
	ffprobe, err := ffprobeLookPath("ffprobe")
	if err != nil {
		return Probe{}, fmt.Errorf("ffprobe not found")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	).Output()
	if err != nil {
		return Probe{}, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (Probe, error) {
	var res ffprobeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return Probe{}, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	var p Probe
	sec, _ := strconv.ParseFloat(res.Format.Duration, 64)
	p.Duration = time.Duration(sec * float64(time.Second))

	seenVideo := false
	for _, s := range res.Streams {
		switch s.CodecType {
		case "audio":
			p.HasAudio = true
		case "video":
			if seenVideo {
				continue
			}
			seenVideo = true
			p.Width, p.Height, p.Codec = s.Width, s.Height, s.CodecName
			p.FPS = parseFraction(s.AvgFrameRate)
			if p.FPS <= 0 {
				p.FPS = parseFraction(s.RFrameRate)
			}
		}
	}
	if !seenVideo {
		return p, fmt.Errorf("no video stream")
	}
	return p, nil
}

// parseFraction parses "num/den" (or a plain number) into a float64.
func parseFraction(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
