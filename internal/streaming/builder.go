// Package streaming drives the external FFmpeg encoder: argument
// construction, process lifecycle, frame delivery, and the autosend
// scheduler.
package streaming

import (
	"fmt"
)

// alphaBitrateRatio is the share of the total bitrate given to the
// extracted alpha plane on non-opaque streams; the RGB plane gets the
// rest.
const alphaBitrateRatio = 0.2

// Params describes one streaming run, assembled from the client's
// start-streaming request plus server-side context.
type Params struct {
	FPS         float32
	BitrateMbit float32
	Port        uint16
	Opaque      bool
	Autosend    bool
	ClientIP    string
	Width       int
	Height      int
	FFmpegBin   string
}

// BuildArgs assembles the FFmpeg argument list for p. Raw BGRA frames
// arrive on stdin; the compressed stream goes to the client over TCP.
// Opaque streams encode a single plane at the full bitrate; alpha-carrying
// streams vflip before splitting into an RGB plane and an extracted alpha
// plane with an 80/20 bitrate split.
func BuildArgs(p Params) []string {
	args := []string{
		"-y",
		"-f:v", "rawvideo",
		"-c:v", "rawvideo",
		"-s", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-pix_fmt", "bgra",
		"-r", fmt.Sprintf("%.3f", p.FPS),
		"-an",
		"-i", "-",
	}

	if p.Opaque {
		args = append(args,
			"-vf", "vflip",
			"-b:v", fmt.Sprintf("%.3fM", p.BitrateMbit),
		)
	} else {
		rgbBitrate := p.BitrateMbit * (1 - alphaBitrateRatio)
		alphaBitrate := p.BitrateMbit * alphaBitrateRatio
		args = append(args,
			"-filter_complex", "[0:v]vflip,split=2[rgbout][alphain];[alphain]alphaextract[alphaout]",
			"-map", "[rgbout]",
			"-map", "[alphaout]",
			"-b:v:0", fmt.Sprintf("%.3fM", rgbBitrate),
			"-b:v:1", fmt.Sprintf("%.3fM", alphaBitrate),
		)
	}

	args = append(args,
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264",
		"-tune", "zerolatency",
		"-preset", "fast",
		"-refs", "1",
		"-intra-refresh", "1",
		"-profile:v", "high",
		"-level", "4.1",
		"-f", "avi",
		fmt.Sprintf("tcp://%s:%d", p.ClientIP, p.Port),
	)

	return args
}

// FrameSize returns the expected byte length of one raw BGRA frame.
func (p Params) FrameSize() int {
	return p.Width * p.Height * 4
}
