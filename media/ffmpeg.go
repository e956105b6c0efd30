package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// FFmpeg opens video backgrounds with the ffmpeg/ffprobe binaries. Frames are
// extracted one at a time at a playback offset.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
}

// NewFFmpeg resolves both binaries on PATH unless absolute paths are given.
func NewFFmpeg(ffmpegPath, ffprobePath, tempDir string) (*FFmpeg, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	ff, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	fp, err := exec.LookPath(ffprobePath)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}
	return &FFmpeg{ffmpegPath: ff, ffprobePath: fp, tempDir: tempDir}, nil
}

// Open spools data to a temporary file (ffmpeg needs to seek) and probes it.
func (f *FFmpeg) Open(ctx context.Context, data []byte) (VideoStream, error) {
	tmp, err := os.CreateTemp(f.tempDir, "background-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	s := &ffmpegStream{ffmpegPath: f.ffmpegPath, input: tmp.Name()}
	if err := f.probe(ctx, s); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	return s, nil
}

// probeResult matches the parts of ffprobe's JSON output we read.
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

func (f *FFmpeg) probe(ctx context.Context, s *ffmpegStream) error {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		s.input,
	}
	out, err := exec.CommandContext(ctx, f.ffprobePath, args...).Output()
	if err != nil {
		return fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(out, s)
}

func parseProbe(out []byte, s *ffmpegStream) error {
	var probe probeResult
	if err := json.Unmarshal(out, &probe); err != nil {
		return fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		s.duration = time.Duration(dur * float64(time.Second))
	}
	for _, stream := range probe.Streams {
		if stream.CodecType == "video" {
			s.width, s.height = stream.Width, stream.Height
			return nil
		}
	}
	return fmt.Errorf("no video stream found")
}

type ffmpegStream struct {
	ffmpegPath    string
	input         string
	width, height int
	duration      time.Duration
}

func (s *ffmpegStream) Size() (int, int) {
	return s.width, s.height
}

func (s *ffmpegStream) Duration() time.Duration {
	return s.duration
}

func (s *ffmpegStream) FrameAt(ctx context.Context, t time.Duration) (image.Image, error) {
	args := []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(t.Seconds(), 'f', 3, 64),
		"-i", s.input,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction failed: %w: %s", err, stderr.String())
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

func (s *ffmpegStream) Close() error {
	if err := os.Remove(s.input); err != nil && !os.IsNotExist(err) {
		logrus.WithFields(logrus.Fields{"path": s.input, "error": err}).Warn("failed to remove temp video")
		return err
	}
	return nil
}
