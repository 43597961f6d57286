package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// VideoInfo describes the first video stream of a file.
type VideoInfo struct {
	FPS             float64 `json:"fps"`
	TotalFrames     int     `json:"total_frames"`
	DurationSeconds float64 `json:"duration_sec"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
}

type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execCommandRunner struct{}

func (execCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running %s %s: %w: %s", name, strings.Join(args, " "), err,
			strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// FFmpegSampler samples frames by seeking with the ffmpeg CLI and reads stream
// information with ffprobe.
type FFmpegSampler struct {
	ffmpeg  string
	ffprobe string
	runner  commandRunner
	logger  *zap.Logger
}

// NewFFmpegSampler returns a sampler using the given binaries. Empty names
// resolve to "ffmpeg" and "ffprobe" on PATH.
func NewFFmpegSampler(ffmpegPath, ffprobePath string, logger *zap.Logger) *FFmpegSampler {
	return newFFmpegSampler(ffmpegPath, ffprobePath, logger, execCommandRunner{})
}

func newFFmpegSampler(ffmpegPath, ffprobePath string, logger *zap.Logger, runner commandRunner) *FFmpegSampler {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegSampler{ffmpeg: ffmpegPath, ffprobe: ffprobePath, runner: runner, logger: logger}
}

// Probe reads stream information for path.
func (s *FFmpegSampler) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	if err := CheckFile(path); err != nil {
		return nil, err
	}
	out, err := s.runner.Run(ctx, s.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate,r_frame_rate,nb_frames,duration:format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, lenserr.Wrap(err, lenserr.CodeVideoProbeFailure, "failed to probe video", lenserr.FieldPath(path))
	}
	info, err := parseProbe(out)
	if err != nil {
		return nil, lenserr.Wrap(err, lenserr.CodeVideoProbeFailure, "failed to parse ffprobe output", lenserr.FieldPath(path))
	}
	return info, nil
}

// Sample implements FrameSampler.
func (s *FFmpegSampler) Sample(ctx context.Context, path string, intervalSeconds float64) ([]image.Image, error) {
	duration, err := s.duration(ctx, path)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return []image.Image{}, nil
	}
	times := SampleTimes(duration, intervalSeconds)
	s.logger.Info("sampling video",
		zap.String("path", path),
		zap.Float64("duration_sec", duration),
		zap.Float64("interval_sec", intervalSeconds),
		zap.Int("num_frames", len(times)),
	)
	return s.framesAt(ctx, path, times)
}

// SampleCount returns n frames spaced evenly across the video.
func (s *FFmpegSampler) SampleCount(ctx context.Context, path string, n int) ([]image.Image, error) {
	if n <= 0 {
		return nil, lenserr.New(lenserr.CodeEngineInvalidInput, lenserr.ErrInvalidInput,
			"frame count must be positive", lenserr.Field("count", n))
	}
	duration, err := s.duration(ctx, path)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return []image.Image{}, nil
	}
	return s.framesAt(ctx, path, evenTimes(duration, n))
}

// duration probes path for sampling. A missing file or a cancelled context is
// an error. A file ffprobe cannot read, or one without a video stream, has an
// unknown duration and yields 0.
func (s *FFmpegSampler) duration(ctx context.Context, path string) (float64, error) {
	if err := CheckFile(path); err != nil {
		return 0, err
	}
	info, err := s.Probe(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		s.logger.Warn("video unreadable", zap.String("path", path), zap.Error(err))
		return 0, nil
	}
	if info.DurationSeconds <= 0 {
		s.logger.Warn("video duration unknown", zap.String("path", path))
		return 0, nil
	}
	return info.DurationSeconds, nil
}

// framesAt grabs the first frame at or after each timestamp. Frames that fail
// to decode are skipped.
func (s *FFmpegSampler) framesAt(ctx context.Context, path string, times []float64) ([]image.Image, error) {
	frames := make([]image.Image, 0, len(times))
	for _, t := range times {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := s.runner.Run(ctx, s.ffmpeg,
			"-v", "error",
			"-ss", strconv.FormatFloat(t, 'f', 3, 64),
			"-i", path,
			"-frames:v", "1",
			"-f", "image2pipe",
			"-vcodec", "png",
			"-",
		)
		if err == nil && len(out) == 0 {
			err = fmt.Errorf("no frame at %.3fs", t)
		}
		if err != nil {
			s.logger.Debug("frame extraction failed", zap.String("path", path), zap.Float64("time_sec", t), zap.Error(err))
			continue
		}
		img, err := png.Decode(bytes.NewReader(out))
		if err != nil {
			s.logger.Debug("frame decode failed", zap.String("path", path), zap.Float64("time_sec", t), zap.Error(err))
			continue
		}
		frames = append(frames, img)
	}
	if len(frames) == 0 {
		s.logger.Warn("no frames extracted", zap.String("path", path))
	}
	return frames, nil
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbe(data []byte) (*VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("no video stream")
	}
	st := out.Streams[0]
	info := &VideoInfo{Width: st.Width, Height: st.Height}
	info.FPS = parseRate(st.AvgFrameRate)
	if info.FPS == 0 {
		info.FPS = parseRate(st.RFrameRate)
	}
	info.TotalFrames, _ = strconv.Atoi(st.NbFrames)

	// Stream duration first, then the container's, then frames over rate.
	switch {
	case parseSeconds(st.Duration) > 0:
		info.DurationSeconds = parseSeconds(st.Duration)
	case parseSeconds(out.Format.Duration) > 0:
		info.DurationSeconds = parseSeconds(out.Format.Duration)
	case info.TotalFrames > 0 && info.FPS > 0:
		info.DurationSeconds = float64(info.TotalFrames) / info.FPS
	}
	return info, nil
}

// parseRate parses ffprobe rationals such as "30000/1001". "0/0" yields 0.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseSeconds(s)
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
