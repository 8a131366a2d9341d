// Package command builds ffmpeg argument lists and spawns them as
// supervised children.
//
// The builder is a thin, ordered veneer over raw arguments: every helper
// appends flags in call order, and Args is always available for anything
// the helpers do not cover.
package command

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/child"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/sidecar"
)

// Builder accumulates ffmpeg arguments.
type Builder struct {
	binary    string
	args      []string
	spawnOpts []child.Option
}

// New returns a builder bound to the preferred ffmpeg binary: the sidecar
// directory next to the current executable when present, otherwise whatever
// PATH offers, otherwise the bare name.
func New() *Builder {
	return &Builder{binary: defaultBinary()}
}

// NewWithPath returns a builder bound to an explicit ffmpeg binary.
func NewWithPath(path string) *Builder {
	return &Builder{binary: path}
}

func defaultBinary() string {
	name := "ffmpeg" + sidecar.ExeSuffix()
	if p, err := sidecar.Path("ffmpeg"); err == nil {
		if info, statErr := os.Stat(p); statErr == nil && sidecar.IsExecutable(info) {
			return p
		}
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return name
}

// Binary returns the ffmpeg executable the builder will spawn.
func (b *Builder) Binary() string { return b.binary }

// Args appends raw arguments verbatim.
func (b *Builder) Args(args ...string) *Builder {
	b.args = append(b.args, args...)
	return b
}

// Input appends an input URL: -i url.
func (b *Builder) Input(url string) *Builder {
	return b.Args("-i", url)
}

// Output appends an output URL. Use "-" to write to stdout.
func (b *Builder) Output(url string) *Builder {
	return b.Args(url)
}

// PipeStdout directs output to stdout.
func (b *Builder) PipeStdout() *Builder {
	return b.Output("-")
}

// Overwrite allows clobbering existing output files: -y.
func (b *Builder) Overwrite() *Builder {
	return b.Args("-y")
}

// NoOverwrite refuses to clobber existing output files: -n.
func (b *Builder) NoOverwrite() *Builder {
	return b.Args("-n")
}

// Format sets the container or device format for the next input or output.
func (b *Builder) Format(format string) *Builder {
	return b.Args("-f", format)
}

// Codec sets the codec for all streams: -c codec.
func (b *Builder) Codec(codec string) *Builder {
	return b.Args("-c", codec)
}

// VideoCodec sets the video codec: -c:v codec.
func (b *Builder) VideoCodec(codec string) *Builder {
	return b.Args("-c:v", codec)
}

// AudioCodec sets the audio codec: -c:a codec.
func (b *Builder) AudioCodec(codec string) *Builder {
	return b.Args("-c:a", codec)
}

// Duration limits the duration of data read or written: -t.
func (b *Builder) Duration(d time.Duration) *Builder {
	return b.Args("-t", strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
}

// Seek sets the input start position: -ss.
func (b *Builder) Seek(position string) *Builder {
	return b.Args("-ss", position)
}

// Frames stops writing after n video frames: -frames:v.
func (b *Builder) Frames(n int) *Builder {
	return b.Args("-frames:v", strconv.Itoa(n))
}

// Rate sets the frame rate: -r.
func (b *Builder) Rate(fps float64) *Builder {
	return b.Args("-r", strconv.FormatFloat(fps, 'f', -1, 64))
}

// Size sets the frame size: -s WxH.
func (b *Builder) Size(width, height int) *Builder {
	return b.Args("-s", fmt.Sprintf("%dx%d", width, height))
}

// Crf sets the constant rate factor for quality-targeted encodes.
func (b *Builder) Crf(crf int) *Builder {
	return b.Args("-crf", strconv.Itoa(crf))
}

// Preset selects an encoder preset.
func (b *Builder) Preset(preset string) *Builder {
	return b.Args("-preset", preset)
}

// Map adds a stream mapping: -map spec.
func (b *Builder) Map(spec string) *Builder {
	return b.Args("-map", spec)
}

// NoVideo disables video recording: -vn.
func (b *Builder) NoVideo() *Builder {
	return b.Args("-vn")
}

// NoAudio disables audio recording: -an.
func (b *Builder) NoAudio() *Builder {
	return b.Args("-an")
}

// HideBanner suppresses the copyright banner.
func (b *Builder) HideBanner() *Builder {
	return b.Args("-hide_banner")
}

// TestInput appends a synthetic lavfi test source, handy for demos and
// smoke tests with no media files at hand.
func (b *Builder) TestInput() *Builder {
	return b.Args("-f", "lavfi", "-i", "testsrc=duration=10")
}

// Rawvideo emits uncompressed rgb24 frames to stdout.
func (b *Builder) Rawvideo() *Builder {
	return b.Args("-f", "rawvideo", "-pix_fmt", "rgb24", "-")
}

// Build returns a copy of the accumulated argument list.
func (b *Builder) Build() []string {
	out := make([]string, len(b.args))
	copy(out, b.args)
	return out
}

// String renders the full command line for logging.
func (b *Builder) String() string {
	return b.binary + " " + strings.Join(b.args, " ")
}

// SpawnOptions attaches child process options applied by Spawn and Run.
func (b *Builder) SpawnOptions(opts ...child.Option) *Builder {
	b.spawnOpts = append(b.spawnOpts, opts...)
	return b
}

// Spawn starts the ffmpeg process with the accumulated arguments.
func (b *Builder) Spawn(opts ...child.Option) (*child.Handle, error) {
	all := append(append([]child.Option{}, b.spawnOpts...), opts...)
	return child.Spawn(b.binary, b.Build(), all...)
}

// Run spawns the process and immediately opens its event stream.
func (b *Builder) Run(ctx context.Context, opts ...child.StreamOption) (*child.Handle, *child.Stream, error) {
	handle, err := b.Spawn()
	if err != nil {
		return nil, nil, err
	}
	stream, err := handle.Stream(ctx, opts...)
	if err != nil {
		_ = handle.Kill()
		return nil, nil, err
	}
	return handle, stream, nil
}
