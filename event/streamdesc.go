package event

// StreamKind identifies the media type of a detected stream.
type StreamKind string

const (
	StreamVideo    StreamKind = "video"
	StreamAudio    StreamKind = "audio"
	StreamSubtitle StreamKind = "subtitle"
	StreamData     StreamKind = "data"
)

// Stream describes one detected input or output media stream. Instances are
// immutable once emitted; the set of input descriptors for a job is frozen
// before the first Progress event.
type Stream struct {
	ParentIndex int
	StreamIndex int
	Language    string
	Format      string
	Kind        StreamKind
	Video       *VideoStream
	Audio       *AudioStream
	Raw         string
}

// VideoStream carries the video-specific fields of a stream line.
type VideoStream struct {
	PixFmt string
	Width  int
	Height int
	FPS    float64
}

// AudioStream carries the audio-specific fields of a stream line.
type AudioStream struct {
	SampleRate int
	Channels   string
}

// IsVideo reports whether the stream is a video stream.
func (s *Stream) IsVideo() bool { return s != nil && s.Kind == StreamVideo }

// IsAudio reports whether the stream is an audio stream.
func (s *Stream) IsAudio() bool { return s != nil && s.Kind == StreamAudio }

// IsSubtitle reports whether the stream is a subtitle stream.
func (s *Stream) IsSubtitle() bool { return s != nil && s.Kind == StreamSubtitle }
