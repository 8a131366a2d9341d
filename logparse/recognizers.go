package logparse

import (
	"strconv"
	"strings"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/event"
)

// stripInfo removes a leading "[info]" marker and surrounding whitespace.
// FFmpeg prefixes every line with its level when -loglevel level is active.
func stripInfo(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[info]")
	return strings.TrimSpace(s)
}

// ParseVersion extracts the build version from the banner line, typically the
// very first line of output:
//
//	ffmpeg version 6.0-full_build-www.gyan.dev Copyright (c) 2000-2023 ...
func ParseVersion(line string) (string, bool) {
	rest, ok := strings.CutPrefix(stripInfo(line), "ffmpeg version ")
	if !ok {
		return "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

// ParseConfiguration extracts the build flags line, typically 20-30+ flags:
//
//	configuration: --enable-gpl --enable-version3 --enable-static
func ParseConfiguration(line string) ([]string, bool) {
	rest, ok := strings.CutPrefix(stripInfo(line), "configuration: ")
	if !ok {
		return nil, false
	}
	return strings.Fields(rest), true
}

// ParseInput recognizes the start of an input section:
//
//	Input #0, lavfi, from 'testsrc=duration=5':
func ParseInput(line string) (*event.Input, bool) {
	rest, ok := strings.CutPrefix(stripInfo(line), "Input #")
	if !ok {
		return nil, false
	}
	index, ok := leadingIndex(rest)
	if !ok {
		return nil, false
	}
	in := &event.Input{Index: index, Raw: line}
	if _, after, found := strings.Cut(rest, " from '"); found {
		if path, _, found := strings.Cut(after, "'"); found {
			in.Path = path
		}
	}
	return in, true
}

// ParseOutput recognizes the start of an output section:
//
//	Output #0, mp4, to 'test.mp4':
func ParseOutput(line string) (*event.Output, bool) {
	rest, ok := strings.CutPrefix(stripInfo(line), "Output #")
	if !ok {
		return nil, false
	}
	index, ok := leadingIndex(rest)
	if !ok {
		return nil, false
	}
	_, after, found := strings.Cut(rest, " to '")
	if !found {
		return nil, false
	}
	to, _, found := strings.Cut(after, "'")
	if !found {
		return nil, false
	}
	return &event.Output{Index: index, To: to, Raw: line}, true
}

// leadingIndex parses the section index from text like "0, mp4, to ...".
func leadingIndex(s string) (int, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	token, _, _ := strings.Cut(fields[0], ",")
	index, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return index, true
}

// ParseDuration recognizes a duration header inside an input section and
// returns seconds. "Duration: N/A" is not a match.
//
//	Duration: 00:00:05.00, start: 0.000000, bitrate: 16 kb/s
func ParseDuration(line string) (float64, bool) {
	rest, ok := strings.CutPrefix(stripInfo(line), "Duration:")
	if !ok {
		return 0, false
	}
	token, _, _ := strings.Cut(strings.TrimSpace(rest), ",")
	return ParseTimeSeconds(token)
}

// ParseTimeSeconds converts FFmpeg's HOURS:MM:SS.MILLISECONDS notation (or a
// bare number of seconds) to seconds. "N/A" and malformed values report false.
func ParseTimeSeconds(s string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, false
	}
	var seconds float64
	multiplier := 1.0
	negative := false
	for i := len(parts) - 1; i >= 0; i-- {
		token := parts[i]
		if i == 0 && strings.HasPrefix(token, "-") {
			negative = true
			token = strings.TrimPrefix(token, "-")
		}
		value, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return 0, false
		}
		seconds += value * multiplier
		multiplier *= 60
	}
	if negative {
		seconds = -seconds
	}
	return seconds, true
}

// ParseStream recognizes a stream specification line such as:
//
//	Stream #0:0: Video: wrapped_avframe, rgb24, 320x240 [SAR 1:1 DAR 4:3], 25 fps, 25 tbr, 25 tbn
//	Stream #0:1(eng): Audio: opus, 48000 Hz, stereo, fltp (default)
//	Stream #0:4(eng): Subtitle: ass (default) (forced)
//	Stream #0:2[0x3](eng): Data: bin_data (text / 0x74786574)
//
// Video and audio details are parsed best-effort: a stream whose detail
// portion cannot be understood still yields a descriptor, with the typed
// payload absent.
func ParseStream(line string) (*event.Stream, bool) {
	rest, ok := strings.CutPrefix(stripInfo(line), "Stream #")
	if !ok {
		return nil, false
	}
	parts := splitTopLevel(rest)
	if len(parts) == 0 {
		return nil, false
	}

	head := strings.SplitN(parts[0], ":", 4)
	if len(head) < 4 {
		return nil, false
	}
	parent, err := strconv.Atoi(strings.TrimSpace(head[0]))
	if err != nil {
		return nil, false
	}

	// The index token can look like "2[0x3](eng)": strip bracketed ids,
	// then split off the language tag.
	indexToken := stripBrackets(head[1])
	indexPart, langPart, _ := strings.Cut(indexToken, "(")
	streamIndex, err := strconv.Atoi(strings.TrimSpace(indexPart))
	if err != nil {
		return nil, false
	}
	language := strings.TrimSuffix(strings.TrimSpace(langPart), ")")

	kindToken := strings.TrimSpace(head[2])
	format := firstToken(head[3])
	if format == "" {
		return nil, false
	}

	stream := &event.Stream{
		ParentIndex: parent,
		StreamIndex: streamIndex,
		Language:    language,
		Format:      format,
		Raw:         line,
	}
	switch kindToken {
	case "Video":
		stream.Kind = event.StreamVideo
		stream.Video = parseVideoDetails(parts[1:])
	case "Audio":
		stream.Kind = event.StreamAudio
		stream.Audio = parseAudioDetails(parts[1:])
	case "Subtitle":
		stream.Kind = event.StreamSubtitle
	default:
		stream.Kind = event.StreamData
	}
	return stream, true
}

func parseVideoDetails(parts []string) *event.VideoStream {
	if len(parts) < 2 {
		return nil
	}
	pixFmt := firstToken(parts[0])
	dims := strings.Fields(strings.TrimSpace(parts[1]))
	if len(dims) == 0 {
		return nil
	}
	widthToken, heightToken, found := strings.Cut(dims[0], "x")
	if !found {
		return nil
	}
	width, errW := strconv.Atoi(widthToken)
	height, errH := strconv.Atoi(heightToken)
	if errW != nil || errH != nil {
		return nil
	}
	video := &event.VideoStream{PixFmt: pixFmt, Width: width, Height: height}
	// FPS is not necessarily the next part; scan for it.
	for _, part := range parts[2:] {
		trimmed := strings.TrimSpace(part)
		if !strings.HasSuffix(trimmed, "fps") {
			continue
		}
		token := firstToken(trimmed)
		if fps, err := strconv.ParseFloat(token, 64); err == nil {
			video.FPS = fps
		}
		break
	}
	return video
}

func parseAudioDetails(parts []string) *event.AudioStream {
	if len(parts) < 2 {
		return nil
	}
	rateToken := firstToken(parts[0])
	rate, err := strconv.Atoi(rateToken)
	if err != nil {
		return nil
	}
	return &event.AudioStream{
		SampleRate: rate,
		Channels:   strings.TrimSpace(parts[1]),
	}
}

// ParseProgress recognizes a progress update line:
//
//	frame= 1996 fps=1984 q=-1.0 Lsize=     372kB time=00:01:19.72 bitrate=  38.2kbits/s speed=79.2x
//
// A line qualifies when it carries both frame= and time= tokens. Individual
// fields degrade gracefully: whatever parses populates the event, the rest
// stays zero.
func ParseProgress(line string) (*event.Progress, bool) {
	s := stripInfo(line)
	if !strings.Contains(s, "frame=") || !strings.Contains(s, "time=") {
		return nil, false
	}

	progress := &event.Progress{Raw: line}
	if token, ok := valueAfter(s, "frame="); ok {
		if frame, err := strconv.ParseInt(token, 10, 64); err == nil {
			progress.Frame = frame
		}
	}
	if token, ok := valueAfter(s, "fps="); ok {
		if fps, err := strconv.ParseFloat(token, 64); err == nil {
			progress.FPS = fps
		}
	}
	if token, ok := valueAfter(s, "q="); ok {
		if q, err := strconv.ParseFloat(token, 64); err == nil {
			progress.Q = q
		}
	}
	// "size=" also catches "Lsize=", emitted on the final summary line.
	// FFmpeg 7.0 switched the unit suffix from kB to KiB.
	if token, ok := valueAfter(s, "size="); ok {
		token = strings.TrimSuffix(strings.TrimSuffix(token, "KiB"), "kB")
		if token == "N/A" {
			token = "0"
		}
		if size, err := strconv.ParseInt(token, 10, 64); err == nil {
			progress.SizeKB = size
		}
	}
	if token, ok := valueAfter(s, "time="); ok {
		progress.Time = token
		if seconds, ok := ParseTimeSeconds(token); ok {
			progress.Seconds = seconds
		}
	}
	if token, ok := valueAfter(s, "bitrate="); ok {
		token = strings.TrimSuffix(token, "kbits/s")
		if bitrate, err := strconv.ParseFloat(token, 64); err == nil {
			progress.BitrateKbps = bitrate
		}
	}
	if token, ok := valueAfter(s, "speed="); ok {
		token = strings.TrimSuffix(token, "x")
		if speed, err := strconv.ParseFloat(token, 64); err == nil {
			progress.Speed = speed
		}
	}
	return progress, true
}

// valueAfter returns the first whitespace-delimited token following key.
// FFmpeg pads values with spaces after the equals sign.
func valueAfter(s, key string) (string, bool) {
	_, after, found := strings.Cut(s, key)
	if !found {
		return "", false
	}
	fields := strings.Fields(after)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

// firstToken returns the leading token of s, cut at whitespace or an opening
// parenthesis, trimming trailing junk like "(Main)" or "(tv, progressive)".
func firstToken(s string) string {
	s = strings.TrimSpace(s)
	end := strings.IndexAny(s, " (")
	if end >= 0 {
		s = s[:end]
	}
	return s
}

// stripBrackets removes every [..] segment from s.
func stripBrackets(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// splitTopLevel splits s on commas that are not nested inside parentheses or
// brackets, so "yuv444p(tv, progressive), 320x240" stays two parts.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
