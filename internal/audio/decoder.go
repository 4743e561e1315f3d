package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// pcm is decoded audio before conversion: interleaved, normalized to [-1, 1].
type pcm struct {
	samples  []float32
	rate     int
	channels int
}

type decodeFunc func(r io.ReadSeeker) (*pcm, error)

var decoders = map[string]decodeFunc{
	".wav":  decodeWAV,
	".wave": decodeWAV,
	".aif":  decodeAIFF,
	".aiff": decodeAIFF,
	".mp3":  decodeMP3,
	".ogg":  decodeVorbis,
	".oga":  decodeVorbis,
}

// Supported reports whether name has an extension Decode understands.
func Supported(name string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Decode reads a whole segment from r. The format is picked from the extension
// of name. The result is converted to stereo and resampled to SampleRate.
func Decode(name string, r io.ReadSeeker) (*Clip, error) {
	ext := strings.ToLower(filepath.Ext(name))
	dec, ok := decoders[ext]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
	p, err := dec(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if p.channels <= 0 || p.rate <= 0 || len(p.samples) < p.channels {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptySegment)
	}

	stereo := toStereo(p.samples, p.channels)
	if p.rate != SampleRate {
		stereo = resample(stereo, p.rate, SampleRate)
	}

	out := make([]int16, len(stereo))
	for i, v := range stereo {
		out[i] = floatToSample(v)
	}
	return &Clip{Name: name, Samples: out}, nil
}

func decodeWAV(r io.ReadSeeker) (*pcm, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a wav file: %w", ErrUnsupportedFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || buf.Format == nil {
		return nil, ErrEmptySegment
	}
	bitDepth := int(d.BitDepth)
	samples := intsToFloats(buf.Data, bitDepth)
	if bitDepth == 8 {
		// 8-bit wav is unsigned.
		for i := range samples {
			samples[i] -= 1
		}
	}
	return &pcm{samples: samples, rate: buf.Format.SampleRate, channels: buf.Format.NumChannels}, nil
}

func decodeAIFF(r io.ReadSeeker) (*pcm, error) {
	d := aiff.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not an aiff file: %w", ErrUnsupportedFormat)
	}
	d.ReadInfo()
	format := d.Format()
	if format == nil {
		return nil, ErrEmptySegment
	}

	var data []int
	buf := &goaudio.IntBuffer{Data: make([]int, 4096), Format: format}
	for {
		n, err := d.PCMBuffer(buf)
		data = append(data, buf.Data[:n]...)
		if err == io.EOF || n == 0 {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return &pcm{samples: intsToFloats(data, int(d.BitDepth)), rate: format.SampleRate, channels: format.NumChannels}, nil
}

// decodeMP3 always yields stereo 16-bit little endian.
func decodeMP3(r io.ReadSeeker) (*pcm, error) {
	d, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, err
	}
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
	}
	return &pcm{samples: samples, rate: d.SampleRate(), channels: 2}, nil
}

func decodeVorbis(r io.ReadSeeker) (*pcm, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &pcm{samples: samples, rate: format.SampleRate, channels: format.Channels}, nil
}

func intsToFloats(data []int, bitDepth int) []float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v) / scale
	}
	return out
}

// toStereo duplicates mono and keeps the first two channels of anything wider.
func toStereo(samples []float32, channels int) []float32 {
	if channels == Channels {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames*Channels)
	for i := 0; i < frames; i++ {
		l := samples[i*channels]
		r := l
		if channels > 1 {
			r = samples[i*channels+1]
		}
		out[i*Channels] = l
		out[i*Channels+1] = r
	}
	return out
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
