package audio

import (
	"encoding/base64"
	"fmt"
)

// Speech payloads carry no format header; the service contract is fixed.
const (
	SpeechSampleRate = 24000
	SpeechChannels   = 1
)

// DecodeError marks malformed audio input: bad base64, empty byte
// streams, or an impossible channel layout.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("audio decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Buffer holds normalized samples, one slice per channel.
type Buffer struct {
	SampleRate uint
	Channels   [][]float32
}

// Frames returns the number of frames per channel.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// DecodeBase64 decodes a standard base64 payload into raw bytes.
func DecodeBase64(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &DecodeError{Reason: "malformed base64", Err: err}
	}
	return data, nil
}

// DecodePCM interprets data as interleaved signed 16-bit little-endian
// samples and produces per-channel float32 buffers normalized by 1/32768.
// A trailing partial frame is dropped silently. Empty input or a zero
// channel count is a DecodeError.
func DecodePCM(data []byte, sampleRate, channels uint) (*Buffer, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty pcm payload"}
	}
	if channels == 0 {
		return nil, &DecodeError{Reason: "zero channel count"}
	}

	frameCount := len(data) / 2 / int(channels)
	buf := &Buffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for c := range buf.Channels {
		buf.Channels[c] = make([]float32, frameCount)
	}

	for i := 0; i < frameCount; i++ {
		for c := 0; c < int(channels); c++ {
			off := (i*int(channels) + c) * 2
			raw := int16(uint16(data[off]) | uint16(data[off+1])<<8)
			buf.Channels[c][i] = float32(raw) / 32768.0
		}
	}
	return buf, nil
}

// DecodeSpeech decodes a base64 speech payload at the fixed service
// format (24000 Hz mono s16le).
func DecodeSpeech(payload string) (*Buffer, error) {
	data, err := DecodeBase64(payload)
	if err != nil {
		return nil, err
	}
	return DecodePCM(data, SpeechSampleRate, SpeechChannels)
}
