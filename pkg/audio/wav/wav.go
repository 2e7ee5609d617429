// Package wav encodes and decodes minimal single-channel RIFF/WAVE containers.
//
// Encode produces the exact 44-byte-header layout the browser client plays
// back directly: linear PCM, 16-bit, mono. Parse walks RIFF chunks instead of
// assuming a fixed header size because TTS servers pad their output with
// LIST/INFO chunks of varying length.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// headerSize is the byte length of the canonical RIFF/fmt/data header emitted
// by Encode.
const headerSize = 44

// ErrNotWAV is returned by Parse when the input is not a RIFF/WAVE container.
var ErrNotWAV = errors.New("wav: not a RIFF/WAVE container")

// Encode converts float32 mono samples in the range [-1.0, 1.0] into a
// self-contained WAV byte buffer (44-byte header + little-endian int16 PCM).
// Samples outside [-1, 1] are clamped; they never wrap.
//
// The output is exactly 44 + 2*len(samples) bytes. A non-positive sample rate
// is a caller bug and returns an error rather than producing a corrupt header.
func Encode(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}

	dataLen := len(samples) * 2
	buf := make([]byte, headerSize+dataLen)

	// RIFF chunk.
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk: 16-byte PCM format block.
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // linear PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample

	// data sub-chunk.
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(sampleToInt16(s)))
	}
	return buf, nil
}

// sampleToInt16 clamps s to [-1, 1] and scales to the int16 range. Scaling by
// 32767 keeps +1.0 and -1.0 symmetric around zero without overflow, except
// that values at or below -1.0 map to -32768 to use the full negative range.
func sampleToInt16(s float32) int16 {
	if s >= 1.0 {
		return 32767
	}
	if s <= -1.0 {
		return -32768
	}
	return int16(s * 32767)
}

// Info holds the format metadata extracted from a RIFF/WAVE header.
type Info struct {
	SampleRate int // samples per second (e.g., 16000, 22050, 48000)
	Channels   int // 1 = mono, 2 = stereo
	DataOffset int // byte offset of the first PCM sample
	DataLen    int // byte length of the PCM payload
}

// Parse scans the RIFF chunks in wav and returns the audio format from the
// "fmt " sub-chunk plus the location of the "data" payload.
//
// Returns [ErrNotWAV] if the RIFF/WAVE preamble is missing and a descriptive
// error if the fmt or data chunk cannot be located.
func Parse(wav []byte) (Info, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return Info{}, ErrNotWAV
	}

	var (
		info     Info
		foundFmt bool
	)

	// Walk chunks starting after the 12-byte RIFF/WAVE preamble. Chunks are
	// word-aligned: odd sizes are padded by one byte.
	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(wav) {
				fmtData := wav[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				foundFmt = true
			}
		case "data":
			if !foundFmt {
				return Info{}, errors.New("wav: data chunk before fmt chunk")
			}
			info.DataOffset = offset + 8
			info.DataLen = min(chunkSize, len(wav)-info.DataOffset)
			return info, nil
		}

		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return Info{}, errors.New("wav: missing data chunk")
}

// DecodeSamples converts 16-bit signed little-endian PCM to float32 samples
// normalised to [-1.0, 1.0]. Any trailing odd byte is ignored.
func DecodeSamples(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// DecodeMono converts multi-channel 16-bit PCM to mono float32 by averaging
// all channels per frame. With channels <= 1 it is equivalent to
// [DecodeSamples].
func DecodeMono(pcm []byte, channels int) []float32 {
	if channels <= 1 {
		return DecodeSamples(pcm)
	}
	frames := len(pcm) / (2 * channels)
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float32(sample) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// ResampleMono resamples float32 mono samples from srcRate to dstRate using
// linear interpolation. If the rates match (or either is non-positive) the
// input is returned unchanged.
func ResampleMono(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) < 2 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstLen {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}
