// internal/audio/wavfile.go
package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

var (
	// ErrInvalidWAV indicates the file is not a readable WAV file
	ErrInvalidWAV = errors.New("invalid WAV file")
	// ErrInvalidBlockSize indicates the requested block size must be positive
	ErrInvalidBlockSize = errors.New("block size must be positive")
)

// ReadWAVBlocks decodes a WAV file into the same fixed-size timestamped
// Block stream the live capture produces. Multi-channel files are reduced
// to mono by averaging before the samples reach the core; a trailing
// partial block is discarded. Returns the blocks and the file's sample rate.
func ReadWAVBlocks(path string, blockSize int) ([]Block, int, error) {
	if blockSize <= 0 {
		return nil, 0, ErrInvalidBlockSize
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read pcm: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, 0, fmt.Errorf("%s: no channels: %w", path, ErrInvalidWAV)
	}
	sampleRate := buf.Format.SampleRate
	if sampleRate <= 0 {
		return nil, 0, fmt.Errorf("%s: no sample rate: %w", path, ErrInvalidWAV)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	mono, err := normalizeMono(buf.Data, channels, bitDepth)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}

	frames := len(mono)
	blocks := make([]Block, 0, frames/blockSize)
	for start := 0; start+blockSize <= frames; start += blockSize {
		blocks = append(blocks, Block{
			Samples:   mono[start : start+blockSize],
			Timestamp: float64(start) / float64(sampleRate),
		})
	}

	return blocks, sampleRate, nil
}

// normalizeMono scales integer PCM to [-1, 1] floats, averaging the
// channels down to one. A file can report a zero bit depth in both its
// format chunk and its PCM buffer; that is rejected rather than shifted by.
func normalizeMono(data []int, channels, bitDepth int) ([]float32, error) {
	if bitDepth <= 0 || bitDepth > 64 {
		return nil, fmt.Errorf("unusable bit depth %d: %w", bitDepth, ErrInvalidWAV)
	}
	scale := float32(uint64(1) << (bitDepth - 1))

	frames := len(data) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(data[i*channels+ch]) / scale
		}
		mono[i] = sum / float32(channels)
	}
	return mono, nil
}
