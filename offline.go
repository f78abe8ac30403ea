package fmsynth

import (
	"encoding/binary"
	"math"

	intseq "github.com/cbegin/fmsynth-go/internal/sequencer"
)

// maxOpenRender bounds an open-ended render past the last event, for scores
// that leave a note sustained forever.
const maxOpenRender = 60.0

// RenderScore renders score offline. The score's sample rate and block size
// override any given in opts. With seconds > 0 exactly that much audio is
// returned; otherwise rendering stops half a second after the last event has
// been applied and every voice has finished.
func RenderScore(score *intseq.Score, seconds float64, opts ...Option) ([]float32, error) {
	sampleRate := score.SampleRate
	if sampleRate <= 0 {
		sampleRate = intseq.DefaultSampleRate
	}
	blockSize := score.BlockSize
	if blockSize <= 0 {
		blockSize = intseq.DefaultBlockSize
	}
	opts = append(opts[:len(opts):len(opts)], WithBlockSize(blockSize))
	synth, err := New(sampleRate, opts...)
	if err != nil {
		return nil, err
	}
	seq := intseq.NewWithOptions(&intseq.Score{
		SampleRate: sampleRate,
		BlockSize:  blockSize,
		Events:     score.Events,
	}, synth, intseq.Options{})

	if seconds > 0 {
		out := make([]float32, int(float64(sampleRate)*seconds)*2)
		seq.Process(out)
		return out, nil
	}

	limit := int64((score.Duration() + maxOpenRender) * float64(sampleRate))
	block := make([]float32, blockSize*2)
	var out []float32
	for !seq.Done() && seq.Frame() < limit {
		seq.Process(block)
		out = append(out, block...)
	}
	return out, nil
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
