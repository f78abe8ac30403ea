package fmsynth

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	intaudio "github.com/cbegin/fmsynth-go/internal/audio"
	intfx "github.com/cbegin/fmsynth-go/internal/effects"
	intfm "github.com/cbegin/fmsynth-go/internal/fm"
)

const (
	DefaultBlockSize = 128
	DefaultQueueSize = 1024
)

type Option func(*config)

type config struct {
	params      intfm.Params
	blockSize   int
	queueSize   int
	volume      float64
	effects     bool
	chorus      bool
	chorusDepth float32
	bufferSize  time.Duration
	sampleTap   func([]float32)
}

func defaultConfig() config {
	return config{
		params:      intfm.DefaultParams(),
		blockSize:   DefaultBlockSize,
		queueSize:   DefaultQueueSize,
		volume:      1,
		effects:     true,
		chorus:      true,
		chorusDepth: 0.1,
	}
}

// WithParams replaces the engine parameters: polyphony, headroom, patch and
// algorithm.
func WithParams(params intfm.Params) Option {
	return func(cfg *config) {
		cfg.params = params
	}
}

func WithPolyphony(voices int) Option {
	return func(cfg *config) {
		cfg.params.Polyphony = voices
	}
}

// WithBlockSize sets the number of frames rendered between control message
// drains.
func WithBlockSize(frames int) Option {
	return func(cfg *config) {
		cfg.blockSize = frames
	}
}

// WithQueueSize sets the capacity of the control message queue.
func WithQueueSize(n int) Option {
	return func(cfg *config) {
		cfg.queueSize = n
	}
}

func WithVolume(volume float64) Option {
	return func(cfg *config) {
		cfg.volume = volume
	}
}

func WithChorus(enabled bool, depth float32) Option {
	return func(cfg *config) {
		cfg.chorus = enabled
		cfg.chorusDepth = depth
	}
}

// WithEffects turns the chorus, reverb and limiter on or off. With effects
// off the output is the engine's, scaled only by the volume.
func WithEffects(enabled bool) Option {
	return func(cfg *config) {
		cfg.effects = enabled
	}
}

// WithBufferSize sets the audio device buffer length used by Start.
func WithBufferSize(d time.Duration) Option {
	return func(cfg *config) {
		cfg.bufferSize = d
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *config) {
		cfg.sampleTap = tap
	}
}

// Synth is a playable instrument: an FM engine fed by a control message queue
// and followed by the effects chain. Control methods may be called from any
// goroutine; Process must only be called from one goroutine at a time.
type Synth struct {
	mu         sync.Mutex
	sampleRate int
	blockSize  int
	engine     *intfm.Engine
	queue      chan intfm.Message
	chain      *intfx.Chain
	chorus     *intfx.Chorus
	chorusOn   *intfx.Switch
	gain       *intfx.Gain
	active     atomic.Int32
	sampleTap  func([]float32)
	bufferSize time.Duration
	audio      *intaudio.Player
}

func New(sampleRate int, opts ...Option) (*Synth, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.blockSize <= 0 {
		return nil, errors.New("block size must be positive")
	}
	if cfg.queueSize <= 0 {
		return nil, errors.New("queue size must be positive")
	}
	engine, err := intfm.New(sampleRate, cfg.params)
	if err != nil {
		return nil, err
	}
	s := &Synth{
		sampleRate: sampleRate,
		blockSize:  cfg.blockSize,
		engine:     engine,
		queue:      make(chan intfm.Message, cfg.queueSize),
		gain:       intfx.NewGain(float32(cfg.volume)),
		sampleTap:  cfg.sampleTap,
		bufferSize: cfg.bufferSize,
	}
	if cfg.effects {
		s.chorus = intfx.NewChorus(sampleRate, 2, 0, cfg.chorusDepth, 2, 180, 0.5)
		s.chorusOn = intfx.NewSwitch(s.chorus, cfg.chorus)
		s.chain = intfx.NewChain(
			s.chorusOn,
			intfx.NewReverb(sampleRate, 0.5, 0.01, 0.3),
			s.gain,
			intfx.NewLimiter(sampleRate, -20),
		)
	} else {
		s.chain = intfx.NewChain(s.gain)
	}
	return s, nil
}

func (s *Synth) SampleRate() int { return s.sampleRate }

func (s *Synth) BlockSize() int { return s.blockSize }

// Send queues a control message for the next block. It blocks while the
// queue is full.
func (s *Synth) Send(msg intfm.Message) {
	s.queue <- msg
}

// TrySend queues msg unless the queue is full.
func (s *Synth) TrySend(msg intfm.Message) bool {
	select {
	case s.queue <- msg:
		return true
	default:
		return false
	}
}

func (s *Synth) NoteOn(note, velocity int) { s.Send(intfm.NoteOn(note, velocity)) }

func (s *Synth) NoteOff(note int) { s.Send(intfm.NoteOff(note)) }

func (s *Synth) Sustain(down bool) { s.Send(intfm.Sustain(down)) }

func (s *Synth) SetVoices(n int) { s.Send(intfm.SetVoices(n)) }

// ApplyMessage applies msg immediately, bypassing the queue. Only the
// goroutine that calls Process may use it.
func (s *Synth) ApplyMessage(msg intfm.Message) {
	s.engine.ApplyMessage(msg)
}

// SetVolume sets the output gain. 1.0 is default.
func (s *Synth) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	s.gain.Set(float32(volume))
}

func (s *Synth) Volume() float64 { return float64(s.gain.Value()) }

// SetChorusEnabled routes the signal through the chorus or straight to the
// reverb. It has no effect when effects are off.
func (s *Synth) SetChorusEnabled(enabled bool) {
	if s.chorusOn != nil {
		s.chorusOn.SetEnabled(enabled)
	}
}

func (s *Synth) ChorusEnabled() bool {
	return s.chorusOn != nil && s.chorusOn.Enabled()
}

// SetChorusDepth sets the chorus sweep depth, 0..1.
func (s *Synth) SetChorusDepth(depth float32) {
	if s.chorus != nil {
		s.chorus.SetDepth(depth)
	}
}

// ActiveVoiceCount returns the number of sounding voices as of the last
// rendered block. Safe to call from any goroutine.
func (s *Synth) ActiveVoiceCount() int {
	return int(s.active.Load())
}

// Process fills dst with interleaved stereo samples. The buffer is rendered
// in blocks of BlockSize frames; queued control messages are applied before
// each block.
func (s *Synth) Process(dst []float32) {
	out := dst
	for len(dst) >= 2 {
		n := s.blockSize * 2
		if n > len(dst)&^1 {
			n = len(dst) &^ 1
		}
		s.drain()
		block := dst[:n]
		s.engine.RenderBlock(block)
		s.chain.ProcessBuffer(block)
		s.active.Store(int32(s.engine.ActiveVoiceCount()))
		dst = dst[n:]
	}
	if len(dst) == 1 {
		dst[0] = 0
	}
	if s.sampleTap != nil {
		s.sampleTap(out)
	}
}

// drain applies queued messages in arrival order. At most one queue's worth
// is taken per block so a busy producer cannot stall rendering.
func (s *Synth) drain() {
	for i := 0; i < cap(s.queue); i++ {
		select {
		case msg := <-s.queue:
			s.engine.ApplyMessage(msg)
		default:
			return
		}
	}
}

// Start opens the audio device and begins playback.
func (s *Synth) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audio != nil {
		return nil
	}
	backend, err := intaudio.NewPlayer(s.sampleRate, s, s.bufferSize)
	if err != nil {
		return err
	}
	s.audio = backend
	s.audio.Play()
	return nil
}

// Stop halts playback and releases the audio player.
func (s *Synth) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audio == nil {
		return nil
	}
	err := s.audio.Stop()
	s.audio = nil
	return err
}

// PlaybackPosition returns the number of frames the audio device has played
// since Start, or 0 when stopped.
func (s *Synth) PlaybackPosition() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audio == nil {
		return 0
	}
	return int64(s.audio.Position().Seconds() * float64(s.sampleRate))
}

func (s *Synth) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio != nil && s.audio.IsPlaying()
}
