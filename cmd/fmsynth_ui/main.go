package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/cbegin/fmsynth-go"
	"github.com/cbegin/fmsynth-go/internal/fm"
	"github.com/cbegin/fmsynth-go/internal/input"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

const (
	windowW      = 1000
	windowH      = 660
	minWindowW   = 860
	minWindowH   = 560
	uiSampleRate = 48000

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale

	pianoH  = 190
	statusH = 36
	rowH    = 44
	pad     = 12
)

var (
	bgColor     = color.RGBA{192, 192, 192, 255}
	panelColor  = color.RGBA{192, 192, 192, 255}
	borderColor = color.RGBA{128, 128, 128, 255}

	// 3D bevel colors for old-school embossed look.
	bevelLight  = color.RGBA{255, 255, 255, 255}
	bevelDarker = color.RGBA{64, 64, 64, 255}

	sunkenBgColor   = color.RGBA{24, 24, 32, 255}
	sliderFillColor = color.RGBA{0, 0, 128, 255}

	whiteKeyColor = color.RGBA{236, 236, 228, 255}
	blackKeyColor = color.RGBA{20, 20, 24, 255}
	keyDownColor  = color.RGBA{80, 200, 255, 255}
	onColor       = color.RGBA{0, 128, 0, 255}
)

// pianoKeys lists the on-screen keys in layout order; the letters match
// input.Keyboard's row, one semitone apart from C.
var pianoKeys = []struct {
	letter rune
	key    ebiten.Key
	black  bool
}{
	{'a', ebiten.KeyA, false},
	{'w', ebiten.KeyW, true},
	{'s', ebiten.KeyS, false},
	{'e', ebiten.KeyE, true},
	{'d', ebiten.KeyD, false},
	{'f', ebiten.KeyF, false},
	{'t', ebiten.KeyT, true},
	{'g', ebiten.KeyG, false},
	{'y', ebiten.KeyY, true},
	{'h', ebiten.KeyH, false},
	{'u', ebiten.KeyU, true},
	{'j', ebiten.KeyJ, false},
	{'k', ebiten.KeyK, false},
	{'o', ebiten.KeyO, true},
	{'l', ebiten.KeyL, false},
}

var controlKeys = map[ebiten.Key]rune{
	ebiten.KeyZ: 'z',
	ebiten.KeyX: 'x',
}

type game struct {
	synth    *fmsynth.Synth
	scope    *scope
	keys     *input.Keyboard
	scopeImg *ebiten.Image
	levels   []float64 // smoothed band levels

	volume      float64
	chorusDepth float64
	sustain     bool

	dragging   int // 0=none, 1=volume, 2=octave, 3=chorus depth
	mouseNote  int // -1 when the mouse is not playing
	down       map[int]int
	pressedBuf []ebiten.Key

	status    string
	statusErr bool

	textCache map[string]*ebiten.Image
	viewW     int
	viewH     int
}

func newGame(synth *fmsynth.Synth, sc *scope, chorusDepth float64) *game {
	return &game{
		synth:       synth,
		scope:       sc,
		keys:        input.NewKeyboard(),
		volume:      synth.Volume(),
		chorusDepth: chorusDepth,
		mouseNote:   -1,
		down:        make(map[int]int),
		status:      "Ready",
		textCache:   make(map[string]*ebiten.Image, 256),
		viewW:       windowW,
		viewH:       windowH,
	}
}

func (g *game) Update() error {
	g.handleKeys()
	g.handleMouse()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()

	g.drawButton(screen, l.chorus, g.chorusLabel())
	g.drawSlider(screen, l.depth, fmt.Sprintf("Chorus %d%%", int(g.chorusDepth*100+0.5)), g.chorusDepth, false)
	g.drawSlider(screen, l.volume, fmt.Sprintf("Vol %d%%", int(g.volume*100+0.5)), g.volume, false)
	octFrac := float64(g.keys.Octave()-input.MinOctave) / float64(input.MaxOctave-input.MinOctave)
	g.drawSlider(screen, l.octave, fmt.Sprintf("Oct %+d", g.keys.Octave()), octFrac, true)
	drawPanel(screen, l.spectrum, color.Black, true)
	g.drawSpectrum(screen, l.spectrum)
	g.drawPiano(screen, l.piano)
	drawPanel(screen, l.status, sunkenBgColor, true)
	g.drawStatus(screen, l.status)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	if outsideW < minWindowW {
		outsideW = minWindowW
	}
	if outsideH < minWindowH {
		outsideH = minWindowH
	}
	g.viewW = outsideW
	g.viewH = outsideH
	return outsideW, outsideH
}

func (g *game) Close() {
	// Nothing drains the queue once the window is gone, so never block here.
	for note := range g.down {
		g.synth.TrySend(fm.NoteOff(note))
	}
	_ = g.synth.Stop()
}

type uiLayout struct {
	chorus, depth, volume, octave image.Rectangle
	spectrum, piano, status       image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	w := g.viewW - 2*pad
	btnW := 150
	sliderW := (w - btnW - 3*pad) / 3
	x := pad
	var l uiLayout
	l.chorus = image.Rect(x, pad, x+btnW, pad+rowH)
	x += btnW + pad
	l.depth = image.Rect(x, pad, x+sliderW, pad+rowH)
	x += sliderW + pad
	l.volume = image.Rect(x, pad, x+sliderW, pad+rowH)
	x += sliderW + pad
	l.octave = image.Rect(x, pad, g.viewW-pad, pad+rowH)

	l.status = image.Rect(pad, g.viewH-pad-statusH, g.viewW-pad, g.viewH-pad)
	l.piano = image.Rect(pad, l.status.Min.Y-pad-pianoH, g.viewW-pad, l.status.Min.Y-pad)
	l.spectrum = image.Rect(pad, pad+rowH+pad, g.viewW-pad, l.piano.Min.Y-pad)
	return l
}

func (g *game) handleKeys() {
	g.pressedBuf = inpututil.AppendJustPressedKeys(g.pressedBuf[:0])
	for _, k := range g.pressedBuf {
		if k == ebiten.KeySpace {
			g.setSustain(true)
			continue
		}
		if r, ok := controlKeys[k]; ok {
			g.keys.KeyDown(r)
			g.setStatus(fmt.Sprintf("Octave: %+d", g.keys.Octave()))
			continue
		}
		if r, ok := letterFor(k); ok {
			if msg, ok := g.keys.KeyDown(r); ok {
				g.send(msg)
			}
		}
	}
	g.pressedBuf = inpututil.AppendJustReleasedKeys(g.pressedBuf[:0])
	for _, k := range g.pressedBuf {
		if k == ebiten.KeySpace {
			g.setSustain(false)
			continue
		}
		if r, ok := letterFor(k); ok {
			if msg, ok := g.keys.KeyUp(r); ok {
				g.send(msg)
			}
		}
	}
}

func letterFor(k ebiten.Key) (rune, bool) {
	for _, pk := range pianoKeys {
		if pk.key == k {
			return pk.letter, true
		}
	}
	return 0, false
}

func (g *game) setSustain(down bool) {
	if g.sustain == down {
		return
	}
	g.sustain = down
	g.send(fm.Sustain(down))
}

// send forwards msg to the synth and tracks which notes are down for the
// piano display.
func (g *game) send(msg fm.Message) {
	switch msg.Kind {
	case fm.MessageNoteOn:
		g.down[msg.Note]++
	case fm.MessageNoteOff:
		if g.down[msg.Note] <= 1 {
			delete(g.down, msg.Note)
		} else {
			g.down[msg.Note]--
		}
	}
	if !g.synth.TrySend(msg) {
		g.setError("control queue full; dropped " + msg.String())
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.chorus):
			g.synth.SetChorusEnabled(!g.synth.ChorusEnabled())
			g.setStatus(g.chorusLabel())
		case pointInRect(mx, my, l.depth):
			g.dragging = 3
		case pointInRect(mx, my, l.volume):
			g.dragging = 1
		case pointInRect(mx, my, l.octave):
			g.dragging = 2
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.dragging = 0
		g.playMouseNote(-1)
		return
	}
	switch g.dragging {
	case 1:
		g.volume = sliderValue(mx, l.volume)
		g.synth.SetVolume(g.volume)
		g.setStatus(fmt.Sprintf("Volume: %d%%", int(g.volume*100+0.5)))
	case 2:
		frac := sliderValue(mx, l.octave)
		oct := int(math.Round(frac*float64(input.MaxOctave-input.MinOctave))) + input.MinOctave
		g.keys.ShiftOctave(oct - g.keys.Octave())
		g.setStatus(fmt.Sprintf("Octave: %+d", g.keys.Octave()))
	case 3:
		g.chorusDepth = sliderValue(mx, l.depth)
		g.synth.SetChorusDepth(float32(g.chorusDepth))
		g.setStatus(fmt.Sprintf("Chorus depth: %d%%", int(g.chorusDepth*100+0.5)))
	default:
		// Dragging across the piano glides from key to key.
		if i, ok := g.pianoKeyAt(mx, my, l.piano); ok {
			note, _ := g.keys.Note(pianoKeys[i].letter)
			g.playMouseNote(note)
		} else {
			g.playMouseNote(-1)
		}
	}
}

func (g *game) playMouseNote(note int) {
	if note == g.mouseNote {
		return
	}
	if g.mouseNote >= 0 {
		g.send(fm.NoteOff(g.mouseNote))
	}
	g.mouseNote = note
	if note >= 0 {
		g.send(fm.NoteOn(note, input.KeyboardVelocity))
	}
}

func (g *game) chorusLabel() string {
	if g.synth.ChorusEnabled() {
		return "Chorus on"
	}
	return "Chorus off"
}

// whiteCount is the number of white keys in pianoKeys.
func whiteCount() int {
	n := 0
	for _, pk := range pianoKeys {
		if !pk.black {
			n++
		}
	}
	return n
}

// keyRects returns the on-screen rectangle of each piano key.
func keyRects(rect image.Rectangle) []image.Rectangle {
	inner := image.Rect(rect.Min.X+8, rect.Min.Y+8, rect.Max.X-8, rect.Max.Y-8)
	whiteW := inner.Dx() / whiteCount()
	blackW := whiteW * 3 / 5
	blackH := inner.Dy() * 3 / 5
	rects := make([]image.Rectangle, len(pianoKeys))
	white := 0
	for i, pk := range pianoKeys {
		if pk.black {
			x := inner.Min.X + white*whiteW - blackW/2
			rects[i] = image.Rect(x, inner.Min.Y, x+blackW, inner.Min.Y+blackH)
			continue
		}
		x := inner.Min.X + white*whiteW
		rects[i] = image.Rect(x, inner.Min.Y, x+whiteW, inner.Max.Y)
		white++
	}
	return rects
}

func (g *game) pianoKeyAt(mx, my int, rect image.Rectangle) (int, bool) {
	rects := keyRects(rect)
	// Black keys sit on top.
	for i, pk := range pianoKeys {
		if pk.black && pointInRect(mx, my, rects[i]) {
			return i, true
		}
	}
	for i, pk := range pianoKeys {
		if !pk.black && pointInRect(mx, my, rects[i]) {
			return i, true
		}
	}
	return 0, false
}

func (g *game) drawPiano(screen *ebiten.Image, rect image.Rectangle) {
	drawPanel(screen, rect, sunkenBgColor, true)
	rects := keyRects(rect)
	for _, black := range []bool{false, true} {
		for i, pk := range pianoKeys {
			if pk.black != black {
				continue
			}
			r := rects[i]
			fill := whiteKeyColor
			if black {
				fill = blackKeyColor
			}
			if note, _ := g.keys.Note(pk.letter); g.down[note] > 0 {
				fill = keyDownColor
			}
			drawPanel(screen, r, fill, false)
			label := string(pk.letter - 'a' + 'A')
			g.drawText(screen, label, r.Min.X+(r.Dx()-charW)/2, r.Max.Y-lineH-6)
		}
	}
}

// drawSpectrum shows the waveform above log-spaced spectrum bands, both
// taken from what the device is playing now.
func (g *game) drawSpectrum(screen *ebiten.Image, rect image.Rectangle) {
	inner := rect.Inset(8)
	w, h := inner.Dx(), inner.Dy()
	if w < 4 || h < 8 {
		return
	}
	if g.scopeImg == nil || g.scopeImg.Bounds().Size() != inner.Size() {
		g.scopeImg = ebiten.NewImage(w, h)
	}
	g.scopeImg.Fill(color.RGBA{14, 16, 22, 255})

	frames := g.scope.heard(scopeWindow, g.synth.PlaybackPosition())
	waveH := h * 2 / 5
	g.drawWaveform(g.scopeImg, frames, w, waveH)
	ebitenutil.DrawRect(g.scopeImg, 0, float64(waveH), float64(w), 1, color.RGBA{50, 54, 68, 180})
	g.drawBands(g.scopeImg, frames, w, waveH+1, h-waveH-1)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(inner.Min.X), float64(inner.Min.Y))
	screen.DrawImage(g.scopeImg, op)
}

// drawWaveform plots the most recent frames, starting at a rising zero
// crossing so a steady tone stands still. Full scale fills the strip.
func (g *game) drawWaveform(dst *ebiten.Image, frames []float32, w, h int) {
	start := 0
	for i := 1; i < len(frames)/2; i++ {
		if frames[i-1] <= 0 && frames[i] > 0 {
			start = i
			break
		}
	}
	shown := frames[start:]
	if w > len(shown) {
		w = len(shown)
	}
	mid := float64(h) / 2
	y := func(v float32) float64 { return mid - clamp(float64(v), -1, 1)*(mid-1) }
	lineColor := color.RGBA{80, 200, 255, 220}
	for px := 1; px < w; px++ {
		a := shown[(px-1)*len(shown)/w]
		b := shown[px*len(shown)/w]
		ebitenutil.DrawLine(dst, float64(px-1), y(a), float64(px), y(b), lineColor)
	}
}

func (g *game) drawBands(dst *ebiten.Image, frames []float32, w, top, h int) {
	count := min(max(w/4, 16), 192)
	levels := g.scope.bands(frames, count)
	if len(g.levels) != count {
		g.levels = make([]float64, count)
	}
	barW := float64(w) / float64(count)
	for i, v := range levels {
		// Rise quickly, fall slowly.
		if v > g.levels[i] {
			g.levels[i] = v
		} else {
			g.levels[i] += (v - g.levels[i]) * 0.12
		}
		barH := math.Max(g.levels[i]*float64(h-2), 1)
		r, gr, b := spectrumColor(g.levels[i])
		ebitenutil.DrawRect(dst, float64(i)*barW+1, float64(top+h)-barH, barW-1, barH, color.RGBA{r, gr, b, 220})
	}
}

func spectrumColor(v float64) (uint8, uint8, uint8) {
	if v < 0.33 {
		t := v / 0.33
		return uint8(30 + 20*t), uint8(80 + 120*t), uint8(200 + 55*t)
	}
	if v < 0.66 {
		t := (v - 0.33) / 0.33
		return uint8(50 + 140*t), uint8(200 + 30*t), uint8(255 - 100*t)
	}
	t := (v - 0.66) / 0.34
	return uint8(190 + 65*t), uint8(230 - 100*t), uint8(155 - 100*t)
}

func (g *game) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	sustain := "up"
	if g.sustain {
		sustain = "down"
	}
	msg := fmt.Sprintf("Voices %d  Pedal %s  %s", g.synth.ActiveVoiceCount(), sustain, g.status)
	if g.statusErr {
		msg = "ERROR - " + g.status
	}
	maxChars := max(8, (rect.Dx()-16)/charW)
	g.drawText(screen, shortenEnd(msg, maxChars), rect.Min.X+8, rect.Min.Y+6)
}

const sliderLabelW = 150

func sliderTrack(rect image.Rectangle) (x, w int) {
	return rect.Min.X + sliderLabelW, rect.Dx() - sliderLabelW - 16
}

func sliderValue(mx int, rect image.Rectangle) float64 {
	trackX, trackW := sliderTrack(rect)
	if trackW <= 0 {
		return 0
	}
	return clamp(float64(mx-trackX)/float64(trackW), 0, 1)
}

// drawSlider draws a labelled horizontal slider with its knob at frac. A
// centered slider marks the middle of the track instead of filling it.
func (g *game) drawSlider(screen *ebiten.Image, rect image.Rectangle, label string, frac float64, centered bool) {
	drawPanel(screen, rect, panelColor, false)
	g.drawText(screen, label, rect.Min.X+8, rect.Min.Y+8)

	trackX, trackW := sliderTrack(rect)
	trackY := rect.Min.Y + rect.Dy()/2 - 4
	if trackW < 20 {
		return
	}
	// Sunken track groove.
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW), 8, bevelDarker)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW-1), 1, borderColor)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), 1, 7, borderColor)

	fillW := int(float64(trackW) * clamp(frac, 0, 1))
	if centered {
		centerX := trackX + trackW/2
		ebitenutil.DrawRect(screen, float64(centerX)-1, float64(trackY-2), 2, 12, borderColor)
	} else if fillW > 2 {
		ebitenutil.DrawRect(screen, float64(trackX+1), float64(trackY+1), float64(fillW-1), 6, sliderFillColor)
	}
	knobX := min(max(trackX+fillW-5, trackX-5), trackX+trackW-5)
	drawPanel(screen, image.Rect(knobX, trackY-4, knobX+10, trackY+12), panelColor, false)
}

func (g *game) setError(msg string) {
	g.status = msg
	g.statusErr = true
}

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func (g *game) drawButton(screen *ebiten.Image, rect image.Rectangle, label string) {
	drawPanel(screen, rect, panelColor, false)
	if g.synth.ChorusEnabled() {
		ebitenutil.DrawRect(screen, float64(rect.Min.X+6), float64(rect.Min.Y+6), 6, float64(rect.Dy()-12), onColor)
	}
	labelW := len([]rune(label)) * charW
	g.drawText(screen, label, rect.Min.X+(rect.Dx()-labelW)/2, rect.Min.Y+(rect.Dy()-lineH)/2)
}

// drawPanel fills rect and gives it a two-pixel bevel, raised or sunken.
func drawPanel(screen *ebiten.Image, rect image.Rectangle, fill color.Color, sunken bool) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w, h, fill)
	light, dark, inner := color.Color(bevelLight), color.Color(bevelDarker), color.Color(borderColor)
	if sunken {
		light, dark = borderColor, bevelLight
		inner = bevelDarker
	}
	ebitenutil.DrawRect(screen, x, y, w-1, 1, light)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, light)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, dark)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, dark)
	if sunken {
		ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, inner)
		ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, inner)
		return
	}
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, inner)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, inner)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x int, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		img = ebiten.NewImage(max(1, len([]rune(msg))*7), 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 1000 {
			g.textCache = make(map[string]*ebiten.Image, 256)
		}
		g.textCache[msg] = img
	}
	// Embossed shadow.
	opS := &ebiten.DrawImageOptions{}
	opS.GeoM.Scale(textScale, textScale)
	opS.GeoM.Translate(float64(x+2), float64(y+2))
	opS.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, opS)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

func shortenEnd(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return string(r[:max(0, maxChars)])
	}
	return string(r[:maxChars-3]) + "..."
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}

func main() {
	var (
		voices      = flag.Int("voices", 8, "maximum simultaneous voices")
		port        = flag.String("midi", "", "MIDI input port name (empty = all inputs)")
		noMIDI      = flag.Bool("no-midi", false, "do not listen for MIDI input")
		chorusDepth = flag.Float64("chorus-depth", 0.1, "initial chorus sweep depth (0..1)")
	)
	flag.Parse()
	defer midi.CloseDriver()

	sc := newScope(uiSampleRate)
	synth, err := fmsynth.New(uiSampleRate,
		fmsynth.WithPolyphony(*voices),
		fmsynth.WithChorus(true, float32(*chorusDepth)),
		fmsynth.WithSampleTap(sc.Tap),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := synth.Start(); err != nil {
		log.Fatal(err)
	}
	g := newGame(synth, sc, clamp(*chorusDepth, 0, 1))
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if !*noMIDI {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		go func() {
			err := input.ListenMIDI(ctx, *port, synth, logger)
			if err != nil && !errors.Is(err, input.ErrNoMIDIInput) {
				logger.Error("MIDI input", "err", err)
			}
		}()
	}

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
	ebiten.SetWindowTitle("fmsynth-go")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
