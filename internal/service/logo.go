package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"kanaliiga-observer/internal/constants"
	"kanaliiga-observer/internal/domain"
	"math"
	"strconv"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

// labelBackground is the translucent tile drawn behind the team number.
var labelBackground = color.NRGBA{R: 0, G: 0, B: 0, A: 0x7f}

// DecodeLogo decodes png, jpeg, gif or webp data into a non-premultiplied
// RGBA bitmap.
func DecodeLogo(data []byte) (*image.NRGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}
	return toNRGBA(img), nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// DominantColor returns the most frequent exact RGBA value among pixels that
// are not fully transparent, as 8 uppercase hex digits. Ties go to the value
// seen first. Bitmaps without such pixels yield domain.DefaultTeamColor.
func DominantColor(img *image.NRGBA) string {
	counts := make(map[[4]uint8]int)
	var order [][4]uint8

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			if row[i+3] == 0 {
				continue
			}
			key := [4]uint8{row[i], row[i+1], row[i+2], row[i+3]}
			if counts[key] == 0 {
				order = append(order, key)
			}
			counts[key]++
		}
	}

	if len(order) == 0 {
		return domain.DefaultTeamColor
	}
	best := order[0]
	for _, key := range order[1:] {
		if counts[key] > counts[best] {
			best = key
		}
	}
	return fmt.Sprintf("%02X%02X%02X%02X", best[0], best[1], best[2], best[3])
}

// Labeler stamps team numbers onto logos. It is safe for concurrent use.
type Labeler struct {
	// mu guards face; glyph rasterisation reuses buffers inside it.
	mu   sync.Mutex
	face font.Face
}

func NewLabeler() (*Labeler, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse label font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    constants.LabelFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create label face: %w", err)
	}
	return &Labeler{face: face}, nil
}

// Label composites the team number on a dark square in the bottom-right
// corner of logo and returns the PNG encoding. The square's edge is the logo
// width divided by sqrt(3).
func (l *Labeler) Label(logo *image.NRGBA, teamNumber int) ([]byte, error) {
	out := image.NewNRGBA(image.Rect(0, 0, logo.Bounds().Dx(), logo.Bounds().Dy()))
	draw.Draw(out, out.Bounds(), logo, logo.Bounds().Min, draw.Src)

	size := int(math.Round(float64(out.Bounds().Dx()) / math.Sqrt(3)))
	if size > 0 {
		tile := l.tile(strconv.Itoa(teamNumber), size)
		at := image.Pt(out.Bounds().Dx()-size, out.Bounds().Dy()-size)
		draw.Draw(out, image.Rectangle{Min: at, Max: at.Add(tile.Bounds().Size())}, tile, image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode labeled logo: %w", err)
	}
	return buf.Bytes(), nil
}

// tile renders text cropped to its ink, scaled to fit size x size and
// centred on the translucent background.
func (l *Labeler) tile(text string, size int) *image.NRGBA {
	bg := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(bg, bg.Bounds(), image.NewUniform(labelBackground), image.Point{}, draw.Src)

	glyphs := l.render(text)
	if glyphs == nil {
		return bg
	}

	gw, gh := glyphs.Bounds().Dx(), glyphs.Bounds().Dy()
	scale := math.Min(float64(size)/float64(gw), float64(size)/float64(gh))
	w := max(1, int(math.Round(float64(gw)*scale)))
	h := max(1, int(math.Round(float64(gh)*scale)))

	x := (size - w) / 2
	y := (size - h) / 2
	xdraw.CatmullRom.Scale(bg, image.Rect(x, y, x+w, y+h), glyphs, glyphs.Bounds(), xdraw.Over, nil)
	return bg
}

// render draws text in white and crops the result to its non-transparent
// pixels. It returns nil when nothing was drawn.
func (l *Labeler) render(text string) *image.NRGBA {
	l.mu.Lock()
	defer l.mu.Unlock()

	metrics := l.face.Metrics()
	d := &font.Drawer{Face: l.face, Src: image.White}
	width := d.MeasureString(text).Ceil() + 2
	height := (metrics.Ascent + metrics.Descent).Ceil() + 2

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	d.Dst = canvas
	d.Dot = fixed.Point26_6{X: fixed.I(1), Y: metrics.Ascent + fixed.I(1)}
	d.DrawString(text)

	ink := opaqueBounds(canvas)
	if ink.Empty() {
		return nil
	}
	return toNRGBA(canvas.SubImage(ink))
}

func opaqueBounds(img *image.NRGBA) image.Rectangle {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X, b.Min.Y
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.NRGBAAt(x, y).A == 0 {
				continue
			}
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x+1), max(maxY, y+1)
		}
	}
	return image.Rectangle{Min: image.Pt(minX, minY), Max: image.Pt(maxX, maxY)}
}
