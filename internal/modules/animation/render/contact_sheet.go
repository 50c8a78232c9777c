package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	sheetThumbWidth = 320
	sheetMaxFrames  = 16
	sheetPadding    = 8
	sheetCaption    = 36
)

var (
	faceOnce sync.Once
	faceErr  error
	sheetFnt *truetype.Font
)

func captionFace(size float64) (font.Face, error) {
	faceOnce.Do(func() {
		sheetFnt, faceErr = truetype.Parse(goregular.TTF)
	})
	if faceErr != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", faceErr)
	}
	return truetype.NewFace(sheetFnt, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}

// ContactSheet lays out up to 16 evenly sampled frames in a grid with a caption strip
// and returns the PNG bytes.
func ContactSheet(framePaths []string, caption string) ([]byte, error) {
	if len(framePaths) == 0 {
		return nil, errors.New("no frames")
	}
	picked := pickEvenly(framePaths, sheetMaxFrames)

	thumbs := make([]image.Image, 0, len(picked))
	thumbH := 0
	for _, p := range picked {
		img, err := loadImage(p)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		if b.Dx() == 0 || b.Dy() == 0 {
			continue
		}
		h := int(math.Round(float64(b.Dy()) * sheetThumbWidth / float64(b.Dx())))
		dst := image.NewRGBA(image.Rect(0, 0, sheetThumbWidth, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		thumbs = append(thumbs, dst)
		if h > thumbH {
			thumbH = h
		}
	}
	if len(thumbs) == 0 {
		return nil, errors.New("frames have no pixels")
	}

	cols := int(math.Ceil(math.Sqrt(float64(len(thumbs)))))
	rows := int(math.Ceil(float64(len(thumbs)) / float64(cols)))
	width := cols*sheetThumbWidth + (cols+1)*sheetPadding
	height := rows*thumbH + (rows+1)*sheetPadding + sheetCaption

	dc := gg.NewContext(width, height)
	dc.SetColor(color.NRGBA{R: 18, G: 18, B: 24, A: 255})
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()

	for i, t := range thumbs {
		x := sheetPadding + (i%cols)*(sheetThumbWidth+sheetPadding)
		y := sheetPadding + (i/cols)*(thumbH+sheetPadding)
		dc.DrawImage(t, x, y)
	}

	if caption != "" {
		face, err := captionFace(18)
		if err != nil {
			return nil, err
		}
		dc.SetFontFace(face)
		dc.SetColor(color.White)
		dc.DrawStringAnchored(caption, float64(width)/2, float64(height-sheetCaption/2), 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pickEvenly(paths []string, n int) []string {
	if len(paths) <= n {
		return paths
	}
	out := make([]string, 0, n)
	step := float64(len(paths)-1) / float64(n-1)
	for i := 0; i < n; i++ {
		out = append(out, paths[int(math.Round(float64(i)*step))])
	}
	return out
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
