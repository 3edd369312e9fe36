// Package report renders the refresh summary image.
package report

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/worldfacts/countryd/internal/app/apperr"
	"github.com/worldfacts/countryd/internal/app/domain/country"
	"github.com/worldfacts/countryd/pkg/logger"
)

// FileName is the summary image name inside the configured directory. The
// file is overwritten on every refresh.
const FileName = "summary.png"

const (
	imageWidth  = 600
	imageHeight = 400
)

// ImageRenderer draws the status summary into a PNG on disk.
type ImageRenderer struct {
	dir string
	log *logger.Logger
}

// NewImageRenderer writes summary images into dir, creating it on demand.
func NewImageRenderer(dir string, log *logger.Logger) *ImageRenderer {
	if log == nil {
		log = logger.NewDefault("report")
	}
	return &ImageRenderer{dir: dir, log: log}
}

// Path returns where the summary image lives.
func (r *ImageRenderer) Path() string {
	return filepath.Join(r.dir, FileName)
}

// Render draws the status header and the top-5 GDP list, then writes the PNG.
// Failures come back as render errors; they never undo a committed refresh.
func (r *ImageRenderer) Render(status country.AppStatus, top []country.Country) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", apperr.Render(fmt.Errorf("create image dir: %w", err))
	}

	img := image.NewRGBA(image.Rect(0, 0, imageWidth, imageHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	y := 40
	drawText(img, 20, y, "Country Data Summary")
	y += 40

	drawText(img, 20, y, fmt.Sprintf("Total Countries: %d", status.TotalCountries))
	y += 30

	refreshed := "Never"
	if status.LastRefreshed != nil {
		refreshed = status.LastRefreshed.UTC().Format("2006-01-02 15:04:05 UTC")
	}
	drawText(img, 20, y, fmt.Sprintf("Last Refresh: %s", refreshed))
	y += 50

	drawText(img, 20, y, "Top 5 by Estimated GDP:")
	y += 30

	for i, rec := range top {
		gdp := "N/A"
		if rec.EstimatedGDP != nil {
			gdp = fmt.Sprintf("$%.2f", *rec.EstimatedGDP)
		}
		drawText(img, 30, y, fmt.Sprintf("%d. %s (%s)", i+1, rec.Name, gdp))
		y += 25
	}

	path := r.Path()
	f, err := os.Create(path)
	if err != nil {
		return "", apperr.Render(fmt.Errorf("create image file: %w", err))
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return "", apperr.Render(fmt.Errorf("encode png: %w", err))
	}

	r.log.WithField("path", path).Info("summary image generated")
	return path, nil
}

func drawText(dst draw.Image, x, y int, text string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
