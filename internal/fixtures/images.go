// Package fixtures generates small in-memory images for tests.
package fixtures

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
)

// PNG encodes a width x height gradient. Encoding into memory cannot fail
// for a valid RGBA image, so an error panics.
func PNG(width, height int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(width, height)); err != nil {
		panic("fixtures: encode png: " + err.Error())
	}
	return buf.Bytes()
}

func JPEG(width, height int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(width, height), &jpeg.Options{Quality: 80}); err != nil {
		panic("fixtures: encode jpeg: " + err.Error())
	}
	return buf.Bytes()
}

// Text is plain ASCII that no image sniffer accepts.
func Text() []byte {
	return []byte("this is not an image, just some text pretending to be one\n")
}

func gradient(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}
