package frame

import (
	"image"
	"io"

	"github.com/pkg/errors"
)

// BytesPerPixel is fixed by the rgb24 preview format.
const BytesPerPixel = 3

// RawFrame is one rgb24 frame exactly Width*Height*3 bytes long.
type RawFrame struct {
	Width, Height int
	Data          []byte
}

// RGBA expands the frame into an image.RGBA with opaque alpha.
func (f RawFrame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Data); i, j = i+BytesPerPixel, j+4 {
		img.Pix[j] = f.Data[i]
		img.Pix[j+1] = f.Data[i+1]
		img.Pix[j+2] = f.Data[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// Gray converts the frame to 8-bit luma using BT.601 weights.
func (f RawFrame) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Data); i, j = i+BytesPerPixel, j+1 {
		r, g, b := uint32(f.Data[i]), uint32(f.Data[i+1]), uint32(f.Data[i+2])
		// 19595+38470+7471 = 65536
		img.Pix[j] = uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
	}
	return img
}

// Channel cuts a byte stream into fixed-size frames.
type Channel struct {
	r      io.Reader
	width  int
	height int
	done   bool
}

func NewChannel(r io.Reader, width, height int) *Channel {
	return &Channel{r: r, width: width, height: height}
}

// Size is the number of bytes per frame.
func (c *Channel) Size() int { return c.width * c.height * BytesPerPixel }

// ReadFrame blocks until a full frame is assembled. It returns io.EOF when the source closes,
// including when it closes mid-frame, in which case the partial bytes are discarded.
// After io.EOF every later call returns io.EOF without touching the source.
func (c *Channel) ReadFrame() (RawFrame, error) {
	if c.done {
		return RawFrame{}, io.EOF
	}
	buf := make([]byte, c.Size())
	_, err := io.ReadFull(c.r, buf)
	switch {
	case err == nil:
		return RawFrame{Width: c.width, Height: c.height, Data: buf}, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.done = true
		return RawFrame{}, io.EOF
	default:
		c.done = true
		return RawFrame{}, errors.Wrap(err, "frame read")
	}
}
