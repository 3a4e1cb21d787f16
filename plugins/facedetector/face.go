package facedetector

import "image"

// Face is the bounding box of one detected face, in pixels.
type Face struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Result is the Output.Data of a successful detection.
type Result struct {
	// Image is a copy of the input with every face outlined.
	Image image.Image `json:"-"`

	Faces []Face `json:"faces"`
}

func facesFromRects(rects []image.Rectangle) []Face {
	faces := make([]Face, len(rects))
	for i, r := range rects {
		faces[i] = Face{
			X:      r.Min.X,
			Y:      r.Min.Y,
			Width:  r.Dx(),
			Height: r.Dy(),
		}
	}
	return faces
}
