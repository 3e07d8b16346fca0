package surface

import "errors"

var (
	// ErrEmptyInput is returned for a raw polygon with an empty shell.
	ErrEmptyInput = errors.New("empty polygon shell")

	// ErrDegenerateGeometry covers rings that collapse below three distinct
	// vertices, have zero area, contain invalid points, or lose their
	// nearest-neighbour source during 3D recovery.
	ErrDegenerateGeometry = errors.New("degenerate geometry")

	// ErrMissingReference is returned when 3D recovery is asked to run with
	// neither a spatial index nor a usable fallback height. It signals a
	// caller bug rather than noisy input.
	ErrMissingReference = errors.New("missing rotation reference for 3D recovery")

	// ErrIndexOutOfRange is returned when a polygon boundary references a
	// point outside the point cloud.
	ErrIndexOutOfRange = errors.New("point index out of range")

	// ErrFrameSkipped is returned for depth frames with too few valid pixels.
	ErrFrameSkipped = errors.New("frame skipped")
)

func isSkipped(err error) bool {
	return errors.Is(err, ErrFrameSkipped)
}
