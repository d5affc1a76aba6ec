package seismo

import "errors"

// Sentinel errors returned by the package. Callers match them with
// errors.Is; most are wrapped with position or identifier context.
var (
	// ErrDecodeFailed reports that pixel data for a region could not be
	// decoded and no retry will succeed.
	ErrDecodeFailed = errors.New("seismo: decode failed")

	// ErrDimensionMismatch reports that two documents cannot be joined
	// because their extents along the shared edge differ.
	ErrDimensionMismatch = errors.New("seismo: dimension mismatch")

	// ErrMonotonicityViolation reports a calibration point whose time
	// ordering contradicts the established direction of the time axis.
	ErrMonotonicityViolation = errors.New("seismo: calibration not monotonic")

	// ErrOutOfBudget reports that an operation would exceed the configured
	// memory budget even at the coarsest pyramid level.
	ErrOutOfBudget = errors.New("seismo: memory budget exceeded")

	// ErrInvalidRegion reports a crop or split position outside the
	// document extent, or one that would produce an empty side.
	ErrInvalidRegion = errors.New("seismo: invalid region")

	// ErrInsufficientCalibration reports a time query against a scale with
	// fewer than two valid calibration points.
	ErrInsufficientCalibration = errors.New("seismo: insufficient calibration")

	// ErrCurveNotFound reports an operation against an unknown curve ID.
	ErrCurveNotFound = errors.New("seismo: curve not found")

	// ErrDuplicatePoint reports a curve vertex placed at exactly the
	// position of an existing one.
	ErrDuplicatePoint = errors.New("seismo: duplicate point")

	// ErrDocumentClosed reports use of a document after Close.
	ErrDocumentClosed = errors.New("seismo: document closed")
)
