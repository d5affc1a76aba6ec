// Package seismo models digitization of scanned analog seismograms.
//
// # Overview
//
// A scanned seismogram is a very large raster (a meter of photographic paper
// at 600 dpi is tens of thousands of pixels wide) carrying hand-recorded
// ground-motion traces. seismo provides the pieces an interactive digitizer
// builds on:
//
//   - Document: the raster, assembled from one or more scanned regions, with
//     crop, split and join editing that remaps all registered coordinates.
//   - tile.Store (package tile): out-of-core pixel access through a
//     byte-budgeted LRU tile cache with background decoding.
//   - View: the pan/zoom/rotate transform between raster and device space,
//     with an exact analytic inverse.
//   - Compositor: assembles the visible viewport from cached tiles, choosing
//     the pyramid level from the zoom factor.
//   - TimeScale: calibration of the horizontal pixel axis against recorded
//     time, with interpolation, extrapolation and boundary corrections.
//   - CurveSet: vectorized trace annotations registered in raster
//     coordinates, surviving document edits.
//   - Digitize: conversion of a traced curve into an evenly sampled
//     amplitude series.
//
// # Coordinate System
//
// Raster (logical) coordinates have their origin at the top-left of the
// document, X increasing right and Y increasing down, measured in pixels at
// native scan resolution. Device coordinates follow the same convention over
// the output surface. Angles are in radians.
//
// # Quick Start
//
//	doc, _ := seismo.OpenDocument("scan.tif")
//	defer doc.Close()
//
//	view := seismo.NewView(1280, 800)
//	view.ZoomAt(2, seismo.Pt(640, 400))
//
//	comp := seismo.NewCompositor(doc)
//	frame, report, _ := comp.Composite(view)
//	_ = frame  // draw to screen; report says what is still pending
//
// # Logging
//
// seismo produces no log output by default. Call SetLogger to enable it.
package seismo

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 3

	// VersionPatch is the patch version
	VersionPatch = 0
)
