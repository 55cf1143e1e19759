// Package pkg provides the libraries behind stampforge, which turns a raster
// logo into a watertight STL stamp ready for 3-D printing.
//
// # Architecture
//
// A conversion runs through five stages:
//
//	image file
//	     ↓
//	[preprocess]  decode, grayscale, CLAHE, denoise, blur, adaptive threshold
//	     ↓
//	[stamp]       close small gaps, fit to the print grid, mirror, pad a base
//	     ↓
//	[mesh]        extrude base and relief masks into slabs of triangles
//	     ↓
//	[mesh]        assemble the solid and encode it as binary or ASCII STL
//	     ↓
//	[fsutil]      write the file atomically
//
// [pipeline] runs the stages in order, reports progress through
// [observability] hooks and keeps finished STL bytes in a [cache].
//
// # Quick Start
//
//	err := pipeline.GenerateSolid(ctx, "logo.png", "stamp.stl")
//
// With a custom configuration and the artifact cache:
//
//	fc, _ := cache.NewFileCache(dir)
//	r := pipeline.NewRunner(fc, nil, logger)
//	cfg := config.Default()
//	cfg.Geometry.TargetSize = 40
//	result, err := r.GenerateSolid(ctx, "logo.png", "stamp.stl", pipeline.Options{Config: cfg})
//
// # Main Packages
//
// [config] - Tunables for preprocessing, geometry and output, loaded from TOML.
//
// [mask] - Binary occupancy grids with morphology and boundary walls.
//
// [preprocess] - Image decoding and the logo extraction stages. The default
// backend is pure Go; an OpenCV backend is available behind the gocv build tag.
//
// [stamp] - Mask transform from pixels to print cells.
//
// [mesh] - Extrusion, assembly, STL encoding and mesh inspection.
//
// [diagnostics] - Writes intermediate images and histograms for debugging.
//
// [jobs] - Background conversion queue with memory, SQLite and MongoDB stores.
//
// [server] - HTTP upload and download service built on the job queue.
//
// [sample] - Synthetic logos for trying the converter.
//
// [errors] - Coded errors shared by every package.
//
// # Testing
//
//	go test ./...                          # All tests
//	STAMPFORGE_TEST_MONGO=mongodb://... go test ./pkg/jobs/  # Include MongoDB
//	go test -tags gocv ./pkg/preprocess/   # OpenCV backend
package pkg
