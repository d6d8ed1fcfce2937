// Package formats provides the SHDW shadow outline file format.
package formats

// Note: SHDW (grid of cell outlines) is fully implemented in shdw.go
