// Package field owns the sampled-field core.
//
// Responsibilities: the Field contract and its support dispatch, point
// clouds and the scatter engine that rasterizes them onto grids,
// centered and staggered grids, and particle seeding from occupancy
// grids.
// Key types: Field, SampledField, PointCloud, CenteredGrid, StaggeredGrid.
//
// Dependency rule: field depends on backend, geom and extrapolation, and
// on monitoring for logs and metrics. It never imports storage, render
// or scene code.
//
// Every value here is immutable once constructed. Operations return new
// fields and share Geometry and Extrapolation values read-only.
package field
