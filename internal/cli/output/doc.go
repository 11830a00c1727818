// Package output renders command results for canvasmesh-cli.
//
// Results are printed as a table (default), JSON or YAML. Tables are
// built by reflection from structs and slices of structs; fields tagged
// `table:"-"` are hidden and `table:",wide"` fields only appear with
// --wide.
package output
