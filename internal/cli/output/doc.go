// Package output renders command results as a table, JSON, JSON lines or YAML.
//
// Table rendering reflects over structs: exported fields become columns,
// named by their json tag. Fields tagged `table:"-"` are hidden and
// `table:"wide"` fields only appear in wide mode.
package output
