// Package output renders command results for the filekv CLI.
//
// Three formats are supported: json and yaml print values as documents,
// table flattens mappings into sorted KEY/VALUE rows addressed by dot path.
package output
