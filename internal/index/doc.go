// Package index decodes the index stream of a compiled sequence database: the
// title, the sequence count and the two cumulative offset tables that address
// header blobs and residue data.
package index
