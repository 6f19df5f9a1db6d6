package blastdb

import "github.com/opencontainers/go-digest"

// Record is one sequence with its identifiers.
type Record struct {
	// Ordinal is the record's position in the database.
	Ordinal int

	// IDs lists the record's identifiers in header order.
	IDs []string

	// Residues is the protein sequence.
	Residues string
}

// ID returns the first identifier, or "" when the record has none.
//
// Header order is whatever the database builder wrote, so the first
// identifier is a convention, not a canonical accession.
func (r Record) ID() string {
	if len(r.IDs) == 0 {
		return ""
	}
	return r.IDs[0]
}

// Digest returns the sha256 digest of the residues. Records with the same
// sequence have the same digest regardless of their identifiers.
func (r Record) Digest() digest.Digest {
	return digest.FromString(r.Residues)
}
