package blastdb

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultFASTAWidth is the residue line width used by common tools.
const DefaultFASTAWidth = 60

// WriteFASTA writes rec as a FASTA entry: a ">" line holding the
// identifiers separated by spaces, then the residues wrapped every width
// letters. A width <= 0 writes the residues on one line.
func WriteFASTA(w io.Writer, rec Record, width int) error {
	bw := bufio.NewWriter(w)
	if err := writeFASTA(bw, rec, width); err != nil {
		return err
	}
	return bw.Flush()
}

func writeFASTA(w *bufio.Writer, rec Record, width int) error {
	w.WriteByte('>')
	w.WriteString(strings.Join(rec.IDs, " "))
	w.WriteByte('\n')

	residues := rec.Residues
	if width <= 0 {
		width = max(len(residues), 1)
	}
	for len(residues) > 0 {
		n := min(width, len(residues))
		w.WriteString(residues[:n])
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		residues = residues[n:]
	}
	return nil
}

// WriteFASTA writes every record to w in ordinal order and returns the
// number of records written.
func (db *DB) WriteFASTA(w io.Writer, width int) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	for rec, err := range db.Records() {
		if err != nil {
			return n, err
		}
		if err := writeFASTA(bw, rec, width); err != nil {
			return n, fmt.Errorf("write record %d: %w", rec.Ordinal, err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, err
	}
	return n, nil
}
