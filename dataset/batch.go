// batch.go - Batch-Strukturen der Daten-Pipeline
package dataset

import "github.com/alignforge/alignforge/vision"

// Batch ist ein kollatierter Mini-Batch, fertig fuer die Runtime.
// Alle Zeilen sind auf gemeinsame Laenge gepadded.
type Batch struct {
	InputIDs      [][]int32
	Labels        [][]int32
	AttentionMask [][]int32

	// PixelValues ist pro Zeile gesetzt, wenn ein Bild/Video vorliegt
	PixelValues []*vision.PixelValues

	Meta BatchMeta
}

// BatchMeta traegt Zusatzinformationen, die der Trainer braucht
type BatchMeta struct {
	// ResponseLens ist die Token-Laenge der Response je Zeile.
	// Bei Preference-Batches in [better..., worse...] Reihenfolge.
	ResponseLens []int

	// Preference meldet, ob der Batch ein konkateniertes better/worse Paar ist
	Preference bool
}

// Size gibt die Anzahl der Zeilen zurueck
func (b *Batch) Size() int {
	return len(b.InputIDs)
}

// SeqLen gibt die gepaddete Sequenzlaenge zurueck
func (b *Batch) SeqLen() int {
	if len(b.InputIDs) == 0 {
		return 0
	}
	return len(b.InputIDs[0])
}
