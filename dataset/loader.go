// loader.go - Batch-Loader mit Shuffling, Length-Grouping und Prefetch
//
// Dieses Modul enthaelt:
// - Batcher: Interface, das SFT- und Preference-Datasets erfuellen
// - Loader: epochenweises Batching mit Worker-Pool
//
// Length-Grouping sortiert Samples in Laengen-Buckets (Treemap), damit
// Batches aehnlich lange Sequenzen enthalten und wenig Padding anfaellt.
// Die Batch-Reihenfolge wird danach wieder gemischt.
package dataset

import (
	"context"
	"errors"
	"math/rand"

	"github.com/emirpasic/gods/v2/maps/treemap"
	"golang.org/x/sync/errgroup"
)

// lengthBucket fasst Sequenzlaengen in Schritten von 16 Tokens zusammen
const lengthBucket = 16

// Batcher ist die Schnittstelle der Datasets zum Loader
type Batcher interface {
	Len() int
	SeqLen(index int) int
	Batch(indices []int) (*Batch, error)
}

// LoaderOptions captures the knobs of the batch loader.
type LoaderOptions struct {
	BatchSize     int
	Seed          int64
	NumWorkers    int
	GroupByLength bool
	DropLast      bool
}

// Loader produziert Batches fuer die Trainingsschleife
type Loader struct {
	ds   Batcher
	opts LoaderOptions
}

// NewLoader erstellt einen Loader
func NewLoader(ds Batcher, opts LoaderOptions) (*Loader, error) {
	if opts.BatchSize <= 0 {
		return nil, errors.New("loader: batch size must be > 0")
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if ds.Len() == 0 {
		return nil, errors.New("loader: dataset is empty")
	}

	return &Loader{ds: ds, opts: opts}, nil
}

// BatchesPerEpoch gibt die Anzahl Batches pro Epoche zurueck
func (l *Loader) BatchesPerEpoch() int {
	n := l.ds.Len() / l.opts.BatchSize
	if !l.opts.DropLast && l.ds.Len()%l.opts.BatchSize != 0 {
		n++
	}
	return n
}

// plan berechnet die Batch-Indizes einer Epoche.
// Der Seed ist pro Epoche verschoben, damit jede Epoche anders mischt,
// der Lauf insgesamt aber reproduzierbar bleibt.
func (l *Loader) plan(epoch int) [][]int {
	rng := rand.New(rand.NewSource(l.opts.Seed + int64(epoch)))

	order := make([]int, l.ds.Len())
	for i := range order {
		order[i] = i
	}

	if l.opts.GroupByLength {
		buckets := treemap.New[int, []int]()
		for _, idx := range order {
			key := l.ds.SeqLen(idx) / lengthBucket
			b, _ := buckets.Get(key)
			buckets.Put(key, append(b, idx))
		}

		order = order[:0]
		for _, key := range buckets.Keys() {
			b, _ := buckets.Get(key)
			rng.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
			order = append(order, b...)
		}
	} else {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	var batches [][]int
	for start := 0; start < len(order); start += l.opts.BatchSize {
		end := min(start+l.opts.BatchSize, len(order))
		if end-start < l.opts.BatchSize && l.opts.DropLast {
			break
		}
		batches = append(batches, order[start:end])
	}

	// bei Length-Grouping die Batch-Reihenfolge wieder mischen
	if l.opts.GroupByLength {
		rng.Shuffle(len(batches), func(i, j int) { batches[i], batches[j] = batches[j], batches[i] })
	}

	return batches
}

// Epoch startet die Kollation einer Epoche mit NumWorkers Workern.
// Die Batch-Reihenfolge zwischen Workern ist nicht deterministisch.
// wait gibt den ersten Worker-Fehler zurueck, nachdem der Kanal geschlossen ist.
func (l *Loader) Epoch(ctx context.Context, epoch int) (batches <-chan *Batch, wait func() error) {
	plan := l.plan(epoch)

	jobs := make(chan []int)
	out := make(chan *Batch, l.opts.NumWorkers)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for _, indices := range plan {
			select {
			case jobs <- indices:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < l.opts.NumWorkers; w++ {
		g.Go(func() error {
			for indices := range jobs {
				batch, err := l.ds.Batch(indices)
				if err != nil {
					return err
				}
				select {
				case out <- batch:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
		close(out)
	}()

	return out, func() error { return <-done }
}
