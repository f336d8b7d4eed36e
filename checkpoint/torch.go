// torch.go - Reader fuer legacy pytorch_model.bin Checkpoints
//
// Verwendet gopickle, um das Pickle-Format zu lesen; pro Storage-Typ
// wird zu float32 konvertiert. Neue Checkpoints sollten safetensors
// verwenden, dieser Pfad existiert fuer aeltere Adapter und Modelle.
package checkpoint

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// parseTorch listet die Tensoren einer pytorch .bin Datei auf
func parseTorch(fn string) ([]*Tensor, error) {
	m, err := pytorch.Load(fn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %s: %w", fn, err)
	}

	d, ok := m.(*types.Dict)
	if !ok {
		return nil, fmt.Errorf("checkpoint: %s: unexpected pickle root %T", fn, m)
	}

	var ts []*Tensor
	for _, k := range d.Keys() {
		name, ok := k.(string)
		if !ok {
			continue
		}

		v, _ := d.Get(k)
		pt, ok := v.(*pytorch.Tensor)
		if !ok {
			continue
		}

		shape := make([]uint64, len(pt.Size))
		for i, s := range pt.Size {
			shape[i] = uint64(s)
		}

		ts = append(ts, &Tensor{
			Name:   name,
			Dtype:  storageDtype(pt.Source),
			Shape:  shape,
			source: torchSource(pt),
		})
	}

	return ts, nil
}

// storageDtype meldet den dtype eines pytorch Storage
func storageDtype(s pytorch.StorageInterface) string {
	switch s.(type) {
	case *pytorch.FloatStorage:
		return "F32"
	case *pytorch.HalfStorage:
		return "F16"
	case *pytorch.BFloat16Storage:
		return "BF16"
	case *pytorch.DoubleStorage:
		return "F64"
	default:
		return fmt.Sprintf("%T", s)
	}
}

// torchSource konvertiert die Storage-Daten zu float32
func torchSource(pt *pytorch.Tensor) func() ([]float32, error) {
	return func() ([]float32, error) {
		n := 1
		for _, s := range pt.Size {
			n *= s
		}

		switch s := pt.Source.(type) {
		case *pytorch.FloatStorage:
			return s.Data[pt.StorageOffset : pt.StorageOffset+n], nil
		case *pytorch.HalfStorage:
			return s.Data[pt.StorageOffset : pt.StorageOffset+n], nil
		case *pytorch.BFloat16Storage:
			return s.Data[pt.StorageOffset : pt.StorageOffset+n], nil
		case *pytorch.DoubleStorage:
			out := make([]float32, n)
			for i, v := range s.Data[pt.StorageOffset : pt.StorageOffset+n] {
				out[i] = float32(v)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("checkpoint: unsupported storage %T", pt.Source)
		}
	}
}
