// safetensors.go - Reader fuer das safetensors Gewichts-Format
//
// Format: 8 Byte Header-Laenge (little endian), JSON-Header mit
// name -> {dtype, shape, data_offsets}, danach die rohen Tensor-Daten.
// Unterstuetzte dtypes: F32, F16 (x448/float16), BF16 (d4l3k/go-bfloat16).
package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

type safetensorEntry struct {
	Dtype       string    `json:"dtype"`
	Shape       []uint64  `json:"shape"`
	DataOffsets []uint64  `json:"data_offsets"`
}

// parseSafetensors listet die Tensoren einer safetensors-Datei auf
func parseSafetensors(fn string) ([]*Tensor, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var headerLen uint64
	if err := binary.Read(f, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("checkpoint: %s: %w", fn, err)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("checkpoint: %s: %w", fn, err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(header, &entries); err != nil {
		return nil, fmt.Errorf("checkpoint: %s: invalid header: %w", fn, err)
	}

	dataStart := int64(8 + headerLen)

	var ts []*Tensor
	for name, raw := range entries {
		if name == "__metadata__" {
			continue
		}

		var e safetensorEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("checkpoint: %s: tensor %s: %w", fn, name, err)
		}
		if len(e.DataOffsets) != 2 {
			return nil, fmt.Errorf("checkpoint: %s: tensor %s: bad data_offsets", fn, name)
		}

		ts = append(ts, &Tensor{
			Name:   name,
			Dtype:  e.Dtype,
			Shape:  e.Shape,
			source: safetensorSource(fn, e, dataStart),
		})
	}

	return ts, nil
}

// safetensorSource liest und dekodiert die Daten eines Tensors bei Bedarf
func safetensorSource(fn string, e safetensorEntry, dataStart int64) func() ([]float32, error) {
	return func() ([]float32, error) {
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		size := e.DataOffsets[1] - e.DataOffsets[0]
		bts := make([]byte, size)
		if _, err := f.ReadAt(bts, dataStart+int64(e.DataOffsets[0])); err != nil {
			return nil, err
		}

		return decodeTensorData(e.Dtype, bts)
	}
}

// decodeTensorData konvertiert rohe Bytes zu float32
func decodeTensorData(dtype string, bts []byte) ([]float32, error) {
	switch dtype {
	case "F32":
		out := make([]float32, len(bts)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(bts[i*4:]))
		}
		return out, nil
	case "F16":
		out := make([]float32, len(bts)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(bts[i*2:])).Float32()
		}
		return out, nil
	case "BF16":
		return bfloat16.DecodeFloat32(bts), nil
	default:
		return nil, fmt.Errorf("checkpoint: unsupported dtype %s", dtype)
	}
}
