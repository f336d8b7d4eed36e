// gguf.go - GGUF Write/Read fuer Adapter-Export
//
// Dieses Modul enthaelt Funktionen zum Schreiben trainierter LoRA-Adapter
// als GGUF-File (V3 Format), ladbar von GGML-basierten Runtimes:
// - WriteAdapter: Schreibt komplettes GGUF-File mit KV und Tensors
// - ReadAdapter: Liest KV und Tensor-Metadaten zurueck (Verifikation)
// - writeGGUF/writeGGUFString: typisierte Serialisierung
package checkpoint

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/x448/float16"
)

const (
	ggufTypeUint32  uint32 = 4
	ggufTypeFloat32 uint32 = 6
	ggufTypeBool    uint32 = 7
	ggufTypeString  uint32 = 8
)

// Tensor-Kinds im GGUF-Format
const (
	KindF32 uint32 = 0
	KindF16 uint32 = 1
)

// AdapterTensor ist ein zu exportierender Gewichts-Tensor
type AdapterTensor struct {
	Name  string
	Shape []uint64
	Kind  uint32
	Data  []float32

	offset uint64
}

// Size gibt die Byte-Groesse der Tensor-Daten zurueck
func (t *AdapterTensor) Size() uint64 {
	n := uint64(len(t.Data))
	if t.Kind == KindF16 {
		return n * 2
	}
	return n * 4
}

// WriteAdapter schreibt ein GGUF-File mit KV-Paaren und Tensors (V3 Format)
func WriteAdapter(f *os.File, kv map[string]any, ts []*AdapterTensor) error {
	arch, _ := kv["general.architecture"].(string)
	if arch == "" {
		return fmt.Errorf("architecture not set")
	}

	// Magic: "GGUF"
	if err := binary.Write(f, binary.LittleEndian, []byte("GGUF")); err != nil {
		return err
	}

	// Version: 3
	if err := binary.Write(f, binary.LittleEndian, uint32(3)); err != nil {
		return err
	}

	// Tensor Count + KV Count
	if err := binary.Write(f, binary.LittleEndian, uint64(len(ts))); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint64(len(kv))); err != nil {
		return err
	}

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if err := ggufWriteKV(f, key, kv[key]); err != nil {
			return err
		}
	}

	slices.SortStableFunc(ts, func(a, b *AdapterTensor) int {
		return strings.Compare(a.Name, b.Name)
	})

	const alignment = 32

	// Offsets berechnen und Tensor-Infos schreiben
	var s uint64
	for i := range ts {
		ts[i].offset = s
		if err := ggufWriteTensorInfo(f, ts[i]); err != nil {
			return err
		}
		s += ts[i].Size()
		s += uint64(ggufPadding(int64(s), alignment))
	}

	offset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := writePadding(f, ggufPadding(offset, alignment)); err != nil {
		return err
	}

	for _, t := range ts {
		if err := t.writeData(f); err != nil {
			return err
		}
		if err := writePadding(f, ggufPadding(int64(t.Size()), alignment)); err != nil {
			return err
		}
	}

	return nil
}

// writeData serialisiert die Tensor-Daten im Ziel-Dtype
func (t *AdapterTensor) writeData(w io.Writer) error {
	if t.Kind == KindF16 {
		bts := make([]byte, len(t.Data)*2)
		for i, v := range t.Data {
			binary.LittleEndian.PutUint16(bts[i*2:], float16.Fromfloat32(v).Bits())
		}
		_, err := w.Write(bts)
		return err
	}

	return binary.Write(w, binary.LittleEndian, t.Data)
}

func writePadding(w io.Writer, n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := w.Write(make([]byte, n))
	return err
}

func ggufPadding(offset, align int64) int64 {
	return (align - offset%align) % align
}

// writeGGUF schreibt einen typisierten Wert mit Typ-Prefix
func writeGGUF[V any](w io.Writer, t uint32, v V) error {
	if err := binary.Write(w, binary.LittleEndian, t); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, v)
}

// writeGGUFString schreibt einen String mit Typ-Prefix und Laenge
func writeGGUFString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, ggufTypeString); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.Copy(w, strings.NewReader(s))
	return err
}

// ggufWriteKV schreibt ein Key-Value Paar
func ggufWriteKV(w io.Writer, k string, v any) error {
	slog.Debug(k, "type", fmt.Sprintf("%T", v))

	if err := binary.Write(w, binary.LittleEndian, uint64(len(k))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, []byte(k)); err != nil {
		return err
	}

	switch v := v.(type) {
	case uint32:
		return writeGGUF(w, ggufTypeUint32, v)
	case float32:
		return writeGGUF(w, ggufTypeFloat32, v)
	case bool:
		return writeGGUF(w, ggufTypeBool, v)
	case string:
		return writeGGUFString(w, v)
	default:
		return fmt.Errorf("improper type for '%s'", k)
	}
}

// ggufWriteTensorInfo schreibt die Tensor-Metadaten
func ggufWriteTensorInfo(w io.Writer, t *AdapterTensor) error {
	slog.Debug(t.Name, "kind", t.Kind, "shape", t.Shape, "offset", t.offset)

	if err := binary.Write(w, binary.LittleEndian, uint64(len(t.Name))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, []byte(t.Name)); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(t.Shape))); err != nil {
		return err
	}
	for _, n := range t.Shape {
		if err := binary.Write(w, binary.LittleEndian, n); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, t.Kind); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, t.offset)
}

// AdapterInfo beschreibt ein zurueckgelesenes Adapter-File
type AdapterInfo struct {
	KV      map[string]any
	Tensors []*AdapterTensor
}

// ReadAdapter liest KV-Paare und Tensor-Metadaten eines Adapter-GGUF.
// Nur die beim Schreiben verwendeten Typen werden unterstuetzt.
func ReadAdapter(fn string) (*AdapterInfo, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, err
	}
	if string(magic) != "GGUF" {
		return nil, fmt.Errorf("checkpoint: %s is not a GGUF file", fn)
	}

	var version uint32
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != 3 {
		return nil, fmt.Errorf("checkpoint: unsupported GGUF version %d", version)
	}

	var tensorCount, kvCount uint64
	if err := binary.Read(f, binary.LittleEndian, &tensorCount); err != nil {
		return nil, err
	}
	if err := binary.Read(f, binary.LittleEndian, &kvCount); err != nil {
		return nil, err
	}

	info := &AdapterInfo{KV: make(map[string]any, kvCount)}

	for i := uint64(0); i < kvCount; i++ {
		k, err := readGGUFString(f)
		if err != nil {
			return nil, err
		}

		var typ uint32
		if err := binary.Read(f, binary.LittleEndian, &typ); err != nil {
			return nil, err
		}

		switch typ {
		case ggufTypeUint32:
			var v uint32
			if err := binary.Read(f, binary.LittleEndian, &v); err != nil {
				return nil, err
			}
			info.KV[k] = v
		case ggufTypeFloat32:
			var v float32
			if err := binary.Read(f, binary.LittleEndian, &v); err != nil {
				return nil, err
			}
			info.KV[k] = v
		case ggufTypeBool:
			var v bool
			if err := binary.Read(f, binary.LittleEndian, &v); err != nil {
				return nil, err
			}
			info.KV[k] = v
		case ggufTypeString:
			v, err := readGGUFString(f)
			if err != nil {
				return nil, err
			}
			info.KV[k] = v
		default:
			return nil, fmt.Errorf("checkpoint: unsupported KV type %d for %s", typ, k)
		}
	}

	for i := uint64(0); i < tensorCount; i++ {
		name, err := readGGUFString(f)
		if err != nil {
			return nil, err
		}

		var dims uint32
		if err := binary.Read(f, binary.LittleEndian, &dims); err != nil {
			return nil, err
		}

		shape := make([]uint64, dims)
		for i := range shape {
			if err := binary.Read(f, binary.LittleEndian, &shape[i]); err != nil {
				return nil, err
			}
		}

		var kind uint32
		var offset uint64
		if err := binary.Read(f, binary.LittleEndian, &kind); err != nil {
			return nil, err
		}
		if err := binary.Read(f, binary.LittleEndian, &offset); err != nil {
			return nil, err
		}

		info.Tensors = append(info.Tensors, &AdapterTensor{
			Name:   name,
			Shape:  shape,
			Kind:   kind,
			offset: offset,
		})
	}

	return info, nil
}

// readGGUFString liest einen laengen-praefixierten String (ohne Typ-Prefix)
func readGGUFString(r io.Reader) (string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}

	bts := make([]byte, n)
	if _, err := io.ReadFull(r, bts); err != nil {
		return "", err
	}
	return string(bts), nil
}
