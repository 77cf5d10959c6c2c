package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/google/uuid"

	"github.com/hyperjump/shiori/internal/apperr"
)

var vectorMagic = [8]byte{'S', 'H', 'I', 'O', 'R', 'I', 'V', '1'}

// magic + dimension + count + build id
const headerSize = 8 + 4 + 4 + 16

type vectorHeader struct {
	Dimension int
	Count     int
	BuildID   uuid.UUID
}

func writeVectorFile(path string, m Manifest, vectors [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.Write(vectorMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(m.Dimension)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	if _, err := w.Write(m.BuildID[:]); err != nil {
		return fmt.Errorf("write build id: %w", err)
	}
	for _, v := range vectors {
		if _, err := w.Write(float32SliceToBytes(v)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func readVectorFile(path string) (vectorHeader, [][]float32, error) {
	var h vectorHeader
	data, err := os.ReadFile(path)
	if err != nil {
		return h, nil, fmt.Errorf("read vector file: %w", err)
	}
	if len(data) < headerSize {
		return h, nil, apperr.Corruptf(path, "file is %d bytes, shorter than the header", len(data))
	}
	if !bytes.Equal(data[:8], vectorMagic[:]) {
		return h, nil, apperr.Corruptf(path, "not a vector index file")
	}
	r := bytes.NewReader(data[8:headerSize])
	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return h, nil, apperr.Corruptf(path, "read dimensions: %v", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return h, nil, apperr.Corruptf(path, "read count: %v", err)
	}
	if _, err := io.ReadFull(r, h.BuildID[:]); err != nil {
		return h, nil, apperr.Corruptf(path, "read build id: %v", err)
	}
	h.Dimension, h.Count = int(dim), int(count)
	if h.Dimension <= 0 {
		return h, nil, apperr.Corruptf(path, "invalid dimension %d", h.Dimension)
	}

	body := data[headerSize:]
	rowBytes := h.Dimension * 4
	if len(body)%rowBytes != 0 || len(body)/rowBytes != h.Count {
		return h, nil, apperr.Corruptf(path, "header declares %d vectors but body holds %d bytes", h.Count, len(body))
	}
	vectors := make([][]float32, h.Count)
	for i := range vectors {
		vectors[i] = bytesToFloat32Slice(body[i*rowBytes : (i+1)*rowBytes])
	}
	return h, vectors, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
