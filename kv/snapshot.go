package kv

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// snapshotVersion is a version stamp for the whole-store snapshot format,
// independent of the per-read state version in state.go (spec.md section
// 9: "Serialization must be deterministic and version-stamped").
const snapshotVersion = 1

func writeSnapshot(w io.Writer, data map[string][]byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(snapshotVersion)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	for key, value := range data {
		if err := writeLenPrefixed(w, []byte(key)); err != nil {
			return err
		}
		if err := writeLenPrefixed(w, value); err != nil {
			return err
		}
	}
	return nil
}

func loadSnapshot(r io.Reader) (map[string][]byte, error) {
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		if err == io.EOF {
			return map[string][]byte{}, nil
		}
		return nil, err
	}
	if version != snapshotVersion {
		return nil, errors.Errorf("kv snapshot version %d unsupported (want %d)", version, snapshotVersion)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	data := make(map[string][]byte, count)
	for i := uint32(0); i < count; i++ {
		key, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		value, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		data[string(key)] = value
	}
	return data, nil
}

func writeLenPrefixed(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
