package changeset

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Walk iterates the serialised change set b with keys of the provided size.
func Walk(b []byte, keyLen int, f func(k, v []byte) error) error {
	if len(b) == 0 {
		return nil
	}
	if len(b) < 4 {
		return fmt.Errorf("decode: input too short (%d bytes)", len(b))
	}

	n := int(binary.BigEndian.Uint32(b[0:4]))
	if n == 0 {
		return nil
	}

	valOffset := 4 + n*keyLen + 4*n
	if len(b) < valOffset {
		return fmt.Errorf("decode: input too short (%d bytes, expected at least %d bytes)", len(b), valOffset)
	}

	totalValLength := int(binary.BigEndian.Uint32(b[valOffset-4 : valOffset]))
	if len(b) < valOffset+totalValLength {
		return fmt.Errorf("decode: input too short (%d bytes, expected at least %d bytes)", len(b), valOffset+totalValLength)
	}

	for i := 0; i < n; i++ {
		key := b[4+i*keyLen : 4+(i+1)*keyLen]
		idx0 := 0
		if i > 0 {
			idx0 = int(binary.BigEndian.Uint32(b[4+n*keyLen+4*(i-1) : 4+n*keyLen+4*i]))
		}
		idx1 := int(binary.BigEndian.Uint32(b[4+n*keyLen+4*i : 4+n*keyLen+4*(i+1)]))
		val := b[valOffset+idx0 : valOffset+idx1]

		if err := f(key, val); err != nil {
			return err
		}
	}
	return nil
}

// Decode deserialises b into a fresh ChangeSet with keys of the given length.
func Decode(b []byte, keyLen int) (*ChangeSet, error) {
	cs := &ChangeSet{Changes: make([]Change, 0), keyLen: keyLen}
	err := Walk(b, keyLen, func(k, v []byte) error {
		cs.Changes = append(cs.Changes, Change{Key: k, Value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cs, nil
}

// FindValue looks k up in the serialised change set b.
func FindValue(b []byte, keyLen int, k []byte) ([]byte, error) {
	var result []byte
	found := false
	err := Walk(b, keyLen, func(key, v []byte) error {
		switch bytes.Compare(key, k) {
		case 0:
			result = v
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return result, nil
}
