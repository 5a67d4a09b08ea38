package session

import (
	"bytes"
	"encoding/binary"
	"time"
)

// encodeMeta/decodeMeta use a small fixed binary layout rather than JSON, matching the
// length-prefixed style the rest of this module uses for anything that ends up in storage.
func encodeMeta(m meta) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, int32(m.Stage)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, m.ExpiresAt.Unix()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeMeta(b []byte, m *meta) error {
	r := bytes.NewReader(b)

	var stage int32
	if err := binary.Read(r, binary.BigEndian, &stage); err != nil {
		return err
	}
	m.Stage = Stage(stage)

	var expires int64
	if err := binary.Read(r, binary.BigEndian, &expires); err != nil {
		return err
	}
	m.ExpiresAt = time.Unix(expires, 0)
	return nil
}
