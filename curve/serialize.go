package curve

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

func (s Scalar) String() string {
	return hex.EncodeToString(s.Bytes())
}

func (s Scalar) Serialize(w io.Writer) error {
	_, err := w.Write(s.Bytes())
	return err
}

func (s *Scalar) Deserialize(r io.Reader) error {
	b := make([]byte, 32)
	if _, err := io.ReadFull(r, b); err != nil {
		return errors.Wrap(err, "read scalar")
	}
	*s = ScalarFromBytes(b)
	return nil
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return ErrOutOfRange
	}

	b, err := hex.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return errors.Wrap(err, "hex decode")
	}

	*s = ScalarFromBytes(b)
	return nil
}
