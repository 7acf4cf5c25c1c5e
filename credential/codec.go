package credential

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	pairFormatVersionCurrent = 1

	maxTokenLength = 64 * 1024
)

// Pair is the current access/refresh credential pair. An empty Pair means
// "not authenticated".
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether the pair carries no credentials.
func (p Pair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Encode serializes a pair and its issuance timestamp into the versioned
// binary persistence format.
func Encode(p Pair, issuedAt int64) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(pairFormatVersionCurrent)

	if err := writeToken(&buf, p.AccessToken); err != nil {
		return nil, err
	}
	if err := writeToken(&buf, p.RefreshToken); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, issuedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode].
func Decode(data []byte) (Pair, int64, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Pair{}, 0, err
	}
	if version != pairFormatVersionCurrent {
		return Pair{}, 0, errors.New("invalid pair format version")
	}

	var p Pair
	if p.AccessToken, err = readToken(reader); err != nil {
		return Pair{}, 0, err
	}
	if p.RefreshToken, err = readToken(reader); err != nil {
		return Pair{}, 0, err
	}

	var issuedAt int64
	if err := binary.Read(reader, binary.BigEndian, &issuedAt); err != nil {
		return Pair{}, 0, err
	}

	return p, issuedAt, nil
}

func writeToken(buf *bytes.Buffer, tok string) error {
	if len(tok) > maxTokenLength {
		return errors.New("token too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(tok))); err != nil {
		return err
	}
	buf.WriteString(tok)
	return nil
}

func readToken(reader *bytes.Reader) (string, error) {
	var length uint32
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", err
	}
	if length > maxTokenLength {
		return "", errors.New("token length out of range")
	}

	tok := make([]byte, length)
	if _, err := io.ReadFull(reader, tok); err != nil {
		return "", err
	}
	return string(tok), nil
}
