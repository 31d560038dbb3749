package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"strconv"
)

var (
	magic      = [4]byte{'M', 'G', 'N', '1'}
	ErrCorrupt = errors.New("wal record corrupt")
)

type Op byte

const (
	OpSet    Op = 1
	OpDel    Op = 2
	OpRename Op = 3
	OpFlush  Op = 4
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "SET"
	case OpDel:
		return "DEL"
	case OpRename:
		return "RENAME"
	case OpFlush:
		return "FLUSHALL"
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Record is one logged mutation. For OpRename, Key is the source path and
// Value the new last segment.
type Record struct {
	Op    Op
	Key   string
	Value string
}

// Layout: magic | op | keyLen u32 | valLen u32 | key | value | crc32 (LE).
func Encode(rec Record) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writeBody(buf, rec.Op, []byte(rec.Key), []byte(rec.Value))
	crc := crc32.ChecksumIEEE(buf.Bytes())
	if err := binary.Write(buf, binary.LittleEndian, crc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBody(buf *bytes.Buffer, op Op, key, value []byte) {
	buf.Write(magic[:])
	buf.WriteByte(byte(op))
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(key)))
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(value)))
	buf.Write(key)
	buf.Write(value)
}

func DecodeFrom(r io.Reader) (Record, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Record{}, err
	}
	if header != magic {
		return Record{}, ErrCorrupt
	}
	var opByte [1]byte
	if _, err := io.ReadFull(r, opByte[:]); err != nil {
		return Record{}, err
	}
	var keyLen, valLen uint32
	if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
		return Record{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &valLen); err != nil {
		return Record{}, err
	}
	keyBytes := make([]byte, keyLen)
	if _, err := io.ReadFull(r, keyBytes); err != nil {
		return Record{}, err
	}
	valBytes := make([]byte, valLen)
	if _, err := io.ReadFull(r, valBytes); err != nil {
		return Record{}, err
	}
	var crc uint32
	if err := binary.Read(r, binary.LittleEndian, &crc); err != nil {
		return Record{}, err
	}

	body := bytes.NewBuffer(nil)
	writeBody(body, Op(opByte[0]), keyBytes, valBytes)
	if crc32.ChecksumIEEE(body.Bytes()) != crc {
		return Record{}, ErrCorrupt
	}

	return Record{
		Op:    Op(opByte[0]),
		Key:   string(keyBytes),
		Value: string(valBytes),
	}, nil
}
