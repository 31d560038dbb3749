package persistence

import (
	"errors"
	"io"
	"os"

	"github.com/loganszeto/mgindb-go/internal/store"
)

// Replay applies every intact record in walPath to st. A torn or corrupt
// tail ends the replay without error.
func Replay(walPath string, st store.Store) error {
	f, err := os.Open(walPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	for {
		rec, err := DecodeFrom(f)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrCorrupt) {
				return nil
			}
			return err
		}
		Apply(st, rec)
	}
}

func Apply(st store.Store, rec Record) {
	switch rec.Op {
	case OpSet:
		st.Set(rec.Key, rec.Value)
	case OpDel:
		st.Del(rec.Key)
	case OpRename:
		st.Rename(rec.Key, rec.Value)
	case OpFlush:
		st.Flush()
	}
}
