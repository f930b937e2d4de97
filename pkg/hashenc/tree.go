package hashenc

import (
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Entry type markers written into tree hashes.
const (
	markFile    = 'f'
	markExec    = 'x'
	markDir     = 'd'
	markSymlink = 'l'
)

// HashTree computes the content hash of a file or directory tree.
//
// Only names, contents, symlink targets and the executable bit contribute;
// timestamps, ownership and the root's own path do not. Entries are visited in
// lexical order and every field is length-prefixed, so distinct trees cannot
// produce the same byte stream.
func HashTree(alg Algorithm, root string) (Digest, error) {
	h := alg.New()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			writeField(h, []byte{markSymlink})
			writeField(h, []byte(rel))
			writeField(h, []byte(target))
		case info.IsDir():
			writeField(h, []byte{markDir})
			writeField(h, []byte(rel))
		case info.Mode().IsRegular():
			mark := byte(markFile)
			if info.Mode()&0o111 != 0 {
				mark = markExec
			}
			writeField(h, []byte{mark})
			writeField(h, []byte(rel))
			if err := writeFileField(h, path, info.Size()); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s: unsupported file type %s", path, info.Mode().Type())
		}
		return nil
	})
	if err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", root, err)
	}
	return FromHash(alg, h), nil
}

// writeField writes an 8-byte big-endian length prefix followed by data.
func writeField(h hash.Hash, data []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(data)))
	h.Write(n[:])
	h.Write(data)
}

func writeFileField(h hash.Hash, path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(size))
	h.Write(n[:])
	written, err := io.Copy(h, f)
	if err != nil {
		return err
	}
	if written != size {
		return fmt.Errorf("%s changed while hashing", path)
	}
	return nil
}

// HashFields hashes a sequence of length-prefixed fields.
func HashFields(alg Algorithm, fields ...[]byte) Digest {
	h := alg.New()
	for _, f := range fields {
		writeField(h, f)
	}
	return FromHash(alg, h)
}
