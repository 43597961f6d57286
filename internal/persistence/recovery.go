package persistence

import (
	"bufio"
	"bytes"
	"errors"
	"os"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hyperjump/medialens/internal/vector"
)

// prevSuffix marks the last consistent pair, kept while Save replaces it.
const prevSuffix = ".prev"

func prevPaths(dir string) (vectors, metadata string) {
	vecPath, metaPath := Paths(dir)
	return vecPath + prevSuffix, metaPath + prevSuffix
}

func hasPrevious(dir string) bool {
	vecPath, metaPath := prevPaths(dir)
	return isFile(vecPath) && isFile(metaPath)
}

// consistent reports whether the artifacts in dir carry the same generation.
// Only the vector header and the document's generation field are read.
func consistent(dir string) bool {
	vecPath, metaPath := Paths(dir)
	f, err := os.Open(vecPath)
	if err != nil {
		return false
	}
	hdr, err := vector.ReadHeader(bufio.NewReader(f))
	_ = f.Close()
	if err != nil {
		return false
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return false
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return uuid.UUID(hdr.Generation) == uuid.Nil
	}
	var head struct {
		Generation string `json:"generation"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return false
	}
	gen, err := uuid.Parse(head.Generation)
	return err == nil && gen == uuid.UUID(hdr.Generation)
}

// stagePrevious links the current pair to *.prev before Save replaces it. An
// existing backup is kept when the current pair is torn, since it is then the
// newest pair known to be whole.
func stagePrevious(dir string) error {
	if !Exists(dir) {
		return nil
	}
	if hasPrevious(dir) && !consistent(dir) {
		return nil
	}
	vecPath, metaPath := Paths(dir)
	prevVec, prevMeta := prevPaths(dir)
	if err := linkOrCopy(vecPath, prevVec); err != nil {
		return err
	}
	return linkOrCopy(metaPath, prevMeta)
}

func linkOrCopy(src, dst string) error {
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	return copyFile(src, dst)
}

// dropPrevious removes the backup pair. Best effort.
func dropPrevious(dir string) {
	prevVec, prevMeta := prevPaths(dir)
	_ = os.Remove(prevMeta)
	_ = os.Remove(prevVec)
}
