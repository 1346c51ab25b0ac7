package peers

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"sync"

	"github.com/ugorji/go/codec"
)

const jsonNeighborsPath = "neighbors.json"

// JSONNeighbors is used to provide neighbor persistence on disk in the form
// of a JSON list of udp:// URIs. This allows human operators to manipulate the
// file.
type JSONNeighbors struct {
	l    sync.Mutex
	path string
}

// NewJSONNeighbors creates a new JSONNeighbors store in the base directory.
func NewJSONNeighbors(base string) *JSONNeighbors {
	return &JSONNeighbors{
		path: filepath.Join(base, jsonNeighborsPath),
	}
}

// Path returns the location of the file.
func (j *JSONNeighbors) Path() string {
	return j.path
}

// URIs reads the file.
func (j *JSONNeighbors) URIs() ([]string, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	// Check for no neighbors
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, nil
	}

	var uris []string
	dec := codec.NewDecoderBytes(buf, new(codec.JsonHandle))
	if err := dec.Decode(&uris); err != nil {
		return nil, err
	}
	return uris, nil
}

// Write persists a list of URIs.
func (j *JSONNeighbors) Write(uris []string) error {
	j.l.Lock()
	defer j.l.Unlock()

	var buf []byte
	jh := &codec.JsonHandle{Indent: 2}
	if err := codec.NewEncoderBytes(&buf, jh).Encode(uris); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf, 0644)
}
