package header

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/meigma/asar/internal/index"
	"github.com/meigma/asar/internal/integrity"
)

// decodeJSON parses the header document into a node tree, keeping object
// key order so directory listings follow the header.
func decodeJSON(doc []byte) (*index.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	root, err := decodeNode(dec, 0)
	if err != nil {
		return nil, corrupt("%v", err)
	}
	if !root.IsDir() {
		return nil, corrupt("root is a %s, want directory", root.Kind)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, corrupt("trailing data after header document")
	}
	return root, nil
}

// nodeFields collects the keys of one entry object before deciding its kind.
type nodeFields struct {
	dir        *index.Node
	link       *string
	size       *uint64
	offset     *uint64
	executable bool
	unpacked   bool
	integrity  *integrity.Record
}

// MaxDepth bounds directory nesting in a header document.
const MaxDepth = 4096

func decodeNode(dec *json.Decoder, depth int) (*index.Node, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("header nesting exceeds %d", MaxDepth)
	}
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var f nodeFields
	for dec.More() {
		key, err := objectKey(dec)
		if err != nil {
			return nil, err
		}
		switch key {
		case "files":
			if f.dir, err = decodeDir(dec, depth); err != nil {
				return nil, err
			}
		case "link":
			var s string
			if err := dec.Decode(&s); err != nil {
				return nil, fmt.Errorf("link: %w", err)
			}
			f.link = &s
		case "size":
			n, err := decodeUint(dec)
			if err != nil {
				return nil, fmt.Errorf("size: %w", err)
			}
			f.size = &n
		case "offset":
			n, err := decodeUint(dec)
			if err != nil {
				return nil, fmt.Errorf("offset: %w", err)
			}
			f.offset = &n
		case "executable":
			if err := dec.Decode(&f.executable); err != nil {
				return nil, fmt.Errorf("executable: %w", err)
			}
		case "unpacked":
			if err := dec.Decode(&f.unpacked); err != nil {
				return nil, fmt.Errorf("unpacked: %w", err)
			}
		case "integrity":
			var rec integrity.Record
			if err := dec.Decode(&rec); err != nil {
				return nil, fmt.Errorf("integrity: %w", err)
			}
			f.integrity = &rec
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return f.node()
}

func (f *nodeFields) node() (*index.Node, error) {
	switch {
	case f.dir != nil:
		f.dir.Unpacked = f.unpacked
		return f.dir, nil
	case f.link != nil:
		return index.NewLink(*f.link), nil
	case f.size != nil:
		n := &index.Node{
			Kind:       index.KindFile,
			Size:       *f.size,
			Executable: f.executable,
			Unpacked:   f.unpacked,
			Integrity:  f.integrity,
		}
		if !f.unpacked {
			if f.offset == nil {
				return nil, errors.New("packed file without offset")
			}
			n.Offset = *f.offset
		}
		return n, nil
	default:
		return nil, errors.New("entry is neither file, directory nor link")
	}
}

func decodeDir(dec *json.Decoder, depth int) (*index.Node, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	dir := index.NewDir()
	for dec.More() {
		name, err := objectKey(dec)
		if err != nil {
			return nil, err
		}
		if err := validName(name); err != nil {
			return nil, err
		}
		if _, dup := dir.Child(name); dup {
			return nil, fmt.Errorf("duplicate entry %q", name)
		}
		child, err := decodeNode(dec, depth+1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		dir.Add(name, child)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return dir, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("invalid entry name %q", name)
	}
	return nil
}

func objectKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("unexpected token %v, want object key", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("unexpected token %v, want %q", tok, want)
	}
	return nil
}

// decodeUint accepts both JSON numbers and decimal strings. Offsets are
// written as strings because JSON numbers cannot carry every uint64.
func decodeUint(dec *json.Decoder) (uint64, error) {
	tok, err := dec.Token()
	if err != nil {
		return 0, err
	}
	var s string
	switch v := tok.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = v
	default:
		return 0, fmt.Errorf("unexpected token %v, want number", tok)
	}
	return strconv.ParseUint(s, 10, 64)
}

// encodeJSON writes root as the header document.
func encodeJSON(root *index.Node) ([]byte, error) {
	if !root.IsDir() {
		return nil, fmt.Errorf("root is a %s, want directory", root.Kind)
	}
	var buf bytes.Buffer
	if err := encodeNode(&buf, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeNode(buf *bytes.Buffer, n *index.Node) error {
	switch n.Kind {
	case index.KindDir:
		buf.WriteString(`{"files":{`)
		first := true
		for name, child := range n.Children() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err := writeString(buf, name); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeNode(buf, child); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		buf.WriteByte('}')
		if n.Unpacked {
			buf.WriteString(`,"unpacked":true`)
		}
		buf.WriteByte('}')
	case index.KindLink:
		buf.WriteString(`{"link":`)
		if err := writeString(buf, n.Link); err != nil {
			return err
		}
		buf.WriteByte('}')
	case index.KindFile:
		buf.WriteString(`{"size":`)
		buf.WriteString(strconv.FormatUint(n.Size, 10))
		if n.Unpacked {
			buf.WriteString(`,"unpacked":true`)
		} else {
			buf.WriteString(`,"offset":"`)
			buf.WriteString(strconv.FormatUint(n.Offset, 10))
			buf.WriteByte('"')
		}
		if n.Executable {
			buf.WriteString(`,"executable":true`)
		}
		if n.Integrity != nil {
			rec, err := json.Marshal(n.Integrity)
			if err != nil {
				return err
			}
			buf.WriteString(`,"integrity":`)
			buf.Write(rec)
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown entry kind %d", n.Kind)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
