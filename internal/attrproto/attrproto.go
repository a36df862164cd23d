// Package attrproto implements the typed attribute stream both daemons use
// to frame requests and replies: a netstring-framed sequence of name/value
// pairs terminated by an empty name, modeled on the Postfix attribute
// protocol.
package attrproto

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Type tags an attribute's value kind.
type Type uint8

const (
	TypeStr Type = iota
	TypeNum
)

// Flag bits carried alongside each attribute.
const (
	// FlagMore indicates the sender intends further attributes in the
	// same frame.
	FlagMore = 1 << 0
	// FlagStrict, set on a Reader, rejects attributes the reader did not
	// ask for.
	FlagStrict = 1 << 1
)

// Attr is one name/value pair within a frame.
type Attr struct {
	Name string
	Type Type
	Str  string
	Num  int64
}

// Writer serializes attributes onto a stream using length-prefixed
// ("netstring") encoding for each field.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter wraps w for attribute output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) netstring(s string) {
	if w.err != nil {
		return
	}
	if _, err := fmt.Fprintf(w.w, "%d:", len(s)); err != nil {
		w.err = err
		return
	}
	if _, err := w.w.WriteString(s); err != nil {
		w.err = err
		return
	}
	if err := w.w.WriteByte(','); err != nil {
		w.err = err
	}
}

// PrintStr writes a string-valued attribute.
func (w *Writer) PrintStr(name, value string) error {
	w.netstring(name)
	if w.err != nil {
		return w.err
	}
	if err := w.w.WriteByte(byte(TypeStr)); err != nil {
		return err
	}
	w.netstring(value)
	return w.err
}

// PrintNum writes a numeric-valued attribute.
func (w *Writer) PrintNum(name string, value int64) error {
	w.netstring(name)
	if w.err != nil {
		return w.err
	}
	if err := w.w.WriteByte(byte(TypeNum)); err != nil {
		return err
	}
	w.netstring(strconv.FormatInt(value, 10))
	return w.err
}

// End writes the terminating empty-name attribute and flushes the frame.
func (w *Writer) End() error {
	w.netstring("")
	if w.err != nil {
		return w.err
	}
	if err := w.w.WriteByte(byte(TypeStr)); err != nil {
		return err
	}
	w.netstring("")
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

// Reader parses attributes off a stream, one frame at a time.
type Reader struct {
	r      *bufio.Reader
	strict bool
	known  map[string]bool
}

// NewReader wraps r for attribute input. When strict is true, Scan returns
// an error for any attribute name not first registered with Expect
// (ATTR_FLAG_STRICT).
func NewReader(r io.Reader, strict bool) *Reader {
	return &Reader{r: bufio.NewReader(r), strict: strict, known: map[string]bool{}}
}

// Expect declares an attribute name as acceptable under strict mode.
func (r *Reader) Expect(names ...string) {
	for _, n := range names {
		r.known[n] = true
	}
}

func (r *Reader) netstring() (string, error) {
	lenStr, err := r.r.ReadString(':')
	if err != nil {
		return "", err
	}
	lenStr = lenStr[:len(lenStr)-1]
	n, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", fmt.Errorf("attrproto: malformed length %q", lenStr)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", err
	}
	comma, err := r.r.ReadByte()
	if err != nil {
		return "", err
	}
	if comma != ',' {
		return "", fmt.Errorf("attrproto: expected ',' terminator, got %q", comma)
	}
	return string(buf), nil
}

// Scan reads the next attribute in the current frame. It returns
// (attr, true, nil) for a regular attribute, and (Attr{}, false, nil) at
// the terminating empty-name attribute (end of frame).
func (r *Reader) Scan() (Attr, bool, error) {
	name, err := r.netstring()
	if err != nil {
		return Attr{}, false, err
	}
	if name == "" {
		// Consume and discard the paired type+value of the terminator.
		if _, err := r.r.ReadByte(); err != nil {
			return Attr{}, false, err
		}
		if _, err := r.netstring(); err != nil {
			return Attr{}, false, err
		}
		return Attr{}, false, nil
	}

	if r.strict && !r.known[name] {
		return Attr{}, false, fmt.Errorf("attrproto: unexpected attribute %q under ATTR_FLAG_STRICT", name)
	}

	typeByte, err := r.r.ReadByte()
	if err != nil {
		return Attr{}, false, err
	}

	switch Type(typeByte) {
	case TypeStr:
		v, err := r.netstring()
		if err != nil {
			return Attr{}, false, err
		}
		return Attr{Name: name, Type: TypeStr, Str: v}, true, nil
	case TypeNum:
		v, err := r.netstring()
		if err != nil {
			return Attr{}, false, err
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Attr{}, false, fmt.Errorf("attrproto: malformed numeric attribute %q: %q", name, v)
		}
		return Attr{Name: name, Type: TypeNum, Num: n}, true, nil
	default:
		return Attr{}, false, fmt.Errorf("attrproto: unknown attribute type %d for %q", typeByte, name)
	}
}

// ScanAll reads every attribute of the current frame into a map keyed by
// name, stopping at the terminator. A convenience for handlers that don't
// need FlagMore-aware streaming.
func (r *Reader) ScanAll() (map[string]Attr, error) {
	attrs := make(map[string]Attr)
	for {
		a, ok, err := r.Scan()
		if err != nil {
			return nil, err
		}
		if !ok {
			return attrs, nil
		}
		attrs[a.Name] = a
	}
}
