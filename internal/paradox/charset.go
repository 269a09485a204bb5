// Code page handling for alpha fields and field names.

package paradox

import (
	"bytes"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DefaultCodePage is used for new tables and for files that declare none.
const DefaultCodePage = 1252

var codePages = map[uint16]*charmap.Charmap{
	437:  charmap.CodePage437,
	850:  charmap.CodePage850,
	852:  charmap.CodePage852,
	866:  charmap.CodePage866,
	1250: charmap.Windows1250,
	1251: charmap.Windows1251,
	1252: charmap.Windows1252,
}

// Charset converts between UTF-8 and the table's code page.
type Charset struct {
	codePage uint16
	enc      encoding.Encoding
}

// CharsetFor returns the converter for a DOS or Windows code page number.
//
// Unsupported code pages fall back to Windows-1252 but keep their number so
// the header is preserved on rewrite.
func CharsetFor(codePage uint16) Charset {
	if codePage == 0 {
		codePage = DefaultCodePage
	}
	cm, ok := codePages[codePage]
	if !ok {
		cm = charmap.Windows1252
	}
	return Charset{codePage: codePage, enc: cm}
}

// CodePage returns the code page number.
func (c Charset) CodePage() uint16 {
	return c.codePage
}

func (c Charset) encoding() encoding.Encoding {
	if c.enc == nil {
		return charmap.Windows1252
	}
	return c.enc
}

// decode converts NUL terminated or NUL padded bytes to a string.
func (c Charset) decode(b []byte) (string, error) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	out, err := c.encoding().NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// encode converts s to the code page, replacing characters it cannot
// represent.
func (c Charset) encode(s string) ([]byte, error) {
	return encoding.ReplaceUnsupported(c.encoding().NewEncoder()).Bytes([]byte(s))
}

// GetAlpha decodes an alpha field.
//
// Returns ErrNull when the field is empty.
func (c Charset) GetAlpha(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrFieldLength
	}
	if data[0] == 0 {
		return "", ErrNull
	}
	return c.decode(data)
}

// PutAlpha encodes s into an alpha field, truncating and NUL padding it to
// the field length.
func (c Charset) PutAlpha(data []byte, s string) error {
	if len(data) == 0 {
		return ErrFieldLength
	}
	b, err := c.encode(s)
	if err != nil {
		return err
	}
	n := copy(data, b)
	clear(data[n:])
	return nil
}
