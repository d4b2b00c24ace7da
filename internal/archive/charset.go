package archive

import (
	"archive/zip"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultCharset is the entry-name encoding used when none is configured.
const DefaultCharset = "utf-8"

// zipFlagUTF8 is general purpose bit 11 of a zip entry header: the entry's
// name and comment are UTF-8 encoded.
const zipFlagUTF8 = 0x800

// nameCodec converts entry names between Go strings and the archive's
// on-disk name encoding.
//
// Zip tools of the GBK era wrote names in the system code page without
// setting the UTF-8 flag, so a charset is needed to read those names back.
// Names carrying the UTF-8 flag are always taken as-is.
type nameCodec struct {
	charset string
	enc     encoding.Encoding
	utf8    bool
}

// newNameCodec resolves a charset label (WHATWG names such as "utf-8",
// "gbk", "gb18030", "big5", "shift_jis"). An empty label selects
// DefaultCharset.
func newNameCodec(charset string) (*nameCodec, error) {
	if charset == "" {
		charset = DefaultCharset
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return &nameCodec{charset: canonical, enc: enc, utf8: canonical == "utf-8"}, nil
}

// ValidateCharset reports whether charset names a supported encoding.
func ValidateCharset(charset string) error {
	_, err := newNameCodec(charset)
	return err
}

// encode returns the on-disk form of name and whether the header must be
// marked as non-UTF-8.
func (c *nameCodec) encode(name string) (string, bool, error) {
	if c.utf8 {
		return name, false, nil
	}
	encoded, err := c.enc.NewEncoder().String(name)
	if err != nil {
		return "", false, fmt.Errorf("name %q is not representable in %s: %w", name, c.charset, err)
	}
	return encoded, true, nil
}

// decode returns the entry name of f as a Go string.
func (c *nameCodec) decode(f *zip.File) (string, error) {
	if c.utf8 || f.Flags&zipFlagUTF8 != 0 {
		return f.Name, nil
	}
	decoded, err := c.enc.NewDecoder().String(f.Name)
	if err != nil {
		return "", fmt.Errorf("name %q is not valid %s: %w", f.Name, c.charset, err)
	}
	return decoded, nil
}
