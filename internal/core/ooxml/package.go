// Package ooxml rewrites identifier text inside zip-based office documents without
// disturbing the bytes it does not change.
package ooxml

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrMemberNotFound is returned for a part the package does not contain.
var ErrMemberNotFound = errors.New("ooxml: member not found")

// Package is an office package held in memory. Members keep their order and
// compression on write; only replaced members are recompressed.
type Package struct {
	files    []*zip.File
	index    map[string]*zip.File
	replaced map[string][]byte
	comment  string
}

// OpenPackage reads the package at path.
func OpenPackage(path string) (*Package, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadPackage(raw)
}

// ReadPackage parses a package from raw zip bytes.
func ReadPackage(raw []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	p := &Package{
		files:    zr.File,
		index:    make(map[string]*zip.File, len(zr.File)),
		replaced: map[string][]byte{},
		comment:  zr.Comment,
	}
	for _, f := range zr.File {
		p.index[f.Name] = f
	}
	return p, nil
}

// Names lists the members in archive order.
func (p *Package) Names() []string {
	out := make([]string, len(p.files))
	for i, f := range p.files {
		out[i] = f.Name
	}
	return out
}

// Read returns the current content of a member.
func (p *Package) Read(name string) ([]byte, error) {
	if data, ok := p.replaced[name]; ok {
		return data, nil
	}
	f, ok := p.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Replace sets new content for an existing member.
func (p *Package) Replace(name string, data []byte) error {
	if _, ok := p.index[name]; !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, name)
	}
	p.replaced[name] = data
	return nil
}

// Modified reports whether any member was replaced.
func (p *Package) Modified() bool { return len(p.replaced) > 0 }

// Write emits the package as a zip archive.
func (p *Package) Write(w io.Writer) error {
	zw := zip.NewWriter(w)
	if p.comment != "" {
		if err := zw.SetComment(p.comment); err != nil {
			return err
		}
	}
	for _, f := range p.files {
		data, ok := p.replaced[f.Name]
		if !ok {
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}
		hdr := f.FileHeader
		hdr.CRC32 = 0
		hdr.CompressedSize, hdr.CompressedSize64 = 0, 0
		hdr.UncompressedSize, hdr.UncompressedSize64 = 0, 0
		hdr.Extra = nil
		fw, err := zw.CreateHeader(&hdr)
		if err != nil {
			return fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return zw.Close()
}

// Save writes the package to path atomically.
func (p *Package) Save(path string) error {
	return writeFileAtomic(path, p.Write)
}
