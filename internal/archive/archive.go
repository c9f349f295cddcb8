// Package archive opens zipped ODP downloads and zips converted output.
package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

var zipMagic = []byte("PK\x03\x04")

// ErrNoDataFile is returned when an archive holds no file to read.
var ErrNoDataFile = errors.New("archive contains no data file")

// Unzip opens the data file inside a zip archive of the given size. It picks
// the first regular file with a .csv extension, or the only regular file
// when none has one. The returned name is the entry's base name.
func Unzip(r io.ReaderAt, size int64) (io.ReadCloser, string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, "", fmt.Errorf("open zip: %w", err)
	}

	entry, err := dataEntry(zr.File)
	if err != nil {
		return nil, "", err
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open zip entry %s: %w", entry.Name, err)
	}
	return rc, path.Base(entry.Name), nil
}

func dataEntry(files []*zip.File) (*zip.File, error) {
	var regular []*zip.File
	for _, f := range files {
		if !f.Mode().IsRegular() {
			continue
		}
		if strings.EqualFold(path.Ext(f.Name), ".csv") {
			return f, nil
		}
		regular = append(regular, f)
	}
	if len(regular) == 1 {
		return regular[0], nil
	}
	return nil, ErrNoDataFile
}

// Open opens a plain or zipped input file, detected by its leading bytes.
// The returned name is the data file's base name.
func Open(filename string) (io.ReadCloser, string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, "", err
	}

	magic := make([]byte, len(zipMagic))
	n, err := io.ReadFull(f, magic)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, "", fmt.Errorf("read %s: %w", filename, err)
	}

	if !bytes.Equal(magic[:n], zipMagic) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, "", fmt.Errorf("rewind %s: %w", filename, err)
		}
		return f, filepath.Base(filename), nil
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, "", err
	}
	rc, name, err := Unzip(f, info.Size())
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("%s: %w", filename, err)
	}
	return &entryCloser{ReadCloser: rc, file: f}, name, nil
}

type entryCloser struct {
	io.ReadCloser
	file *os.File
}

func (c *entryCloser) Close() error {
	return errors.Join(c.ReadCloser.Close(), c.file.Close())
}

// Zip writes a single deflated entry named name with the content of r.
func Zip(w io.Writer, name string, r io.Reader) error {
	zw := NewWriter(w, name)
	if _, err := io.Copy(zw, r); err != nil {
		return errors.Join(fmt.Errorf("zip %s: %w", name, err), zw.Close())
	}
	return zw.Close()
}

// Writer streams one zip entry. Close finishes the archive but does not
// close the underlying writer.
type Writer struct {
	zw   *zip.Writer
	buf  *bufio.Writer
	name string
	err  error
}

// NewWriter starts an archive on w with a single entry called name.
func NewWriter(w io.Writer, name string) *Writer {
	zw := zip.NewWriter(w)
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		err = fmt.Errorf("create zip entry %s: %w", name, err)
	}
	return &Writer{zw: zw, buf: bufio.NewWriter(entry), name: name, err: err}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	return w.buf.Write(p)
}

func (w *Writer) Close() error {
	if w.err != nil {
		return errors.Join(w.err, w.zw.Close())
	}
	if err := w.buf.Flush(); err != nil {
		return errors.Join(fmt.Errorf("zip %s: %w", w.name, err), w.zw.Close())
	}
	return w.zw.Close()
}

// Create creates filename as a zip archive holding one entry.
func Create(filename, entryName string) (io.WriteCloser, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &fileWriter{Writer: NewWriter(f, entryName), file: f}, nil
}

type fileWriter struct {
	*Writer
	file *os.File
}

func (w *fileWriter) Close() error {
	return errors.Join(w.Writer.Close(), w.file.Close())
}
