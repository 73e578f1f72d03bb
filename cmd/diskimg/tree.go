package main

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pcediskimg/diskimage/fat"
	"github.com/pcediskimg/diskimage/progress"
)

// readTree walks a host directory into the []*fat.FileDescriptor shape
// fat.Build wants (spec §4.5's builder input), recursing into
// subdirectories and sorting each directory's entries by name so repeated
// builds from the same source tree are deterministic. Every file's bytes
// are copied through a progress.Writer so a concurrent Reporter can show
// how far the host-side read has gotten on a large tree.
func readTree(dir string) ([]*fat.FileDescriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []*fat.FileDescriptor
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		if e.IsDir() {
			children, err := readTree(full)
			if err != nil {
				return nil, err
			}
			out = append(out, &fat.FileDescriptor{
				Name:  e.Name(),
				Attr:  fat.AttrSubdir,
				Date:  info.ModTime(),
				Size:  -1,
				Files: children,
			})
			continue
		}
		data, err := readCounted(full)
		if err != nil {
			return nil, err
		}
		out = append(out, &fat.FileDescriptor{
			Name: e.Name(),
			Attr: fat.AttrArchive,
			Date: info.ModTime(),
			Size: len(data),
			Data: data,
		})
	}
	return out, nil
}

// readCounted reads full's contents, tallying bytes read through a
// progress.Writer as it goes.
func readCounted(full string) ([]byte, error) {
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf []byte
	w := progress.Writer{}
	chunk := make([]byte, 64*1024)
	for {
		n, err := f.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			w.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}
