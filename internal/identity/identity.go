// Package identity computes the content-and-metadata fingerprint the
// registry stores per file (spec §4.3).
package identity

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/zeebo/blake3"

	wutag "github.com/wutag-go/wutag"
)

// Fingerprint computes a wutag.File for the entry at path. For directories,
// Hash is Blake3 over the "\0"-joined, sorted hashes of the directory's
// immediate children (depth 1 only), computed in parallel across a
// worker pool sized to runtime.NumCPU(). For everything else, Hash is
// Blake3 over the file's content followed by a big-endian encoding of the
// permission bits.
func Fingerprint(ctx context.Context, path string) (wutag.File, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return wutag.File{}, &wutag.Error{Kind: wutag.ErrIO, Op: "Fingerprint", Inner: err}
	}

	dir, name := filepath.Split(filepath.Clean(path))
	dir = filepath.Clean(dir)

	f := wutag.File{
		Directory: dir,
		Name:      name,
		IsDir:     info.IsDir(),
		Size:      info.Size(),
		Mode:      uint32(info.Mode().Perm()),
		Mtime:     info.ModTime(),
	}

	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		f.Inode = st.Ino
		f.Links = uint64(st.Nlink)
		f.UID = st.Uid
		f.GID = st.Gid
		f.Ctime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	} else {
		f.Ctime = info.ModTime()
	}

	hash, err := computeHash(ctx, path, info)
	if err != nil {
		return wutag.File{}, err
	}
	f.Hash = hash

	if !info.IsDir() {
		mt, err := mimetype.DetectFile(path)
		if err == nil {
			f.Mime = mt.String()
		}
	} else {
		f.Mime = "inode/directory"
	}

	return f, nil
}

func computeHash(ctx context.Context, path string, info os.FileInfo) ([]byte, error) {
	if info.IsDir() {
		return hashDirectory(ctx, path)
	}
	return hashFile(path, info.Mode().Perm())
}

func hashFile(path string, perm os.FileMode) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrIO, Op: "hashFile", Inner: err}
	}
	defer fh.Close()

	h := blake3.New()
	if _, err := io.Copy(h, fh); err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrIO, Op: "hashFile", Inner: err}
	}
	var modeBuf [4]byte
	binary.BigEndian.PutUint32(modeBuf[:], uint32(perm))
	h.Write(modeBuf[:])
	return h.Sum(nil), nil
}

// hashDirectory hashes the immediate children of dir in parallel, then
// combines the sorted child hashes. Child hashing does not recurse past
// depth 1, per spec §4.3.
func hashDirectory(ctx context.Context, dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrIO, Op: "hashDirectory", Inner: err}
	}

	type result struct {
		name string
		hash []byte
		err  error
	}

	results := make([]result, len(entries))
	sem := make(chan struct{}, max(1, runtime.NumCPU()))
	var wg sync.WaitGroup

	for i, ent := range entries {
		wg.Add(1)
		go func(i int, ent os.DirEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results[i] = result{name: ent.Name(), err: ctx.Err()}
				return
			}
			childPath := filepath.Join(dir, ent.Name())
			info, err := ent.Info()
			if err != nil {
				results[i] = result{name: ent.Name(), err: err}
				return
			}
			var h []byte
			if info.IsDir() {
				// Depth-1 only: hash a shallow stat-derived digest rather
				// than recursing into grandchildren.
				h = shallowDirDigest(info)
			} else {
				h, err = hashFile(childPath, info.Mode().Perm())
			}
			results[i] = result{name: ent.Name(), hash: h, err: err}
		}(i, ent)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return bytes.Compare(results[i].hash, results[j].hash) < 0 })

	h := blake3.New()
	for i, r := range results {
		if r.err != nil && !errors.Is(r.err, context.Canceled) {
			continue
		}
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write(r.hash)
	}
	return h.Sum(nil), nil
}

func shallowDirDigest(info os.FileInfo) []byte {
	h := blake3.New()
	h.Write([]byte(info.Name()))
	var modeBuf [4]byte
	binary.BigEndian.PutUint32(modeBuf[:], uint32(info.Mode().Perm()))
	h.Write(modeBuf[:])
	return h.Sum(nil)
}
