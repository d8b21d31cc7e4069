// Package xattrtag mirrors registry Tag state onto a file's extended
// attributes, so a tag travels with the file under cp/mv and can be read
// without the registry. See spec §4.1, §6.
package xattrtag

import (
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"syscall"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/xattr"

	wutag "github.com/wutag-go/wutag"
)

// Namespace is the kernel-enforced xattr namespace prefix every tag key
// lives under on regular files and directories.
const Namespace = "user.wutag."

// privilegedNamespace is used on symlinks where the OS forbids user.*
// xattrs; writing here requires elevated privilege.
const privilegedNamespace = "trusted.wutag."

// payload is the CBOR-encoded structure stored (base64'd) in a key, and
// optionally as the attribute's value payload when a Value is attached.
type payload struct {
	Name  string `cbor:"name"`
	Color string `cbor:"color"`
}

type valuePayload struct {
	Name string `cbor:"name"`
}

// Save attaches tag to path. It is an error if a tag with the same name is
// already present on the file.
func Save(path string, tag wutag.Tag, value *wutag.Value) error {
	existing, err := List(path)
	if err != nil {
		return err
	}
	for _, t := range existing {
		if t.Name == tag.Name {
			return &wutag.Error{Kind: wutag.ErrTagExists, Op: "Save", Message: "tag " + tag.Name + " already present on " + path}
		}
	}

	key, err := encodeKey(tag)
	if err != nil {
		return err
	}

	var payloadBytes []byte
	if value != nil {
		payloadBytes, err = cbor.Marshal(valuePayload{Name: value.Name})
		if err != nil {
			return &wutag.Error{Kind: wutag.ErrGeneral, Op: "Save", Inner: err}
		}
	}

	return writeAttr(path, key, payloadBytes)
}

// List enumerates every wutag-namespaced key on path and decodes it into a
// Tag. Keys that fail to decode are skipped (forward compatibility).
func List(path string) ([]wutag.Tag, error) {
	names, err := listNames(path)
	if err != nil {
		return nil, err
	}

	var tags []wutag.Tag
	for _, n := range names {
		ns, rest, ok := splitNamespace(n)
		if !ok {
			continue
		}
		_ = ns
		tag, err := decodeKey(rest)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// Has reports whether path carries any wutag tag.
func Has(path string) (bool, error) {
	tags, err := List(path)
	if err != nil {
		return false, err
	}
	return len(tags) > 0, nil
}

// Remove deletes the single key on path whose decoded Tag matches name.
func Remove(path, name string) error {
	names, err := listNames(path)
	if err != nil {
		return err
	}
	for _, n := range names {
		ns, rest, ok := splitNamespace(n)
		if !ok {
			continue
		}
		tag, err := decodeKey(rest)
		if err != nil {
			continue
		}
		if tag.Name == name {
			if err := xattr.Remove(path, ns+rest); err != nil {
				if symlinkErr := classifySymlinkErr(err); symlinkErr != nil {
					return symlinkErr
				}
				return &wutag.Error{Kind: wutag.ErrIO, Op: "Remove", Inner: err}
			}
			return nil
		}
	}
	return &wutag.Error{Kind: wutag.ErrTagNotOnFile, Op: "Remove", Message: "tag " + name + " not present on " + path}
}

// Clear deletes every wutag-namespaced key on path.
func Clear(path string) error {
	names, err := listNames(path)
	if err != nil {
		return err
	}
	for _, n := range names {
		ns, rest, ok := splitNamespace(n)
		if !ok {
			continue
		}
		if err := xattr.Remove(path, ns+rest); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &wutag.Error{Kind: wutag.ErrIO, Op: "Clear", Inner: err}
		}
	}
	return nil
}

func encodeKey(tag wutag.Tag) (string, error) {
	b, err := cbor.Marshal(payload{Name: tag.Name, Color: tag.Color.String()})
	if err != nil {
		return "", &wutag.Error{Kind: wutag.ErrGeneral, Op: "encodeKey", Inner: err}
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeKey(encoded string) (wutag.Tag, error) {
	b, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return wutag.Tag{}, err
	}
	var p payload
	if err := cbor.Unmarshal(b, &p); err != nil {
		return wutag.Tag{}, err
	}
	color, err := wutag.ParseColor(p.Color)
	if err != nil {
		color = wutag.DefaultColor
	}
	return wutag.Tag{Name: p.Name, Color: color}, nil
}

func splitNamespace(key string) (ns, rest string, ok bool) {
	if strings.HasPrefix(key, Namespace) {
		return Namespace, strings.TrimPrefix(key, Namespace), true
	}
	if strings.HasPrefix(key, privilegedNamespace) {
		return privilegedNamespace, strings.TrimPrefix(key, privilegedNamespace), true
	}
	return "", "", false
}

// writeAttr sets the namespaced key on path, retrying in the privileged
// namespace for symlinks when the kernel forbids user.* there.
func writeAttr(path, key string, value []byte) error {
	isSymlink, err := isSymlink(path)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrIO, Op: "writeAttr", Inner: err}
	}

	if !isSymlink {
		if err := xattr.Set(path, Namespace+key, value); err != nil {
			return &wutag.Error{Kind: wutag.ErrIO, Op: "writeAttr", Inner: err}
		}
		return nil
	}

	if err := xattr.LSet(path, Namespace+key, value); err == nil {
		return nil
	}
	if err := xattr.LSet(path, privilegedNamespace+key, value); err != nil {
		if symlinkErr := classifySymlinkErr(err); symlinkErr != nil {
			return symlinkErr
		}
		return &wutag.Error{Kind: wutag.ErrIO, Op: "writeAttr", Inner: err}
	}
	return nil
}

// listNames does the two-pass size-then-fill xattr listing; AttrsChanged is
// returned if the attribute set mutates between the two passes.
func listNames(path string) ([]string, error) {
	isSymlink, err := isSymlink(path)
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrIO, Op: "listNames", Inner: err}
	}

	list := xattr.List
	if isSymlink {
		list = xattr.LList
	}

	first, err := list(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &wutag.Error{Kind: wutag.ErrIO, Op: "listNames", Inner: err}
	}
	second, err := list(path)
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrIO, Op: "listNames", Inner: err}
	}
	if len(first) != len(second) {
		return nil, &wutag.Error{Kind: wutag.ErrAttrsChanged, Op: "listNames", Message: "attribute set changed between list calls"}
	}
	return second, nil
}

func isSymlink(path string) (bool, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return fi.Mode()&os.ModeSymlink != 0, nil
}

// classifySymlinkErr distinguishes the two documented symlink-xattr
// failure modes from a generic I/O error. See spec §7.
func classifySymlinkErr(err error) error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return nil
	}
	switch errno {
	case syscall.EPERM:
		return &wutag.Error{Kind: wutag.ErrSymlinkUnavailable1, Op: "xattrtag", Message: "operation not permitted; retry in trusted namespace", Inner: err}
	case syscall.ENOTSUP, syscall.EOPNOTSUPP:
		return &wutag.Error{Kind: wutag.ErrSymlinkUnavailable95, Op: "xattrtag", Message: "operation not supported on this filesystem", Inner: err}
	default:
		return nil
	}
}
