// Package encrypt wraps the registry file in an optional PGP
// confidentiality layer. Grounded on go-git's plumbing/object/signature/pgp
// package (the one openpgp consumer in the retrieved pack) for how to
// shape a small Entity-bearing wrapper around
// github.com/ProtonMail/go-crypto/openpgp; unlike go-git's signer/verifier
// (which only sign detached messages), registry-at-rest confidentiality
// needs openpgp's own Encrypt/ReadMessage pair, used directly here.
package encrypt

import (
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"

	wutag "github.com/wutag-go/wutag"
)

// Filter selects whether the registry file is stored in the clear or
// behind a PGP envelope, per DESIGN NOTES §9's {Gpg, None} pair.
type Filter int

const (
	None Filter = iota
	Gpg
)

// Codec applies Filter to the registry file around a command's open/close
// lifecycle. A None Codec is a pass-through.
type Codec struct {
	filter   Filter
	entities openpgp.EntityList
}

// NewNone returns a pass-through Codec that never touches the registry
// file's bytes.
func NewNone() *Codec { return &Codec{filter: None} }

// NewGpg returns a Codec that decrypts/encrypts the registry file using
// the armored key ring read from keyringPath.
func NewGpg(keyringPath string) (*Codec, error) {
	f, err := os.Open(keyringPath)
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrIO, Op: "encrypt.NewGpg", Inner: err}
	}
	defer f.Close()

	entities, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrGeneral, Op: "encrypt.NewGpg", Inner: err}
	}
	return &Codec{filter: Gpg, entities: entities}, nil
}

// Open returns the path to a plaintext registry file ready for
// database/sql to open. For a None Codec this is registryPath itself;
// for a Gpg Codec it is a private temp file holding the decrypted
// contents of registryPath, which Close re-encrypts and then removes.
func (c *Codec) Open(registryPath string) (plainPath string, err error) {
	if c.filter == None {
		return registryPath, nil
	}

	enc, err := os.Open(registryPath)
	if err != nil {
		if os.IsNotExist(err) {
			// First run: nothing to decrypt yet, a fresh plaintext
			// registry will be created and encrypted on Close.
			return c.tempName(registryPath), nil
		}
		return "", &wutag.Error{Kind: wutag.ErrIO, Op: "encrypt.Open", Inner: err}
	}
	defer enc.Close()

	msg, err := openpgp.ReadMessage(enc, c.entities, nil, nil)
	if err != nil {
		return "", &wutag.Error{Kind: wutag.ErrGeneral, Op: "encrypt.Open", Inner: err}
	}

	tmp := c.tempName(registryPath)
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return "", &wutag.Error{Kind: wutag.ErrIO, Op: "encrypt.Open", Inner: err}
	}
	defer out.Close()

	if _, err := io.Copy(out, msg.UnverifiedBody); err != nil {
		return "", &wutag.Error{Kind: wutag.ErrGeneral, Op: "encrypt.Open", Inner: err}
	}
	return tmp, nil
}

// Close re-encrypts plainPath back over registryPath and removes the
// temp plaintext. A no-op for a None Codec.
func (c *Codec) Close(registryPath, plainPath string) error {
	if c.filter == None {
		return nil
	}
	defer os.Remove(plainPath)

	plain, err := os.Open(plainPath)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrIO, Op: "encrypt.Close", Inner: err}
	}
	defer plain.Close()

	out, err := os.OpenFile(registryPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrIO, Op: "encrypt.Close", Inner: err}
	}
	defer out.Close()

	w, err := openpgp.Encrypt(out, c.entities, nil, nil, nil)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "encrypt.Close", Inner: err}
	}
	if _, err := io.Copy(w, plain); err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "encrypt.Close", Inner: err}
	}
	return w.Close()
}

func (c *Codec) tempName(registryPath string) string {
	return registryPath + ".plain.tmp"
}
