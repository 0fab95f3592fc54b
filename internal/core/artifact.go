package core

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// Artifact is a file the toolchain produced in its working directory.
type Artifact struct {
	// Path is the location inside the toolchain directory.
	Path string

	Size int64

	// Digest is the hex sha256 of the file content.
	Digest string
}

// Digest returns the hex sha256 of content.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// DeriveOutputNames returns the default bytecode and header file names for a
// source file: its base name stem with .scr and .h.
func DeriveOutputNames(source string) (scr, header string) {
	stem := Stem(source)
	return stem + ".scr", stem + ".h"
}

// Stem is the base name of path without its final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
