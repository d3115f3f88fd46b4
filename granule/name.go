package granule

import (
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/richielo/basicFusion/errkind"
)

// Name returns the file name recorded for the granule at path: everything
// after the last slash.
func Name(path string) (string, error) {
	name := path[strings.LastIndexByte(path, '/')+1:]
	if name == "" || name == "." || name == ".." {
		return "", errkind.Errorf(errkind.InvalidInput, "granule name", path, "no file name")
	}
	return name, nil
}

// Fingerprint returns the hex BLAKE3-256 digest of r's contents.
func Fingerprint(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", errkind.E(errkind.IOError, "fingerprint", "", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintFile fingerprints the file at path.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errkind.E(errkind.IOError, "fingerprint", path, err)
	}
	defer f.Close()
	sum, err := Fingerprint(f)
	if err != nil {
		return "", errkind.E(errkind.IOError, "fingerprint", path, err)
	}
	return sum, nil
}
