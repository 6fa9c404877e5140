package directory

import (
    "crypto/rand"
    "math/big"

    "golang.org/x/text/encoding/unicode"

    "github.com/mst-edu/idm-infra/pkg/errors"
)

// encodeUnicodePwd implements the directory's vendor-specific
// unicodePwd encoding: wrap the plaintext in ASCII double quotes and
// encode the whole quoted string as UTF-16LE.
func encodeUnicodePwd(plaintext string) ([]byte, error) {
    enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
    out, err := enc.Bytes([]byte(`"` + plaintext + `"`))
    if err != nil {
        return nil, errors.Wrap(err, errors.ErrInvalidArgument, "failed to encode unicodePwd")
    }
    return out, nil
}

// randomPassword returns a 22-character random password for
// createUser's temporary account password.
func randomPassword() (string, error) {
    const (
        charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*"
        length  = 22
    )
    out := make([]byte, length)
    for i := range out {
        n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
        if err != nil {
            return "", errors.Wrap(err, errors.ErrInternal, "failed to generate random password")
        }
        out[i] = charset[n.Int64()]
    }
    return string(out), nil
}
