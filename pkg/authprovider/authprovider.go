// Package authprovider defines the credential-lookup contract
// (Get(user, realm) -> secret) and a minimal environment-backed
// default implementation.
package authprovider

import (
    "fmt"
    "os"
    "strings"

    "github.com/mst-edu/idm-infra/pkg/errors"
)

// AuthProvider resolves a secret for a (user, realm) pair. Production
// deployments are expected to supply their own implementation (vault,
// keytab store, secrets manager); this package only needs the contract.
type AuthProvider interface {
    Get(user, realm string) (string, error)
}

// EnvProvider looks up "<PREFIX>_<REALM>_<USER>" (all upper-cased, non
// alphanumerics replaced with underscores) in the process environment.
// It exists so the module is runnable without a separate secrets
// service; it is not meant to be the production AuthProvider.
type EnvProvider struct {
    Prefix string
}

func NewEnvProvider(prefix string) *EnvProvider {
    if prefix == "" {
        prefix = "IDM_SECRET"
    }
    return &EnvProvider{Prefix: prefix}
}

func (p *EnvProvider) Get(user, realm string) (string, error) {
    key := envKey(p.Prefix, realm, user)
    if v, ok := os.LookupEnv(key); ok && v != "" {
        return v, nil
    }
    return "", errors.New(errors.ErrAuthFailed, fmt.Sprintf("no secret found for %s@%s (expected env %s)", user, realm, key))
}

func envKey(prefix, realm, user string) string {
    clean := func(s string) string {
        var b strings.Builder
        for _, r := range strings.ToUpper(s) {
            if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
                b.WriteRune(r)
            } else {
                b.WriteRune('_')
            }
        }
        return b.String()
    }
    return fmt.Sprintf("%s_%s_%s", clean(prefix), clean(realm), clean(user))
}
