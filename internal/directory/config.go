package directory

import (
    "fmt"
    "strings"
    "time"
)

// Transport selects plain LDAP or LDAP-over-TLS.
type Transport int

const (
    TransportTLS   Transport = iota // ldaps://, also used for Global Catalog TLS
    TransportPlain                  // ldap://
)

// Well-known directory service and global catalog ports.
const (
    PortGlobalCatalogTLS   = 3269
    PortGlobalCatalogPlain = 3268
    PortDirectoryTLS       = 636
    PortDirectoryPlain     = 389
)

// Config is the explicit construction record for a Client; there is no
// free-form option bag, unknown settings fail at the config layer.
type Config struct {
    User     string
    Password *string // nil triggers AuthProvider.Get(User, "ads")
    Domain   string  // "mst.edu" | "umr.edu", or any realm the caller configures
    Server   string  // explicit server host; empty derives one from Domain
    Port     int     // explicit port; 0 selects the default for Transport/UseGlobalCatalog
    Transport

    UseGlobalCatalog bool
    PageSize         int // default 25
    Timeout          time.Duration // default 60s
    Debug            bool
    BaseDN           string // explicit base DN; empty derives one from Domain
}

// Retries is the fixed bind retry budget.
const Retries = 4

func (c Config) withDefaults() Config {
    if c.PageSize <= 0 {
        c.PageSize = 25
    }
    if c.Timeout <= 0 {
        c.Timeout = 60 * time.Second
    }
    if c.Port == 0 {
        c.Port = c.defaultPort()
    }
    if c.BaseDN == "" {
        c.BaseDN = c.defaultBaseDN()
    }
    return c
}

func (c Config) defaultPort() int {
    switch {
    case c.UseGlobalCatalog && c.Transport == TransportTLS:
        return PortGlobalCatalogTLS
    case c.UseGlobalCatalog:
        return PortGlobalCatalogPlain
    case c.Transport == TransportPlain:
        return PortDirectoryPlain
    default:
        return PortDirectoryTLS
    }
}

// defaultBaseDN derives a base DN from Domain: each label of the
// domain becomes a DC= component, except that a Global Catalog search
// is rooted at the forest, i.e. only the TLD ("edu").
func (c Config) defaultBaseDN() string {
    if c.UseGlobalCatalog {
        labels := strings.Split(c.Domain, ".")
        return "DC=" + labels[len(labels)-1]
    }

    labels := strings.Split(c.Domain, ".")
    parts := make([]string, len(labels))
    for i, l := range labels {
        parts[i] = "DC=" + l
    }
    return strings.Join(parts, ",")
}

func (c Config) serverOrDefault() string {
    if c.Server != "" {
        return c.Server
    }
    return c.Domain
}

func (c Config) dialURL() string {
    scheme := "ldaps"
    if c.Transport == TransportPlain {
        scheme = "ldap"
    }
    return fmt.Sprintf("%s://%s:%d", scheme, c.serverOrDefault(), c.Port)
}
