package directory

import (
    "fmt"
    "strings"
    "time"

    "github.com/go-ldap/ldap/v3"

    "github.com/mst-edu/idm-infra/pkg/errors"
)

// scopeLabel renders an ldap.Scope* constant as a metrics label.
func scopeLabel(scope int) string {
    switch scope {
    case ldap.ScopeBaseObject:
        return "base"
    case ldap.ScopeSingleLevel:
        return "onelevel"
    default:
        return "subtree"
    }
}

// singleSearch runs one sub- or base-scope search expecting at most one
// entry, used by findDN/findUPN/getAttributes/getDNAttributes.
func (c *Client) singleSearch(base, filter string, scope int, attrs []string) (*Entry, error) {
    if err := c.lock("search"); err != nil {
        return nil, err
    }
    defer c.unlock()

    label := scopeLabel(scope)
    start := time.Now()
    req := ldap.NewSearchRequest(
        base, scope, ldap.NeverDerefAliases, 0, 0, false,
        filter, attrs, nil,
    )
    result, err := c.conn.Search(req)
    c.observeMetric("directory_search_duration", time.Since(start).Seconds(), map[string]string{"scope": label})
    if err != nil {
        c.recordMetric("directory_searches_total", map[string]string{"scope": label, "status": "failed"})
        return nil, errors.Wrap(err, errors.ErrSearchFailed, "search failed")
    }
    c.recordMetric("directory_searches_total", map[string]string{"scope": label, "status": "ok"})
    if len(result.Entries) == 0 {
        return nil, nil
    }
    return c.entryFromLDAP(result.Entries[0])
}

// findDN resolves a sAMAccountName to its distinguished name, falling
// back to a userPrincipalName filter if the sAMAccountName lookup
// returns nothing.
func (c *Client) findDN(sam string) (string, error) {
    filter := fmt.Sprintf("(|(sAMAccountName=%s))", ldap.EscapeFilter(sam))
    entry, err := c.singleSearch(c.cfg.BaseDN, filter, ldap.ScopeWholeSubtree, []string{"distinguishedName"})
    if err != nil {
        return "", err
    }
    if entry != nil {
        return entry.DN, nil
    }

    upnFilter := fmt.Sprintf("(|(userPrincipalName=%s@%s))", ldap.EscapeFilter(sam), ldap.EscapeFilter(c.cfg.Domain))
    entry, err = c.singleSearch(c.cfg.BaseDN, upnFilter, ldap.ScopeWholeSubtree, []string{"distinguishedName"})
    if err != nil {
        return "", err
    }
    if entry == nil {
        return "", nil
    }
    return entry.DN, nil
}

// findHostDN resolves a host's computer-account DN via its service
// principal name.
func (c *Client) findHostDN(host string) (string, error) {
    filter := fmt.Sprintf("(|(servicePrincipalName=host/%s))", ldap.EscapeFilter(host))
    entry, err := c.singleSearch(c.cfg.BaseDN, filter, ldap.ScopeWholeSubtree, []string{"distinguishedName"})
    if err != nil {
        return "", err
    }
    if entry == nil {
        return "", nil
    }
    return entry.DN, nil
}

// findUPN returns the lower-cased userPrincipalName for sam.
func (c *Client) findUPN(sam string) (string, error) {
    entry, err := c.getAttributes(sam, searchOptions{Attributes: []string{"userPrincipalName"}})
    if err != nil {
        return "", err
    }
    if entry == nil {
        return "", nil
    }
    return strings.ToLower(entry.Value("userPrincipalName")), nil
}

// getAttributes fetches a single entry by sAMAccountName, transparently
// expanding range-marked attributes.
func (c *Client) getAttributes(sam string, opts searchOptions) (*Entry, error) {
    base := opts.Base
    if base == "" {
        base = c.cfg.BaseDN
    }
    filter := fmt.Sprintf("(|(sAMAccountName=%s))", ldap.EscapeFilter(sam))
    return c.singleSearch(base, filter, ldap.ScopeWholeSubtree, opts.Attributes)
}

// getDNAttributes fetches a single entry directly by DN.
func (c *Client) getDNAttributes(dn string, attributes []string) (*Entry, error) {
    return c.singleSearch(dn, "(objectClass=*)", ldap.ScopeBaseObject, attributes)
}
