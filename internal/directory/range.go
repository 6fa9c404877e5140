package directory

import (
    "fmt"
    "regexp"
    "strconv"
    "time"

    "github.com/go-ldap/ldap/v3"

    "github.com/mst-edu/idm-infra/pkg/errors"
)

// rangeNamePattern matches the server's "attr;range=lo-hi" selector.
var rangeNamePattern = regexp.MustCompile(`^(.+);[Rr]ange=(\d+)-(\*|\d+)$`)

func parseRangeName(name string) (attr, low, high string, ranged bool) {
    m := rangeNamePattern.FindStringSubmatch(name)
    if m == nil {
        return "", "", "", false
    }
    return m[1], m[2], m[3], true
}

// expandRange continues a range-retrieval cursor until the
// terminal chunk (high == "*") is reached, appending values to entry in
// server-delivered order. Must be called while the client's session
// lock is already held by the caller (entryFromLDAP runs under
// singleSearch's lock or a SearchIterator's, and GetLargeAttribute
// takes the lock itself before calling this directly).
func (c *Client) expandRange(dn, attr, lastHigh string, entry *Entry) error {
    high := lastHigh
    for {
        nextLow, err := strconv.ParseUint(high, 10, 64)
        if err != nil {
            return errors.Wrap(err, errors.ErrSearchFailed, "invalid range cursor from server")
        }
        nextLow++

        selector := fmt.Sprintf("%s;range=%d-*", attr, nextLow)
        req := ldap.NewSearchRequest(
            dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
            "(objectClass=*)", []string{selector}, nil,
        )

        result, err := c.conn.Search(req)
        if err != nil {
            return errors.Wrap(err, errors.ErrSearchFailed, "range retrieval failed")
        }
        if len(result.Entries) == 0 {
            return nil
        }

        found := false
        for _, a := range result.Entries[0].Attributes {
            name, _, h, ranged := parseRangeName(a.Name)
            if !ranged || name != attr {
                // Unknown ranged attribute names in the same entry are
                // ignored.
                continue
            }
            found = true
            entry.appendValues(attr, a.Values)
            if h == "*" {
                return nil
            }
            high = h
        }
        if !found {
            return nil
        }
    }
}

// GetLargeAttribute fetches the full value set of a many-valued
// attribute via range retrieval, independent of any
// wider search.
func (c *Client) GetLargeAttribute(dn, attr string) ([]string, error) {
    if err := c.lock("getLargeAttribute"); err != nil {
        return nil, err
    }
    defer c.unlock()

    selector := attr + ";range=0-*"
    req := ldap.NewSearchRequest(
        dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
        "(objectClass=*)", []string{selector, attr}, nil,
    )
    start := time.Now()
    result, err := c.conn.Search(req)
    c.observeMetric("directory_search_duration", time.Since(start).Seconds(), map[string]string{"scope": "range"})
    if err != nil {
        c.recordMetric("directory_searches_total", map[string]string{"scope": "range", "status": "failed"})
        return nil, errors.Wrap(err, errors.ErrSearchFailed, "getLargeAttribute failed")
    }
    c.recordMetric("directory_searches_total", map[string]string{"scope": "range", "status": "ok"})
    if len(result.Entries) == 0 {
        return nil, errors.New(errors.ErrNotFound, "entry not found")
    }

    entry := newEntry(dn)
    for _, a := range result.Entries[0].Attributes {
        name, _, high, ranged := parseRangeName(a.Name)
        if !ranged {
            if name == "" && a.Name == attr {
                entry.appendValues(attr, a.Values)
            }
            continue
        }
        if name != attr {
            continue
        }
        entry.appendValues(attr, a.Values)
        if high != "*" {
            if err := c.expandRange(dn, attr, high, entry); err != nil {
                return nil, err
            }
        }
    }
    return entry.Values(attr), nil
}
