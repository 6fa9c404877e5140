package directory

import (
    "time"

    "github.com/go-ldap/ldap/v3"

    "github.com/mst-edu/idm-infra/pkg/errors"
)

// searchOptions configures getAttributesMatch / getAttributesMatchCB /
// listBy.
type searchOptions struct {
    Attributes []string
    Base       string
    MaxRecords int // 0 means unlimited
}

// SearchIterator is the pull-iterator form of a paged search. It holds
// exactly one page of entries at a time, independent of result size,
// and drives the paged-search cursor: issue a search with the current
// cookie, deliver entries, advance the cookie, terminate when the
// server returns no paged control or an empty cookie.
//
// A SearchIterator holds the client's session lock for its entire
// lifetime (one logical, possibly multi-round-trip, call) and must be
// drained to completion or have Close called.
type SearchIterator struct {
    c      *Client
    base   string
    filter string
    attrs  []string

    paging    *ldap.ControlPaging
    remaining int // budget from MaxRecords; <=0 with capped==false means unlimited
    capped    bool

    page    []*ldap.Entry
    pos     int
    done    bool
    err     error
}

// listBy returns a SearchIterator over a paged search.
func (c *Client) listBy(filter string, opts searchOptions) *SearchIterator {
    if err := c.lock("listBy"); err != nil {
        return &SearchIterator{err: err, done: true}
    }

    base := opts.Base
    if base == "" {
        base = c.cfg.BaseDN
    }

    pageSize := uint32(c.cfg.PageSize)
    if opts.MaxRecords > 0 && opts.MaxRecords < c.cfg.PageSize {
        pageSize = uint32(opts.MaxRecords)
    }

    return &SearchIterator{
        c:         c,
        base:      base,
        filter:    filter,
        attrs:     opts.Attributes,
        paging:    ldap.NewControlPaging(pageSize),
        remaining: opts.MaxRecords,
        capped:    opts.MaxRecords > 0,
    }
}

// Close releases the session lock without draining the iterator. Safe
// to call after Next has already returned ok=false.
func (it *SearchIterator) Close() {
    if it.c != nil && !it.done {
        it.c.unlock()
    }
    it.done = true
}

// Next advances the iterator. ok is false once the search is exhausted
// or capped==true and the budget is spent; err, if non-nil, terminates
// iteration immediately and releases the session lock.
func (it *SearchIterator) Next() (*Entry, bool, error) {
    if it.err != nil {
        return nil, false, it.err
    }
    if it.done {
        return nil, false, nil
    }

    for it.pos >= len(it.page) {
        if it.capped && it.remaining <= 0 {
            it.Close()
            return nil, false, nil
        }
        if it.paging == nil {
            it.Close()
            return nil, false, nil
        }
        if err := it.fetchPage(); err != nil {
            it.err = err
            it.Close()
            return nil, false, err
        }
        if len(it.page) == 0 && it.paging == nil {
            it.Close()
            return nil, false, nil
        }
    }

    src := it.page[it.pos]
    it.pos++
    if it.capped {
        it.remaining--
    }

    entry, err := it.c.entryFromLDAP(src)
    if err != nil {
        it.err = err
        it.Close()
        return nil, false, err
    }
    return entry, true, nil
}

// fetchPage issues the next round trip and advances the cookie,
// setting it.paging to nil once the server signals exhaustion. A
// capped search also passes the remaining budget as the request's
// server-side sizelimit; a size-limit-exceeded result then counts as
// exhaustion, not failure.
func (it *SearchIterator) fetchPage() error {
    sizeLimit := 0
    if it.capped {
        sizeLimit = it.remaining
    }
    req := ldap.NewSearchRequest(
        it.base,
        ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, sizeLimit, 0, false,
        it.filter, it.attrs,
        []ldap.Control{it.paging},
    )

    start := time.Now()
    result, err := it.c.conn.Search(req)
    it.c.observeMetric("directory_search_duration", time.Since(start).Seconds(), map[string]string{"scope": "paged"})
    if err != nil {
        if ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) && result != nil {
            it.c.recordMetric("directory_searches_total", map[string]string{"scope": "paged", "status": "ok"})
            it.page = result.Entries
            it.pos = 0
            it.paging = nil
            return nil
        }
        it.c.recordMetric("directory_searches_total", map[string]string{"scope": "paged", "status": "failed"})
        return errors.Wrap(err, errors.ErrSearchFailed, "paged search failed")
    }
    it.c.recordMetric("directory_searches_total", map[string]string{"scope": "paged", "status": "ok"})

    it.page = result.Entries
    it.pos = 0

    ctrl := ldap.FindControl(result.Controls, ldap.ControlTypePaging)
    if ctrl == nil {
        it.paging = nil
        return nil
    }
    respPaging, ok := ctrl.(*ldap.ControlPaging)
    if !ok || len(respPaging.Cookie) == 0 {
        it.paging = nil
        return nil
    }
    it.paging.SetCookie(respPaging.Cookie)
    return nil
}

// getAttributesMatch runs a paged search and materializes every
// matching entry. Built on the same SearchIterator as
// the streaming variants; the only difference is that this caller
// chooses to collect results into a slice.
func (c *Client) getAttributesMatch(filter string, opts searchOptions) ([]*Entry, error) {
    it := c.listBy(filter, opts)
    var out []*Entry
    for {
        entry, ok, err := it.Next()
        if err != nil {
            return nil, err
        }
        if !ok {
            return out, nil
        }
        out = append(out, entry)
    }
}

// getAttributesMatchCB streams matching entries to cb without
// materializing the whole result set. cb runs synchronously on the
// producer's call stack; it must not retain entry after it returns and
// must not issue mutating operations on this client.
func (c *Client) getAttributesMatchCB(filter string, opts searchOptions, cb func(*Entry) error) error {
    it := c.listBy(filter, opts)
    for {
        entry, ok, err := it.Next()
        if err != nil {
            return err
        }
        if !ok {
            return nil
        }
        if err := cb(entry); err != nil {
            it.Close()
            return err
        }
    }
}

// entryFromLDAP converts a go-ldap Entry into our Entry type,
// transparently expanding range-marked attribute names.
func (c *Client) entryFromLDAP(src *ldap.Entry) (*Entry, error) {
    entry := newEntry(src.DN)
    for _, a := range src.Attributes {
        name, low, high, ranged := parseRangeName(a.Name)
        if !ranged {
            entry.appendValues(a.Name, a.Values)
            continue
        }
        entry.appendValues(name, a.Values)
        if high != "*" {
            if err := c.expandRange(src.DN, name, high, entry); err != nil {
                return nil, err
            }
        }
        _ = low
    }
    return entry, nil
}
