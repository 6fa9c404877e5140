package directory

import "io"

// This file is the package's public surface: thin exported wrappers
// over the unexported operation primitives in search.go/mutate.go.
// Host programs (cmd/idmctl) only ever call through here.

// FindDN resolves a sAMAccountName (or userPrincipalName fallback) to
// its distinguished name.
func (c *Client) FindDN(sam string) (string, error) {
    return c.findDN(sam)
}

// FindHostDN resolves a computer account's DN from its host name.
func (c *Client) FindHostDN(host string) (string, error) {
    return c.findHostDN(host)
}

// FindUPN returns the lower-cased userPrincipalName for sam.
func (c *Client) FindUPN(sam string) (string, error) {
    return c.findUPN(sam)
}

// GetAttributes fetches a single entry by sAMAccountName.
func (c *Client) GetAttributes(sam string, attributes []string, base string) (*Entry, error) {
    return c.getAttributes(sam, searchOptions{Attributes: attributes, Base: base})
}

// GetDNAttributes fetches a single entry directly by DN.
func (c *Client) GetDNAttributes(dn string, attributes []string) (*Entry, error) {
    return c.getDNAttributes(dn, attributes)
}

// GetAttributesMatch runs a paged search and materializes every
// matching entry.
func (c *Client) GetAttributesMatch(filter string, attributes []string, base string, maxRecords int) ([]*Entry, error) {
    return c.getAttributesMatch(filter, searchOptions{Attributes: attributes, Base: base, MaxRecords: maxRecords})
}

// GetAttributesMatchCB streams matching entries to cb without
// materializing the whole result set.
func (c *Client) GetAttributesMatchCB(filter string, attributes []string, base string, maxRecords int, cb func(*Entry) error) error {
    return c.getAttributesMatchCB(filter, searchOptions{Attributes: attributes, Base: base, MaxRecords: maxRecords}, cb)
}

// ListBy returns a pull-iterator over a paged search.
func (c *Client) ListBy(filter string, attributes []string, base string, maxRecords int) *SearchIterator {
    return c.listBy(filter, searchOptions{Attributes: attributes, Base: base, MaxRecords: maxRecords})
}

// CreateUser creates a disabled user account, then enables it with a
// never-expiring random password.
func (c *Client) CreateUser(req CreateUserRequest) error {
    return c.createUser(req)
}

// CreateSecurityGroup creates a security-enabled domain-local group.
func (c *Client) CreateSecurityGroup(req CreateSecurityGroupRequest) error {
    return c.createSecurityGroup(req)
}

// DeleteUser resolves sam to a DN and deletes it.
func (c *Client) DeleteUser(sam string) error {
    return c.deleteUser(sam)
}

// SetAttributes issues one modify request combining the given
// add/replace/delete operations.
func (c *Client) SetAttributes(req SetAttributesRequest) error {
    return c.setAttributes(req)
}

// MoveUser reparents an object to target, preserving its RDN.
func (c *Client) MoveUser(userIDOrDN, target string) error {
    return c.moveUser(userIDOrDN, target)
}

// Enable clears the disabled bit and marks the account initialized.
func (c *Client) Enable(sam string) error {
    return c.enable(sam)
}

// Disable sets the disabled bit.
func (c *Client) Disable(sam string) error {
    return c.disable(sam)
}

// ModifyUACBits applies a read-modify-write update to userAccountControl.
func (c *Client) ModifyUACBits(sam string, set, reset uint32) error {
    return c.modifyUACBits(sam, set, reset)
}

// SetPassword sets unicodePwd and clears PW_NOT_REQUIRED.
func (c *Client) SetPassword(sam, plaintext string) error {
    return c.setPassword(sam, plaintext)
}

// AddToGroup appends memberDN to groupDN's member attribute.
func (c *Client) AddToGroup(groupDN, memberDN string) error {
    return c.addToGroup(groupDN, memberDN)
}

// RemoveFromGroup removes memberDN from groupDN's member attribute.
func (c *Client) RemoveFromGroup(groupDN, memberDN string) error {
    return c.removeFromGroup(groupDN, memberDN)
}

// Dump writes every entry matching opts to w in LDIF or CSV form,
// chosen by format ("ldif" or "csv").
func (c *Client) Dump(w io.Writer, format string, opts DumpOptions) error {
    if format == "csv" {
        return c.DumpCSV(w, opts)
    }
    return c.DumpLDIF(w, opts)
}
