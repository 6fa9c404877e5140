package directory

import (
    "fmt"
    "regexp"
    "strconv"
    "strings"

    "github.com/go-ldap/ldap/v3"

    "github.com/mst-edu/idm-infra/pkg/errors"
)

// AttrValues is one [attr, value|[values...]] entry of a setAttributes
// call; Values holds one or more values in the order the
// caller supplied them.
type AttrValues struct {
    Attr   string
    Values []string
}

// SetAttributesRequest carries the replace/add/delete operations of
// one modify call against a single entry.
type SetAttributesRequest struct {
    UserID  string
    Replace []AttrValues
    Add     []AttrValues
    Delete  []AttrValues
}

// setAttributes resolves userid to a DN and emits one Modify request
// carrying the union of replace/add/delete operations in the given
// order. Fails if all three are empty.
func (c *Client) setAttributes(req SetAttributesRequest) error {
    if len(req.Replace) == 0 && len(req.Add) == 0 && len(req.Delete) == 0 {
        return errors.New(errors.ErrInvalidArgument, "setAttributes: replace, add, and delete are all empty")
    }

    dn, err := c.resolveUserID(req.UserID)
    if err != nil {
        return err
    }

    modReq := ldap.NewModifyRequest(dn, nil)
    for _, av := range req.Add {
        modReq.Add(av.Attr, av.Values)
    }
    for _, av := range req.Replace {
        modReq.Replace(av.Attr, av.Values)
    }
    for _, av := range req.Delete {
        modReq.Delete(av.Attr, av.Values)
    }

    if err := c.lock("setAttributes"); err != nil {
        return err
    }
    defer c.unlock()

    if err := c.conn.Modify(modReq); err != nil {
        c.recordAudit("setAttributes", dn, false, nil)
        c.recordMetric("directory_mutations_total", map[string]string{"op": "setAttributes", "status": "failed"})
        return errors.Wrap(err, errors.ErrModifyFailed, "setAttributes failed")
    }
    c.recordAudit("setAttributes", dn, true, nil)
    c.recordMetric("directory_mutations_total", map[string]string{"op": "setAttributes", "status": "ok"})
    return nil
}

// resolveUserID accepts either a DN (contains "=") or a sAMAccountName.
func (c *Client) resolveUserID(userID string) (string, error) {
    if strings.Contains(userID, "=") {
        return userID, nil
    }
    dn, err := c.findDN(userID)
    if err != nil {
        return "", err
    }
    if dn == "" {
        return "", errors.New(errors.ErrNotFound, fmt.Sprintf("no such user %q", userID))
    }
    return dn, nil
}

// CreateUserRequest describes a new user account. SPN is optional.
type CreateUserRequest struct {
    DN          string
    SAM         string
    DisplayName string
    UPN         string
    SPN         string // optional
}

// createUser adds a disabled user with a random password, then enables
// it, sets NEVER_EXPIRES, and clears PW_NOT_REQUIRED.
func (c *Client) createUser(req CreateUserRequest) error {
    password, err := randomPassword()
    if err != nil {
        return err
    }
    pwBytes, err := encodeUnicodePwd(password)
    if err != nil {
        return err
    }

    addReq := ldap.NewAddRequest(req.DN, nil)
    addReq.Attribute("objectClass", []string{"top", "person", "organizationalPerson", "user"})
    addReq.Attribute("sAMAccountName", []string{req.SAM})
    addReq.Attribute("displayName", []string{req.DisplayName})
    addReq.Attribute("userPrincipalName", []string{req.UPN})
    if req.SPN != "" {
        addReq.Attribute("servicePrincipalName", []string{req.SPN})
    }
    addReq.Attribute("unicodePwd", []string{string(pwBytes)})
    addReq.Attribute("userAccountControl", []string{"0"})

    if err := c.lock("createUser"); err != nil {
        return err
    }
    addErr := c.conn.Add(addReq)
    c.unlock()
    if addErr != nil {
        c.recordAudit("createUser", req.DN, false, nil)
        c.recordMetric("directory_mutations_total", map[string]string{"op": "createUser", "status": "failed"})
        return errors.Wrap(addErr, errors.ErrCreateFailed, "createUser failed")
    }
    c.recordAudit("createUser", req.DN, true, nil)
    c.recordMetric("directory_mutations_total", map[string]string{"op": "createUser", "status": "ok"})

    if err := c.enable(req.SAM); err != nil {
        return err
    }
    return c.modifyUACBits(req.SAM, uacNeverExpires, uacPwNotRequired)
}

var netGroupPattern = regexp.MustCompile(`^ng-`)

// CreateSecurityGroupRequest names a new group and, optionally, the OU
// it lands in.
type CreateSecurityGroupRequest struct {
    Group string
    OU    string // optional
}

// createSecurityGroup adds a security-enabled domain-local group.
// When OU is absent, groups named "ng-*" default to
// OU=NetGroups,<baseDN>; any other name without an OU fails NeedOU.
func (c *Client) createSecurityGroup(req CreateSecurityGroupRequest) error {
    ou := req.OU
    if ou == "" {
        if netGroupPattern.MatchString(req.Group) {
            ou = "OU=NetGroups," + c.cfg.BaseDN
        } else {
            return errors.New(errors.ErrInvalidArgument, "createSecurityGroup: NeedOU")
        }
    }

    dn := fmt.Sprintf("CN=%s,%s", req.Group, ou)
    addReq := ldap.NewAddRequest(dn, nil)
    addReq.Attribute("objectClass", []string{"top", "group"})
    addReq.Attribute("sAMAccountName", []string{req.Group})
    addReq.Attribute("groupType", []string{strconv.FormatInt(int64(int32(-2147483644)), 10)})

    if err := c.lock("createSecurityGroup"); err != nil {
        return err
    }
    addErr := c.conn.Add(addReq)
    c.unlock()
    if addErr != nil {
        c.recordAudit("createSecurityGroup", dn, false, nil)
        c.recordMetric("directory_mutations_total", map[string]string{"op": "createSecurityGroup", "status": "failed"})
        return errors.Wrap(addErr, errors.ErrCreateFailed, "createSecurityGroup failed")
    }
    c.recordAudit("createSecurityGroup", dn, true, nil)
    c.recordMetric("directory_mutations_total", map[string]string{"op": "createSecurityGroup", "status": "ok"})
    return nil
}

// deleteUser resolves sam to a DN and deletes it.
func (c *Client) deleteUser(sam string) error {
    dn, err := c.findDN(sam)
    if err != nil {
        return err
    }
    if dn == "" {
        return errors.New(errors.ErrNotFound, fmt.Sprintf("no such user %q", sam))
    }

    if err := c.lock("deleteUser"); err != nil {
        return err
    }
    delErr := c.conn.Del(ldap.NewDelRequest(dn, nil))
    c.unlock()
    if delErr != nil {
        c.recordAudit("deleteUser", dn, false, nil)
        c.recordMetric("directory_mutations_total", map[string]string{"op": "deleteUser", "status": "failed"})
        return errors.Wrap(delErr, errors.ErrDeleteFailed, "deleteUser failed")
    }
    c.recordAudit("deleteUser", dn, true, nil)
    c.recordMetric("directory_mutations_total", map[string]string{"op": "deleteUser", "status": "ok"})
    return nil
}

// moveUser relocates userid|dn under target via modrdn, escaping
// commas in cn with the RFC 4514 `\,` form.
func (c *Client) moveUser(userIDOrDN, target string) error {
    dn, err := c.resolveUserID(userIDOrDN)
    if err != nil {
        return err
    }

    entry, err := c.getDNAttributes(dn, []string{"cn"})
    if err != nil {
        return err
    }
    if entry == nil {
        return errors.New(errors.ErrNotFound, fmt.Sprintf("no such entry %q", dn))
    }
    cn := entry.Value("cn")
    escapedCN := strings.ReplaceAll(cn, ",", `\,`)
    newRDN := "cn=" + escapedCN

    modDN := ldap.NewModifyDNRequest(dn, newRDN, true, target)

    if err := c.lock("moveUser"); err != nil {
        return err
    }
    mErr := c.conn.ModifyDN(modDN)
    c.unlock()
    if mErr != nil {
        c.recordAudit("moveUser", dn, false, nil)
        c.recordMetric("directory_mutations_total", map[string]string{"op": "moveUser", "status": "failed"})
        return errors.Wrap(mErr, errors.ErrMoveFailed, "moveUser failed")
    }
    c.recordAudit("moveUser", dn, true, map[string]interface{}{"target": target})
    c.recordMetric("directory_mutations_total", map[string]string{"op": "moveUser", "status": "ok"})
    return nil
}

// modifyUACBits is the userAccountControl read-modify-write cycle:
// new = ((current | set) &^ reset), reset taking precedence over set.
func (c *Client) modifyUACBits(sam string, set, reset uint32) error {
    entry, err := c.getAttributes(sam, searchOptions{Attributes: []string{"userAccountControl"}})
    if err != nil {
        return err
    }
    if entry == nil {
        return errors.New(errors.ErrNotFound, fmt.Sprintf("no such user %q", sam))
    }

    current, err := strconv.ParseUint(entry.Value("userAccountControl"), 10, 32)
    if err != nil {
        return errors.Wrap(err, errors.ErrInvalidArgument, "unreadable userAccountControl")
    }

    newVal := (uint32(current) | set) &^ reset
    return c.setAttributes(SetAttributesRequest{
        UserID:  sam,
        Replace: []AttrValues{{Attr: "userAccountControl", Values: []string{strconv.FormatUint(uint64(newVal), 10)}}},
    })
}

// enable := modifyUACBits(set=NORMAL_ACCOUNT, reset=DISABLED).
func (c *Client) enable(sam string) error {
    return c.modifyUACBits(sam, uacNormalAccount, uacDisabled)
}

// disable := modifyUACBits(set=DISABLED).
func (c *Client) disable(sam string) error {
    return c.modifyUACBits(sam, uacDisabled, 0)
}

// setPassword sets unicodePwd and clears PW_NOT_REQUIRED afterward.
func (c *Client) setPassword(sam, plaintext string) error {
    pwBytes, err := encodeUnicodePwd(plaintext)
    if err != nil {
        return err
    }
    if err := c.setAttributes(SetAttributesRequest{
        UserID:  sam,
        Replace: []AttrValues{{Attr: "unicodePwd", Values: []string{string(pwBytes)}}},
    }); err != nil {
        return err
    }
    return c.modifyUACBits(sam, 0, uacPwNotRequired)
}

// addToGroup and removeFromGroup are single-valued modifies of the
// group's "member" attribute.
func (c *Client) addToGroup(groupDN, memberDN string) error {
    return c.setAttributes(SetAttributesRequest{
        UserID: groupDN,
        Add:    []AttrValues{{Attr: "member", Values: []string{memberDN}}},
    })
}

func (c *Client) removeFromGroup(groupDN, memberDN string) error {
    return c.setAttributes(SetAttributesRequest{
        UserID: groupDN,
        Delete: []AttrValues{{Attr: "member", Values: []string{memberDN}}},
    })
}
