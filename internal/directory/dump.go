package directory

import (
    "encoding/base64"
    "encoding/csv"
    "fmt"
    "io"
    "unicode/utf8"

    "github.com/mst-edu/idm-infra/pkg/errors"
    "github.com/mst-edu/idm-infra/pkg/logger"
)

// DumpOptions configures DumpLDIF/DumpCSV. Filter defaults to
// "(distinguishedName=*)" and Base to the client's baseDN when empty.
type DumpOptions struct {
    Filter     string
    Base       string
    Attributes []string
}

func (o DumpOptions) withDefaults(defaultBase string) DumpOptions {
    if o.Filter == "" {
        o.Filter = "(distinguishedName=*)"
    }
    if o.Base == "" {
        o.Base = defaultBase
    }
    return o
}

// DumpLDIF streams every entry matching opts to w as LDIF 1.0, with no
// line wrapping, logging progress every 50 entries.
func (c *Client) DumpLDIF(w io.Writer, opts DumpOptions) error {
    opts = opts.withDefaults(c.cfg.BaseDN)

    if _, err := io.WriteString(w, "version: 1\n"); err != nil {
        return err
    }

    count := 0
    err := c.getAttributesMatchCB(opts.Filter, searchOptions{Attributes: opts.Attributes, Base: opts.Base}, func(e *Entry) error {
        if err := writeLDIFEntry(w, e); err != nil {
            return err
        }
        count++
        if count%50 == 0 {
            logger.WithField("count", count).Info("directory: dump progress")
        }
        return nil
    })
    if err != nil {
        return err
    }
    logger.WithField("count", count).Info("directory: dump complete")
    return nil
}

func writeLDIFEntry(w io.Writer, e *Entry) error {
    if err := writeLDIFLine(w, "dn", e.DN); err != nil {
        return err
    }
    for _, attr := range e.Attributes() {
        for _, v := range attr.Values {
            if err := writeLDIFLine(w, attr.Name, v); err != nil {
                return err
            }
        }
    }
    _, err := io.WriteString(w, "\n")
    return err
}

// writeLDIFLine emits one "attr: value" (or "attr:: base64") line with
// no wrapping, base64-encoding values that aren't safe UTF-8 per LDIF 1.0.
func writeLDIFLine(w io.Writer, attr, value string) error {
    if utf8.ValidString(value) && safeLDIFString(value) {
        _, err := fmt.Fprintf(w, "%s: %s\n", attr, value)
        return err
    }
    _, err := fmt.Fprintf(w, "%s:: %s\n", attr, base64.StdEncoding.EncodeToString([]byte(value)))
    return err
}

func safeLDIFString(s string) bool {
    if s == "" {
        return true
    }
    switch s[0] {
    case ' ', ':', '<':
        return false
    }
    for i := 0; i < len(s); i++ {
        if s[i] == 0 || s[i] == '\n' || s[i] == '\r' {
            return false
        }
    }
    return true
}

// DumpCSV streams every entry matching opts to w as a CSV table with
// one header row, one row per entry, RFC 4180 quoting courtesy of
// encoding/csv.
func (c *Client) DumpCSV(w io.Writer, opts DumpOptions) error {
    opts = opts.withDefaults(c.cfg.BaseDN)
    if len(opts.Attributes) == 0 {
        return errors.New(errors.ErrInvalidArgument, "DumpCSV: Attributes must be explicit for a stable column set")
    }

    cw := csv.NewWriter(w)
    header := append([]string{"dn"}, opts.Attributes...)
    if err := cw.Write(header); err != nil {
        return err
    }

    err := c.getAttributesMatchCB(opts.Filter, searchOptions{Attributes: opts.Attributes, Base: opts.Base}, func(e *Entry) error {
        row := make([]string, 0, len(header))
        row = append(row, e.DN)
        for _, a := range opts.Attributes {
            row = append(row, e.Value(a))
        }
        return cw.Write(row)
    })
    if err != nil {
        return err
    }
    cw.Flush()
    return cw.Error()
}
