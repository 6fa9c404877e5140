// Package directory implements a bound LDAP session against a
// Microsoft Active Directory server: search and mutation operations
// plus pure decoders for its bit-packed attributes.
package directory

import (
    "context"
    "crypto/tls"
    "fmt"
    "sync"
    "time"

    "github.com/go-ldap/ldap/v3"

    "github.com/mst-edu/idm-infra/internal/metrics"
    "github.com/mst-edu/idm-infra/pkg/auditsink"
    "github.com/mst-edu/idm-infra/pkg/authprovider"
    "github.com/mst-edu/idm-infra/pkg/errors"
    "github.com/mst-edu/idm-infra/pkg/logger"
)

// Client is a bound LDAP session: constructed already bound, every
// operation reuses the same connection until Close is called. It is
// not safe for concurrent use by multiple goroutines; mu exists only
// to turn an accidental concurrent call into a clear error instead of
// a corrupted wire exchange.
type Client struct {
    cfg     Config
    conn    *ldap.Conn
    audit   auditsink.AuditSink
    metrics metrics.MetricsInterface

    mu   sync.Mutex
    busy bool
}

// New binds a new Client: up to Retries attempts as user@domain with a
// linearly growing backoff, the same shape internal/db uses for its
// connection retry. On exhaustion it returns BindFailed wrapping the
// last server message. m may be nil, in which case bind/search/
// mutation counters are simply not recorded.
func New(ctx context.Context, cfg Config, auth authprovider.AuthProvider, audit auditsink.AuditSink, m metrics.MetricsInterface) (*Client, error) {
    cfg = cfg.withDefaults()

    password, err := resolvePassword(cfg, auth)
    if err != nil {
        return nil, err
    }

    bindPrincipal := fmt.Sprintf("%s@%s", cfg.User, cfg.Domain)

    var lastErr error
    for attempt := 0; attempt < Retries; attempt++ {
        conn, dialErr := dial(ctx, cfg)
        if dialErr == nil {
            conn.SetTimeout(cfg.Timeout)
            if bindErr := conn.Bind(bindPrincipal, password); bindErr == nil {
                c := &Client{cfg: cfg, conn: conn, audit: audit, metrics: m}
                c.recordAudit("bind", bindPrincipal, true, nil)
                c.recordMetric("directory_binds_total", map[string]string{"server": cfg.serverOrDefault(), "status": "ok"})
                if cfg.Debug {
                    logger.WithField("principal", bindPrincipal).Debug("directory: bind succeeded")
                }
                return c, nil
            } else {
                lastErr = bindErr
                conn.Close()
            }
        } else {
            lastErr = dialErr
        }

        if attempt+1 < Retries {
            if m != nil {
                m.IncrementCounter("directory_binds_total", map[string]string{"server": cfg.serverOrDefault(), "status": "retry"})
            }
            logger.WithField("attempt", attempt+1).WithError(lastErr).Warn("directory: bind failed, retrying")
            time.Sleep(100 * time.Millisecond * time.Duration(attempt+1))
        }
    }

    if audit != nil {
        audit.Record(auditsink.Event{
            Operation: "bind",
            Target:    bindPrincipal,
            Success:   false,
            Detail:    map[string]interface{}{"error": lastErr.Error()},
            At:        time.Now(),
        })
    }
    if m != nil {
        m.IncrementCounter("directory_binds_total", map[string]string{"server": cfg.serverOrDefault(), "status": "failed"})
    }

    msg := "bind exhausted retries"
    if lastErr != nil {
        msg = lastErr.Error()
    }
    return nil, errors.New(errors.ErrBindFailed, msg)
}

func resolvePassword(cfg Config, auth authprovider.AuthProvider) (string, error) {
    if cfg.Password != nil {
        return *cfg.Password, nil
    }
    if auth == nil {
        return "", errors.New(errors.ErrInvalidArgument, "no password configured and no AuthProvider supplied")
    }
    secret, err := auth.Get(cfg.User, "ads")
    if err != nil {
        return "", errors.Wrap(err, errors.ErrAuthFailed, "failed to resolve password from AuthProvider")
    }
    return secret, nil
}

func dial(ctx context.Context, cfg Config) (*ldap.Conn, error) {
    var opts []ldap.DialOpt
    if cfg.Transport == TransportTLS {
        opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{ServerName: cfg.serverOrDefault()}))
    }
    conn, err := ldap.DialURL(cfg.dialURL(), opts...)
    if err != nil {
        return nil, err
    }
    return conn, nil
}

// lock marks the session busy for the duration of one logical
// operation; a second caller entering concurrently gets a clear error
// rather than interleaved wire traffic.
func (c *Client) lock(op string) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.busy {
        return errors.New(errors.ErrInternal, fmt.Sprintf("concurrent operation %q on single-threaded directory client", op))
    }
    c.busy = true
    return nil
}

func (c *Client) unlock() {
    c.mu.Lock()
    c.busy = false
    c.mu.Unlock()
}

func (c *Client) recordMetric(name string, labels map[string]string) {
    if c.metrics == nil {
        return
    }
    c.metrics.IncrementCounter(name, labels)
}

func (c *Client) observeMetric(name string, value float64, labels map[string]string) {
    if c.metrics == nil {
        return
    }
    c.metrics.ObserveHistogram(name, value, labels)
}

func (c *Client) recordAudit(op, target string, success bool, detail map[string]interface{}) {
    if c.audit == nil {
        return
    }
    c.audit.Record(auditsink.Event{
        Operation: op,
        Target:    target,
        Success:   success,
        Detail:    detail,
        At:        time.Now(),
    })
}

// Close releases the underlying LDAP connection.
func (c *Client) Close() error {
    if c.conn == nil {
        return nil
    }
    return c.conn.Close()
}

// BaseDN returns the effective base DN the client was constructed with.
func (c *Client) BaseDN() string {
    return c.cfg.BaseDN
}

// Domain returns the configured domain.
func (c *Client) Domain() string {
    return c.cfg.Domain
}
