package main

import (
    "bufio"
    "context"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/fatih/color"
    "github.com/olekukonko/tablewriter"
    "github.com/spf13/cobra"

    "github.com/mst-edu/idm-infra/internal/db"
    "github.com/mst-edu/idm-infra/internal/directory"
    "github.com/mst-edu/idm-infra/internal/metrics"
    "github.com/mst-edu/idm-infra/pkg/auditsink"
    "github.com/mst-edu/idm-infra/pkg/authprovider"
    "github.com/mst-edu/idm-infra/pkg/logger"
)

var (
    green  = color.New(color.FgGreen).SprintFunc()
    red    = color.New(color.FgRed).SprintFunc()
    yellow = color.New(color.FgYellow).SprintFunc()
)

func directoryClient(ctx context.Context) (*directory.Client, error) {
    dcfg := cfg.Directory
    clientCfg := directory.Config{
        User:     dcfg.User,
        Domain:   dcfg.Domain,
        Server:   dcfg.Server,
        Port:     dcfg.Port,
        PageSize: dcfg.PageSize,
        Timeout:  dcfg.Timeout,
        Debug:    dcfg.Debug,
        BaseDN:   dcfg.BaseDN,
        UseGlobalCatalog: dcfg.UseGC,
    }
    if dcfg.SSL {
        clientCfg.Transport = directory.TransportTLS
    } else {
        clientCfg.Transport = directory.TransportPlain
    }
    if dcfg.Password != "" {
        clientCfg.Password = &dcfg.Password
    }

    auth := authprovider.NewEnvProvider("IDM_SECRET")
    audit := auditsink.NewLoggerSink()
    var m metrics.MetricsInterface
    if appMetrics != nil {
        m = appMetrics
    }
    return directory.New(ctx, clientCfg, auth, audit, m)
}

func createDirectoryCommand() *cobra.Command {
    dirCmd := &cobra.Command{
        Use:   "directory",
        Short: "Administer Active Directory accounts and groups",
    }

    dirCmd.AddCommand(
        createDirectoryGetCommand(),
        createDirectorySearchCommand(),
        createDirectoryCreateUserCommand(),
        createDirectoryCreateGroupCommand(),
        createDirectoryDeleteUserCommand(),
        createDirectoryEnableCommand(),
        createDirectoryDisableCommand(),
        createDirectorySetPasswordCommand(),
        createDirectoryMoveCommand(),
        createDirectoryGroupMemberCommand(),
        createDirectoryDumpCommand(),
    )

    return dirCmd
}

func createDirectoryGetCommand() *cobra.Command {
    var attrs []string

    cmd := &cobra.Command{
        Use:   "get <sAMAccountName>",
        Short: "Fetch one account's attributes",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := context.Background()
            c, err := directoryClient(ctx)
            if err != nil {
                return err
            }
            defer c.Close()

            entry, err := c.GetAttributes(args[0], attrs, "")
            if err != nil {
                return err
            }
            if entry == nil {
                fmt.Printf("%s no such account: %s\n", red("✗"), args[0])
                return nil
            }

            table := tablewriter.NewWriter(os.Stdout)
            table.SetHeader([]string{"Attribute", "Value", "Decoded"})
            table.SetBorder(false)
            table.SetAutoWrapText(false)
            for _, a := range entry.Attributes() {
                value := strings.Join(a.Values, "; ")
                if a.Binary {
                    value = fmt.Sprintf("<%d bytes>", len(strings.Join(a.Values, "")))
                }
                table.Append([]string{a.Name, value, decodeAttr(a.Name, a.Values)})
            }
            table.Render()
            return nil
        },
    }

    cmd.Flags().StringSliceVar(&attrs, "attr", nil, "Attributes to fetch (default: all)")
    return cmd
}

// filetimeAttrs are the 100ns-tick timestamp attributes rendered as UTC
// wall-clock time in listings.
var filetimeAttrs = map[string]bool{
    "lastlogon":          true,
    "lastlogontimestamp": true,
    "pwdlastset":         true,
    "accountexpires":     true,
    "badpasswordtime":    true,
    "lockouttime":        true,
}

// decodeAttr renders the semantic form of bit-packed and binary
// attribute values; other attributes decode to "".
func decodeAttr(name string, values []string) string {
    if len(values) == 0 {
        return ""
    }
    v := values[0]
    key := strings.ToLower(name)
    switch {
    case key == "useraccountcontrol":
        if n, err := strconv.ParseUint(v, 10, 32); err == nil {
            return strings.Join(directory.ParseUAC(uint32(n)), ", ")
        }
    case key == "grouptype":
        if n, err := strconv.ParseInt(v, 10, 64); err == nil {
            return strings.Join(directory.ParseGroupType(uint32(int32(n))), ", ")
        }
    case key == "samaccounttype":
        if n, err := strconv.ParseUint(v, 10, 32); err == nil {
            return directory.ParseAccountType(uint32(n))
        }
    case key == "objectsid":
        if s, err := directory.HexSIDToText(fmt.Sprintf("% X", []byte(v))); err == nil {
            return s
        }
    case key == "protocolsettings":
        if ps, err := directory.ParseProtocolSettings([]byte(v)); err == nil {
            return ps.Protocol + " " + strings.Join(ps.Fields, "/")
        }
    case filetimeAttrs[key]:
        if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
            return time.Unix(directory.ConvertFiletime(n), 0).UTC().Format("2006-01-02 15:04:05 UTC")
        }
    }
    return ""
}

func createDirectorySearchCommand() *cobra.Command {
    var (
        attrs      []string
        base       string
        maxRecords int
    )

    cmd := &cobra.Command{
        Use:   "search <filter>",
        Short: "Run a paged LDAP search and list matching entries",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := context.Background()

            // A cached DN list skips the bind entirely; misses and cache
            // errors fall through to a live search.
            cacheKey := fmt.Sprintf("search:%s:%s:%s:%d", base, args[0], strings.Join(attrs, ","), maxRecords)
            useCache := cfg.Redis.Host != ""
            if useCache {
                if err := db.InitializeCache(db.CacheConfig{
                    Host:         cfg.Redis.Host,
                    Port:         cfg.Redis.Port,
                    Password:     cfg.Redis.Password,
                    DB:           cfg.Redis.DB,
                    PoolSize:     cfg.Redis.PoolSize,
                    MinIdleConns: cfg.Redis.MinIdleConns,
                    MaxRetries:   cfg.Redis.MaxRetries,
                }, "idmctl"); err != nil {
                    logger.WithError(err).Warn("search cache unavailable")
                    useCache = false
                }
            }
            if useCache {
                var cached []string
                db.GetCache().Get(ctx, cacheKey, &cached)
                if len(cached) > 0 {
                    for _, dn := range cached {
                        fmt.Println(dn)
                    }
                    fmt.Printf("\n%d entries (cached)\n", len(cached))
                    return nil
                }
            }

            c, err := directoryClient(ctx)
            if err != nil {
                return err
            }
            defer c.Close()

            entries, err := c.GetAttributesMatch(args[0], attrs, base, maxRecords)
            if err != nil {
                return err
            }

            if len(entries) == 0 {
                fmt.Println("No matching entries")
                return nil
            }

            dns := make([]string, 0, len(entries))
            for _, e := range entries {
                fmt.Println(e.DN)
                dns = append(dns, e.DN)
            }
            if useCache {
                db.GetCache().Set(ctx, cacheKey, dns, 5*time.Minute)
            }
            fmt.Printf("\n%d entries\n", len(entries))
            return nil
        },
    }

    cmd.Flags().StringSliceVar(&attrs, "attr", nil, "Attributes to fetch")
    cmd.Flags().StringVar(&base, "base", "", "Search base (default: configured baseDN)")
    cmd.Flags().IntVar(&maxRecords, "max", 0, "Maximum records (0=unlimited)")
    return cmd
}

func createDirectoryCreateUserCommand() *cobra.Command {
    var (
        displayName string
        upn         string
        spn         string
        ou          string
    )

    cmd := &cobra.Command{
        Use:   "create-user <sAMAccountName>",
        Short: "Create a disabled-then-enabled user account",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := context.Background()
            c, err := directoryClient(ctx)
            if err != nil {
                return err
            }
            defer c.Close()

            sam := args[0]
            dn := fmt.Sprintf("CN=%s,%s", sam, ou)
            if ou == "" {
                dn = fmt.Sprintf("CN=%s,%s", sam, c.BaseDN())
            }

            req := directory.CreateUserRequest{
                DN:          dn,
                SAM:         sam,
                DisplayName: displayName,
                UPN:         upn,
                SPN:         spn,
            }
            if err := c.CreateUser(req); err != nil {
                return err
            }
            fmt.Printf("%s account '%s' created\n", green("✓"), sam)
            return nil
        },
    }

    cmd.Flags().StringVar(&displayName, "display-name", "", "displayName")
    cmd.Flags().StringVar(&upn, "upn", "", "userPrincipalName")
    cmd.Flags().StringVar(&spn, "spn", "", "servicePrincipalName (optional)")
    cmd.Flags().StringVar(&ou, "ou", "", "Parent OU (default: base DN)")
    cmd.MarkFlagRequired("upn")
    return cmd
}

func createDirectoryCreateGroupCommand() *cobra.Command {
    var ou string

    cmd := &cobra.Command{
        Use:   "create-group <name>",
        Short: "Create a security-enabled domain-local group",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := context.Background()
            c, err := directoryClient(ctx)
            if err != nil {
                return err
            }
            defer c.Close()

            if err := c.CreateSecurityGroup(directory.CreateSecurityGroupRequest{Group: args[0], OU: ou}); err != nil {
                return err
            }
            fmt.Printf("%s group '%s' created\n", green("✓"), args[0])
            return nil
        },
    }

    cmd.Flags().StringVar(&ou, "ou", "", "Parent OU (required unless name matches ng-*)")
    return cmd
}

func createDirectoryDeleteUserCommand() *cobra.Command {
    return &cobra.Command{
        Use:   "delete-user <sAMAccountName>",
        Short: "Delete a user account",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            fmt.Printf("Are you sure you want to delete account '%s'? [y/N]: ", args[0])
            reader := bufio.NewReader(os.Stdin)
            response, _ := reader.ReadString('\n')
            response = strings.TrimSpace(strings.ToLower(response))
            if response != "y" && response != "yes" {
                fmt.Println("Cancelled")
                return nil
            }

            ctx := context.Background()
            c, err := directoryClient(ctx)
            if err != nil {
                return err
            }
            defer c.Close()

            if err := c.DeleteUser(args[0]); err != nil {
                return err
            }
            fmt.Printf("%s account '%s' deleted\n", green("✓"), args[0])
            return nil
        },
    }
}

func createDirectoryEnableCommand() *cobra.Command {
    return &cobra.Command{
        Use:   "enable <sAMAccountName>",
        Short: "Clear the disabled bit on an account",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := context.Background()
            c, err := directoryClient(ctx)
            if err != nil {
                return err
            }
            defer c.Close()
            if err := c.Enable(args[0]); err != nil {
                return err
            }
            fmt.Printf("%s account '%s' enabled\n", green("✓"), args[0])
            return nil
        },
    }
}

func createDirectoryDisableCommand() *cobra.Command {
    return &cobra.Command{
        Use:   "disable <sAMAccountName>",
        Short: "Set the disabled bit on an account",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := context.Background()
            c, err := directoryClient(ctx)
            if err != nil {
                return err
            }
            defer c.Close()
            if err := c.Disable(args[0]); err != nil {
                return err
            }
            fmt.Printf("%s account '%s' disabled\n", yellow("!"), args[0])
            return nil
        },
    }
}

func createDirectorySetPasswordCommand() *cobra.Command {
    return &cobra.Command{
        Use:   "set-password <sAMAccountName> <password>",
        Short: "Set an account's password",
        Args:  cobra.ExactArgs(2),
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := context.Background()
            c, err := directoryClient(ctx)
            if err != nil {
                return err
            }
            defer c.Close()
            if err := c.SetPassword(args[0], args[1]); err != nil {
                return err
            }
            fmt.Printf("%s password set for '%s'\n", green("✓"), args[0])
            return nil
        },
    }
}

func createDirectoryMoveCommand() *cobra.Command {
    return &cobra.Command{
        Use:   "move <sAMAccountName|dn> <target-ou>",
        Short: "Move an object to a different parent OU",
        Args:  cobra.ExactArgs(2),
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := context.Background()
            c, err := directoryClient(ctx)
            if err != nil {
                return err
            }
            defer c.Close()
            if err := c.MoveUser(args[0], args[1]); err != nil {
                return err
            }
            fmt.Printf("%s moved '%s' to '%s'\n", green("✓"), args[0], args[1])
            return nil
        },
    }
}

func createDirectoryGroupMemberCommand() *cobra.Command {
    cmd := &cobra.Command{
        Use:   "group-member",
        Short: "Add or remove a group member",
    }

    add := &cobra.Command{
        Use:   "add <group-dn> <member-dn>",
        Short: "Add a member to a group",
        Args:  cobra.ExactArgs(2),
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := context.Background()
            c, err := directoryClient(ctx)
            if err != nil {
                return err
            }
            defer c.Close()
            if err := c.AddToGroup(args[0], args[1]); err != nil {
                return err
            }
            fmt.Printf("%s added member\n", green("✓"))
            return nil
        },
    }

    remove := &cobra.Command{
        Use:   "remove <group-dn> <member-dn>",
        Short: "Remove a member from a group",
        Args:  cobra.ExactArgs(2),
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := context.Background()
            c, err := directoryClient(ctx)
            if err != nil {
                return err
            }
            defer c.Close()
            if err := c.RemoveFromGroup(args[0], args[1]); err != nil {
                return err
            }
            fmt.Printf("%s removed member\n", green("✓"))
            return nil
        },
    }

    cmd.AddCommand(add, remove)
    return cmd
}

func createDirectoryDumpCommand() *cobra.Command {
    var (
        format string
        filter string
        base   string
        attrs  []string
        output string
    )

    cmd := &cobra.Command{
        Use:   "dump",
        Short: "Export directory entries as LDIF or CSV",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := context.Background()
            c, err := directoryClient(ctx)
            if err != nil {
                return err
            }
            defer c.Close()

            w := os.Stdout
            if output != "" {
                f, err := os.Create(output)
                if err != nil {
                    return err
                }
                defer f.Close()
                return c.Dump(f, format, directory.DumpOptions{Filter: filter, Base: base, Attributes: attrs})
            }

            err = c.Dump(w, format, directory.DumpOptions{Filter: filter, Base: base, Attributes: attrs})
            if err != nil {
                logger.WithError(err).Error("directory dump failed")
            }
            return err
        },
    }

    cmd.Flags().StringVar(&format, "format", "ldif", "Export format: ldif or csv")
    cmd.Flags().StringVar(&filter, "filter", "", "LDAP filter (default: distinguishedName=*)")
    cmd.Flags().StringVar(&base, "base", "", "Search base (default: configured baseDN)")
    cmd.Flags().StringSliceVar(&attrs, "attr", nil, "Attributes to export (required for csv)")
    cmd.Flags().StringVar(&output, "output", "", "Output file (default: stdout)")
    return cmd
}
