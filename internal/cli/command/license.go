// Package command provides the license commands.
package command

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/usagemesh-go/internal/cli/output"
	"github.com/yndnr/usagemesh-go/internal/license"
	"github.com/yndnr/usagemesh-go/internal/server/httpserver/handler"
)

// defaultLicenseTTL is the validity of an issued key unless --ttl is set.
const defaultLicenseTTL = 365 * 24 * time.Hour

// LicenseCommand returns the license subcommand group.
func LicenseCommand() *cli.Command {
	secretFlag := &cli.StringFlag{
		Name:    "secret",
		Usage:   "License signing secret",
		EnvVars: []string{"USAGEMESH_LICENSE__SECRET"},
	}

	return &cli.Command{
		Name:  "license",
		Usage: "License keys",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the license installed on the connected node",
				Action: licenseShow,
			},
			{
				Name:  "issue",
				Usage: "Sign a new license key",
				Flags: []cli.Flag{
					secretFlag,
					&cli.StringFlag{Name: "subject", Usage: "Licensee", Required: true},
					&cli.StringFlag{Name: "tier", Usage: "License tier", Value: string(license.TierPlatinum)},
					&cli.StringSliceFlag{Name: "feature", Usage: "Explicitly granted feature (repeatable)"},
					&cli.DurationFlag{Name: "ttl", Usage: "Validity period", Value: defaultLicenseTTL},
					&cli.StringFlag{Name: "id", Usage: "License ID (default: generated)"},
					&cli.StringFlag{Name: "issuer", Usage: "Issuer name", Value: "usagemesh"},
					&cli.StringFlag{Name: "out", Usage: "Write the key to this file instead of stdout"},
				},
				Action: licenseIssue,
			},
			{
				Name:      "inspect",
				Usage:     "Decode a license key",
				ArgsUsage: "[KEY]",
				Flags: []cli.Flag{
					secretFlag,
					&cli.StringFlag{Name: "file", Usage: "Read the key from this file"},
				},
				Action: licenseInspect,
			},
		},
	}
}

func licenseShow(c *cli.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	var resp handler.LicenseResponse
	if err := newClient(c).GetJSON(ctx, "/admin/v1/license", &resp); err != nil {
		return err
	}
	return render(c, resp, func(w io.Writer) error {
		return append(summaryRows(resp.Summary),
			output.KeyValue{Key: "Feature", Value: resp.Feature},
			output.KeyValue{Key: "Feature allowed", Value: resp.FeatureAllowed},
		).Table().Render(w)
	})
}

func licenseIssue(c *cli.Context) error {
	secret := c.String("secret")
	if secret == "" {
		return fmt.Errorf("--secret (or USAGEMESH_LICENSE__SECRET) is required")
	}
	tier, err := license.ParseTier(c.String("tier"))
	if err != nil {
		return err
	}
	ttl := c.Duration("ttl")
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}
	id := c.String("id")
	if id == "" {
		id = "lic-" + strings.ToLower(ulid.Make().String())
	}

	now := time.Now()
	key, err := license.Issue(license.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    c.String("issuer"),
			Subject:   c.String("subject"),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Tier:     tier,
		Features: c.StringSlice("feature"),
	}, secret)
	if err != nil {
		return err
	}

	if out := c.String("out"); out != "" {
		if err := os.WriteFile(out, []byte(key+"\n"), 0o600); err != nil {
			return fmt.Errorf("write license file: %w", err)
		}
		printf(c, "License %s written to %s\n", id, out)
		return nil
	}
	printf(c, "%s\n", key)
	return nil
}

func licenseInspect(c *cli.Context) error {
	key := c.Args().First()
	if path := c.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read license file: %w", err)
		}
		key = string(data)
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("license key required: pass KEY or --file")
	}

	var (
		sum      license.Summary
		verified bool
	)
	if secret := c.String("secret"); secret != "" {
		state, err := license.Parse(key, secret)
		if err != nil {
			return err
		}
		sum, verified = state.Summary(), true
	} else {
		var err error
		if sum, err = license.Inspect(key); err != nil {
			return err
		}
	}

	view := struct {
		license.Summary
		Verified bool `json:"verified"`
	}{sum, verified}

	return render(c, view, func(w io.Writer) error {
		return append(summaryRows(sum),
			output.KeyValue{Key: "Verified", Value: verified},
		).Table().Render(w)
	})
}

func summaryRows(sum license.Summary) output.KeyValues {
	return output.KeyValues{
		{Key: "ID", Value: sum.ID},
		{Key: "Issuer", Value: sum.Issuer},
		{Key: "Subject", Value: sum.Subject},
		{Key: "Tier", Value: string(sum.Tier)},
		{Key: "Features", Value: sum.Features},
		{Key: "Issued", Value: sum.IssuedAt},
		{Key: "Expires", Value: sum.ExpiresAt},
		{Key: "Active", Value: sum.Active},
	}
}
