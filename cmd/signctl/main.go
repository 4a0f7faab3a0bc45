package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/djvang/pdftron-sign-app/cmd/flags"
	"github.com/djvang/pdftron-sign-app/cmd/signcommon"
	"github.com/djvang/pdftron-sign-app/common"
	"github.com/djvang/pdftron-sign-app/config"
	"github.com/djvang/pdftron-sign-app/cryptoutils"
	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/djvang/pdftron-sign-app/metrics"
	"github.com/djvang/pdftron-sign-app/overlay"
	"github.com/djvang/pdftron-sign-app/policy"
	"github.com/djvang/pdftron-sign-app/reconstruct"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

var flagKey = &cli.StringFlag{
	Name:    "key",
	EnvVars: []string{"SIGNCTL_KEY"},
	Usage:   "hex private key of the acting wallet, used for identity and auth proofs",
}

var flagIdentity = &cli.StringFlag{
	Name:  "identity",
	Usage: "acting address or did:pkh when no key is given (password and unencrypted contracts only)",
}

var flagPassword = &cli.StringFlag{
	Name:    "password",
	EnvVars: []string{"SIGNCTL_PASSWORD"},
	Usage:   "contract password for password mode",
}

var flagName = &cli.StringFlag{
	Name:     "name",
	Usage:    "contract name",
	Required: true,
}
var flagMode = &cli.StringFlag{
	Name:  "mode",
	Value: "none",
	Usage: "encryption mode: none, password or access-control",
}
var flagSigners = &cli.StringSliceFlag{
	Name:     "signer",
	Usage:    "signer address; repeat for each signer",
	Required: true,
}
var flagFile = &cli.StringFlag{
	Name:     "file",
	Usage:    "path to the document to sign",
	Required: true,
}
var flagOverlay = &cli.StringFlag{
	Name:  "overlay",
	Usage: "path to an XFDF overlay to start from",
}
var flagFields = &cli.StringSliceFlag{
	Name:  "field",
	Usage: "field to declare as <signer>:<TEXT|SIGNATURE|DATE>; repeat for each field",
}

var flagReview = &cli.BoolFlag{
	Name:  "review",
	Usage: "show every field read-only instead of the signing view",
}
var flagOut = &cli.StringFlag{
	Name:  "out",
	Usage: "write the document to this path",
}
var flagOutOverlay = &cli.StringFlag{
	Name:  "out-overlay",
	Usage: "write the visible XFDF overlay to this path",
}

var flagSet = &cli.StringSliceFlag{
	Name:     "set",
	Usage:    "field value as <field>=<value>; repeat for each field",
	Required: true,
}

func main() {
	app := &cli.App{
		Name:  "signctl",
		Usage: "Create, review and sign contracts",
		Flags: append(append([]cli.Flag{flagKey, flagIdentity, flagPassword}, flags.BackendFlags...), flags.LogFlags...),
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "store a document and record a new contract",
				Flags: []cli.Flag{flagName, flagMode, flagSigners, flagFile, flagOverlay, flagFields},
				Action: func(cCtx *cli.Context) error {
					c, err := setup(cCtx)
					if err != nil {
						return err
					}

					mode, err := interfaces.ParseEncryptionMode(cCtx.String(flagMode.Name))
					if err != nil {
						return err
					}

					var signers []interfaces.Identity
					for _, s := range cCtx.StringSlice(flagSigners.Name) {
						id, err := interfaces.ParseIdentity(s)
						if err != nil {
							return err
						}
						signers = append(signers, id)
					}

					fields, err := parseFields(cCtx.StringSlice(flagFields.Name), time.Now())
					if err != nil {
						return err
					}

					file, err := os.ReadFile(cCtx.String(flagFile.Name))
					if err != nil {
						return err
					}

					var initial string
					if path := cCtx.String(flagOverlay.Name); path != "" {
						data, err := os.ReadFile(path)
						if err != nil {
							return err
						}
						initial = string(data)
					}

					id, err := c.engine.CreateContract(cCtx.Context, reconstruct.CreateRequest{
						Name:      cCtx.String(flagName.Name),
						Mode:      mode,
						Initiator: c.identity,
						Signers:   signers,
						File:      file,
						Overlay:   initial,
						Fields:    fields,
						Keys:      c.keys,
					})
					if err != nil {
						return err
					}
					return printJSON(map[string]string{"id": id})
				},
			},
			{
				Name:  "inbox",
				Usage: "list contracts to sign, waiting on others, and completed",
				Action: func(cCtx *cli.Context) error {
					c, err := setup(cCtx)
					if err != nil {
						return err
					}
					inbox, err := c.engine.Inbox(cCtx.Context, c.identity)
					if err != nil {
						return err
					}
					return printJSON(inbox)
				},
			},
			{
				Name:      "show",
				Usage:     "reconstruct a contract and print its fields",
				ArgsUsage: "<contract-id>",
				Flags:     []cli.Flag{flagReview, flagOut, flagOutOverlay},
				Action: func(cCtx *cli.Context) error {
					c, err := setup(cCtx)
					if err != nil {
						return err
					}

					mode := reconstruct.ViewSigning
					if cCtx.Bool(flagReview.Name) {
						mode = reconstruct.ViewReviewing
					}
					session, err := c.open(cCtx, mode)
					if err != nil {
						return err
					}

					if path := cCtx.String(flagOut.Name); path != "" {
						if err := os.WriteFile(path, session.File(), 0o600); err != nil {
							return err
						}
					}
					if path := cCtx.String(flagOutOverlay.Name); path != "" {
						xfdf, err := session.VisibleOverlay()
						if err != nil {
							return err
						}
						if err := os.WriteFile(path, []byte(xfdf), 0o600); err != nil {
							return err
						}
					}

					return printJSON(sessionSummary(session))
				},
			},
			{
				Name:      "sign",
				Usage:     "fill fields and publish them as a new step",
				ArgsUsage: "<contract-id>",
				Flags:     []cli.Flag{flagSet},
				Action: func(cCtx *cli.Context) error {
					c, err := setup(cCtx)
					if err != nil {
						return err
					}

					session, err := c.open(cCtx, reconstruct.ViewSigning)
					if err != nil {
						return err
					}

					for _, kv := range cCtx.StringSlice(flagSet.Name) {
						name, value, ok := strings.Cut(kv, "=")
						if !ok {
							return fmt.Errorf("invalid --set %q, expected <field>=<value>", kv)
						}
						if err := session.SetField(name, value); err != nil {
							return err
						}
					}

					stepID, err := session.Publish(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(map[string]string{"step": stepID})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type client struct {
	engine   *reconstruct.Engine
	identity interfaces.Identity
	keys     policy.KeyMaterial
}

func setup(cCtx *cli.Context) (*client, error) {
	logger := flags.SetupLogger(cCtx)

	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return nil, err
	}
	if cfg.Ledger.Backend == config.LedgerMemory {
		return nil, errors.New("signctl needs a shared ledger, use --ledger=remote or --ledger=postgres")
	}

	c := &client{keys: policy.KeyMaterial{Password: cCtx.String(flagPassword.Name)}}
	switch {
	case cCtx.String(flagKey.Name) != "":
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cCtx.String(flagKey.Name), "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid key: %w", err)
		}
		proof, err := cryptoutils.SignAuthProof(key, time.Now())
		if err != nil {
			return nil, err
		}
		c.identity = crypto.PubkeyToAddress(key.PublicKey)
		c.keys.AuthProof = &proof
	case cCtx.String(flagIdentity.Name) != "":
		if c.identity, err = interfaces.ParseIdentity(cCtx.String(flagIdentity.Name)); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("either --key or --identity is required")
	}

	l, err := signcommon.SetupLedger(cfg.Ledger, c.keys.AuthProof, logger)
	if err != nil {
		return nil, err
	}
	store, err := signcommon.SetupStore(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	var network interfaces.CustodyNetwork
	if len(cfg.Custody.Nodes) > 0 || cfg.Custody.SRV != "" {
		n, err := signcommon.SetupCustody(cCtx.Context, cfg.Custody, logger)
		if err != nil {
			return nil, err
		}
		network = n
	}

	m, err := metrics.NewSigning(common.PackageName, prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}

	c.engine = signcommon.SetupEngine(l, store, network, m, logger)
	return c, nil
}

func (c *client) open(cCtx *cli.Context, mode reconstruct.ViewMode) (*reconstruct.Session, error) {
	if cCtx.NArg() != 1 {
		return nil, errors.New("expected exactly one contract id")
	}
	return c.engine.Open(cCtx.Context, cCtx.Args().First(), reconstruct.Viewer{
		Identity: c.identity,
		Mode:     mode,
		Keys:     c.keys,
	})
}

// parseFields turns <signer>:<type> specs into field tags. Timestamps are
// spaced a millisecond apart so tags of the same signer and type stay distinct.
func parseFields(defs []string, at time.Time) ([]overlay.FieldTag, error) {
	tags := make([]overlay.FieldTag, 0, len(defs))
	for i, def := range defs {
		signer, typ, ok := strings.Cut(def, ":")
		if !ok {
			return nil, fmt.Errorf("invalid --field %q, expected <signer>:<type>", def)
		}
		id, err := interfaces.ParseIdentity(signer)
		if err != nil {
			return nil, err
		}
		fieldType := overlay.FieldType(strings.ToUpper(typ))
		if !fieldType.Valid() {
			return nil, fmt.Errorf("invalid --field %q: unknown type %q", def, typ)
		}
		tags = append(tags, overlay.FieldTag{
			Signer:    id,
			Type:      fieldType,
			Timestamp: at.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return tags, nil
}

type fieldOutput struct {
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	Type     string `json:"type,omitempty"`
	Owner    string `json:"owner,omitempty"`
	Editable bool   `json:"editable"`
}

type failureOutput struct {
	Index  int    `json:"index"`
	Step   string `json:"step"`
	Signer string `json:"signer"`
	Error  string `json:"error"`
}

type sessionOutput struct {
	Contract   *interfaces.Contract `json:"contract"`
	Fields     []fieldOutput        `json:"fields"`
	Failures   []failureOutput      `json:"failures,omitempty"`
	Collisions []string             `json:"collisions,omitempty"`
}

func sessionSummary(s *reconstruct.Session) sessionOutput {
	out := sessionOutput{Contract: s.Contract()}
	for _, f := range s.Fields() {
		if !f.Visible {
			continue
		}
		fo := fieldOutput{Name: f.Name, Value: f.Value, Type: string(f.Type), Editable: f.Editable}
		if f.Owner != nil {
			fo.Owner = f.Owner.Hex()
		}
		out.Fields = append(out.Fields, fo)
	}
	for _, f := range s.Failures() {
		out.Failures = append(out.Failures, failureOutput{
			Index:  f.Index,
			Step:   f.StepID,
			Signer: f.Signer.Hex(),
			Error:  f.Err.Error(),
		})
	}
	for _, c := range s.Collisions() {
		out.Collisions = append(out.Collisions, c.Error())
	}
	return out
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
