// ABOUTME: Admin CLI for agentpay-gateway credential management
// ABOUTME: Provisions agent API keys, lists credentials, and mints session tokens

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/agentpay-gateway/internal/auth"
	"github.com/2389/agentpay-gateway/internal/config"
	"github.com/2389/agentpay-gateway/internal/store"
)

const banner = `
                            _                           _           _
  __ _  __ _  ___ _ __ | |_ _ __   __ _ _   _      __ _  __| |_ __ ___ (_)_ __
 / _' |/ _' |/ _ \ '_ \| __| '_ \ / _' | | | |    / _' |/ _' | '_ ' _ \| | '_ \
| (_| | (_| |  __/ | | | |_| |_) | (_| | |_| |   | (_| | (_| | | | | | | | | | |
 \__,_|\__, |\___|_| |_|\__| .__/ \__,_|\__, |____\__,_|\__,_|_| |_| |_|_|_| |_|
       |___/               |_|          |___/_____|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "create-agent":
		err = cmdCreateAgent(ctx, args)
	case "list-agents":
		err = cmdListAgents(ctx)
	case "deactivate-agent":
		err = cmdDeactivateAgent(ctx, args)
	case "mint-token":
		err = cmdMintToken(ctx, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: agentpay-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  create-agent --agent-id ID --owner-id ID [flags]  Provision an agent credential")
	fmt.Println("      --agent-type TYPE          Agent type (default: custom-bot)")
	fmt.Println("      --capabilities a,b,c       Comma-separated capabilities")
	fmt.Println("      --per-transaction-limit N  Per-transaction spend limit")
	fmt.Println("      --daily-limit N            Daily spend limit")
	fmt.Println("      --monthly-limit N          Monthly spend limit")
	fmt.Println("  list-agents                    List agent credentials")
	fmt.Println("  deactivate-agent <agent-id>    Deactivate an agent credential")
	fmt.Println("  mint-token --api-key KEY       Exchange an API key for a session token")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  AGENTPAY_CONFIG    Path to the gateway config file")
	fmt.Println()
}

// getConfigPath mirrors the gateway binary's config resolution.
func getConfigPath() string {
	if envPath := os.Getenv("AGENTPAY_CONFIG"); envPath != "" {
		return envPath
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = homeDir + "/.config"
	}
	return configDir + "/agentpay/gateway.yaml"
}

// openStore loads config and opens the store plus a matching issuer.
func openStore(_ context.Context) (*config.Config, store.Store, *auth.Issuer, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		JWTSecret:        cfg.Auth.JWTSecret,
		APIKeyHMACSecret: cfg.Auth.APIKeyPepper,
		Issuer:           cfg.Auth.Issuer,
		Audience:         cfg.Auth.Audience,
		TokenTTL:         cfg.Auth.TokenTTL,
		ClockSkew:        cfg.Auth.ClockSkew,
	}, s)
	if err != nil {
		_ = s.Close()
		return nil, nil, nil, fmt.Errorf("initializing issuer: %w", err)
	}

	return cfg, s, issuer, nil
}

// generateAPIKey returns a 256-bit random key in hex with a stable prefix.
func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "apk_" + hex.EncodeToString(buf), nil
}

// createAgentFlags holds parsed create-agent arguments.
type createAgentFlags struct {
	agentID             string
	ownerID             string
	agentType           string
	capabilities        []string
	perTransactionLimit *float64
	dailyLimit          *float64
	monthlyLimit        *float64
}

func parseCreateAgentFlags(args []string) (*createAgentFlags, error) {
	f := &createAgentFlags{agentType: "custom-bot"}

	takeValue := func(i int, name string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", name)
		}
		return args[i+1], nil
	}

	parseLimit := func(raw, name string) (*float64, error) {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%s must be a positive number", name)
		}
		return &v, nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--agent-id":
			v, err := takeValue(i, arg)
			if err != nil {
				return nil, err
			}
			f.agentID = v
			i++
		case "--owner-id":
			v, err := takeValue(i, arg)
			if err != nil {
				return nil, err
			}
			f.ownerID = v
			i++
		case "--agent-type":
			v, err := takeValue(i, arg)
			if err != nil {
				return nil, err
			}
			f.agentType = v
			i++
		case "--capabilities":
			v, err := takeValue(i, arg)
			if err != nil {
				return nil, err
			}
			for _, c := range strings.Split(v, ",") {
				if c = strings.TrimSpace(c); c != "" {
					f.capabilities = append(f.capabilities, c)
				}
			}
			i++
		case "--per-transaction-limit":
			v, err := takeValue(i, arg)
			if err != nil {
				return nil, err
			}
			if f.perTransactionLimit, err = parseLimit(v, arg); err != nil {
				return nil, err
			}
			i++
		case "--daily-limit":
			v, err := takeValue(i, arg)
			if err != nil {
				return nil, err
			}
			if f.dailyLimit, err = parseLimit(v, arg); err != nil {
				return nil, err
			}
			i++
		case "--monthly-limit":
			v, err := takeValue(i, arg)
			if err != nil {
				return nil, err
			}
			if f.monthlyLimit, err = parseLimit(v, arg); err != nil {
				return nil, err
			}
			i++
		default:
			return nil, fmt.Errorf("unknown flag: %s", arg)
		}
	}

	if f.agentID == "" || f.ownerID == "" {
		return nil, fmt.Errorf("--agent-id and --owner-id are required")
	}
	return f, nil
}

func cmdCreateAgent(ctx context.Context, args []string) error {
	flags, err := parseCreateAgentFlags(args)
	if err != nil {
		return err
	}

	_, s, issuer, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.GetAgent(ctx, flags.agentID); err == nil {
		return fmt.Errorf("agent %q already exists", flags.agentID)
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return fmt.Errorf("generating API key: %w", err)
	}

	cred := &store.AgentCredential{
		AgentID:             flags.agentID,
		OwnerID:             flags.ownerID,
		APIKeyHash:          issuer.HashAPIKey(apiKey),
		AgentType:           flags.agentType,
		Active:              true,
		CreatedAt:           time.Now().UTC(),
		DailySpendLimit:     flags.dailyLimit,
		MonthlySpendLimit:   flags.monthlyLimit,
		PerTransactionLimit: flags.perTransactionLimit,
		Capabilities:        flags.capabilities,
	}
	if err := s.SaveAgent(ctx, cred); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Printf("  ✓ Created agent: %s\n", flags.agentID)
	fmt.Println()
	fmt.Printf("  Owner:    %s\n", flags.ownerID)
	fmt.Printf("  Type:     %s\n", flags.agentType)
	if len(flags.capabilities) > 0 {
		fmt.Printf("  Caps:     %s\n", strings.Join(flags.capabilities, ", "))
	}
	fmt.Printf("  API key:  %s\n", apiKey)
	fmt.Println()
	yellow.Println("  The API key is shown once and only its hash is stored.")
	fmt.Println()

	return nil
}

func cmdListAgents(ctx context.Context) error {
	_, s, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	agents, err := s.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("listing agents: %w", err)
	}

	if len(agents) == 0 {
		fmt.Println("No agents provisioned.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT ID\tOWNER\tTYPE\tACTIVE\tLAST USED\tCAPABILITIES")
	for _, a := range agents {
		lastUsed := "never"
		if a.LastUsedAt != nil {
			lastUsed = a.LastUsedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
			a.AgentID, a.OwnerID, a.AgentType, a.Active, lastUsed,
			strings.Join(a.Capabilities, ","))
	}
	return w.Flush()
}

func cmdDeactivateAgent(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: deactivate-agent <agent-id>")
	}

	_, s, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	cred, err := s.GetAgent(ctx, args[0])
	if err != nil {
		return fmt.Errorf("looking up agent: %w", err)
	}

	cred.Active = false
	if err := s.SaveAgent(ctx, cred); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}

	color.New(color.FgGreen).Printf("  ✓ Deactivated agent: %s\n", cred.AgentID)
	return nil
}

func cmdMintToken(ctx context.Context, args []string) error {
	var apiKey string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--api-key":
			if i+1 >= len(args) {
				return fmt.Errorf("--api-key requires a value")
			}
			apiKey = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--api-key="):
			apiKey = strings.TrimPrefix(args[i], "--api-key=")
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	if apiKey == "" {
		return fmt.Errorf("--api-key is required")
	}

	_, s, issuer, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	token, err := issuer.Authenticate(ctx, apiKey)
	if err != nil {
		return fmt.Errorf("authentication failed")
	}

	fmt.Println(token)
	return nil
}
