package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mediscan/mediscan-backend/pkg/auth"
	"github.com/mediscan/mediscan-backend/pkg/config"
)

// mediscan-token issues a client token signed with the configured secret.
//
//	mediscan-token --client pharmacy-app --scopes verify,history
func main() {
	var (
		clientID string
		scopes   string
	)
	flag.StringVar(&clientID, "client", "", "Client identifier recorded with each verification")
	flag.StringVar(&scopes, "scopes", auth.ScopeVerify, "Comma separated scopes (verify, history)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --client ID [--scopes verify,history]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(strings.TrimSpace(clientID), scopes); err != nil {
		fmt.Fprintf(os.Stderr, "mediscan-token: %v\n", err)
		os.Exit(1)
	}
}

func run(clientID, scopeList string) error {
	if clientID == "" {
		return fmt.Errorf("--client is required")
	}

	var scopes []string
	for _, s := range strings.Split(scopeList, ",") {
		switch s = strings.TrimSpace(s); s {
		case "":
		case auth.ScopeVerify, auth.ScopeHistory:
			scopes = append(scopes, s)
		default:
			return fmt.Errorf("unknown scope %q", s)
		}
	}

	cfg, err := config.Load("mediscan-token")
	if err != nil {
		return err
	}

	tok, err := auth.NewManager(&cfg.JWT).GenerateToken(clientID, scopes)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tok)
}
