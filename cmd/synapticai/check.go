package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jacobxo0/synapticai-sub001/internal/config"
)

// CheckConfigCmd validates the configuration and prints it with secrets
// masked.
type CheckConfigCmd struct {
	config.Config `embed:""`
}

func (c *CheckConfigCmd) Run() error {
	out := c.Config
	out.AuthJWTSecret = mask(out.AuthJWTSecret)
	out.GeminiAPIKey = mask(out.GeminiAPIKey)
	out.RedisURL = mask(out.RedisURL)
	out.DatabaseURL = mask(out.DatabaseURL)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "configuration OK")
	return nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
