package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/devgenius/artifact-gateway/internal/auth"
)

const keyPrefix = "dg_"

func main() {
	description := flag.String("description", "Generated key", "description stored next to the hash")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: keygen [-description text] [api-key]")
		fmt.Fprintln(os.Stderr, "Hashes the given API key, or a freshly generated one, for use in config.yaml")
		flag.PrintDefaults()
	}
	flag.Parse()

	apiKey := flag.Arg(0)
	if apiKey == "" {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
			os.Exit(1)
		}
		apiKey = keyPrefix + hex.EncodeToString(buf)
	}
	keyHash := auth.HashAPIKey(apiKey)

	fmt.Printf("API Key: %s\n", apiKey)
	fmt.Printf("SHA-256 Hash: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("auth:\n")
	fmt.Printf("  api_keys:\n")
	fmt.Printf("    - key_hash: %q\n", keyHash)
	fmt.Printf("      description: %q\n", *description)
}
