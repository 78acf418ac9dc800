package main

import (
	"fmt"
	"os"

	"trust_gateway/internal/auth"
)

// Produces the bcrypt hash of an operator key for the ADMIN_KEY_HASH
// configuration variable.
func main() {
	key := os.Getenv("ADMIN_KEY")
	if key == "" && len(os.Args) > 1 {
		key = os.Args[1]
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "usage: hash-admin-key <key>  (or set ADMIN_KEY)")
		os.Exit(1)
	}
	if len(key) < 16 {
		fmt.Fprintln(os.Stderr, "ERROR: admin key must be at least 16 characters")
		os.Exit(1)
	}

	hash, err := auth.HashAdminKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to hash key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ADMIN_KEY_HASH=%s\n", hash)
}
