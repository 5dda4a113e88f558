package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/noah-isme/quotedesk/internal/auth"
)

// hashpw reads a password from stdin and prints the argon2id hash expected in
// ADMIN_PASSWORD_HASH.
func main() {
	reader := bufio.NewReader(os.Stdin)
	fmt.Fprint(os.Stderr, "password: ")
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintf(os.Stderr, "read password: %v\n", err)
		os.Exit(2)
	}
	hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
