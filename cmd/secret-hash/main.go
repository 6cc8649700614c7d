// Package main prints the bcrypt hash of a worker secret, suitable for
// JOBTRAIL_BATCH_WORKER_SECRET on the server. The worker itself keeps the
// plain secret.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/phrazzld/jobtrail-api/internal/service/auth"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	secret := flag.Arg(0)
	if secret == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "usage: secret-hash [-cost N] <secret> (or pipe the secret on stdin)")
			os.Exit(2)
		}
		secret = strings.TrimSpace(line)
	}
	if secret == "" {
		fmt.Fprintln(os.Stderr, "secret cannot be empty")
		os.Exit(2)
	}

	hash, err := auth.HashSecret(secret, *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing secret: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
