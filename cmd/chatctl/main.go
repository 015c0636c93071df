// Command chatctl is an operator client for a running chat server.
//
//	chatctl health [-service name]
//	chatctl token -user id [-ttl 24h]
//	chatctl connect -user id | -token jwt
//	chatctl inspect [-prefix conv:]
package main

import (
	"fmt"
	"os"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = "usage: chatctl <health|token|connect|inspect> [flags]"

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatctl: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	if len(args) == 0 {
		return exitUsage, fmt.Errorf("%s", usage)
	}
	cfg, err := LoadConfig()
	if err != nil {
		return exitUsage, fmt.Errorf("config error: %w", err)
	}
	out := newPrinter(os.Stdout, cfg.Colours)

	var cmdErr error
	switch args[0] {
	case "health":
		cmdErr = health(cfg, out, args[1:])
	case "token":
		cmdErr = token(cfg, out, args[1:])
	case "connect":
		cmdErr = connect(cfg, out, os.Stdin, args[1:])
	case "inspect":
		cmdErr = inspect(cfg, os.Stdout, args[1:])
	default:
		return exitUsage, fmt.Errorf("unknown command %q, %s", args[0], usage)
	}
	if cmdErr != nil {
		return exitError, cmdErr
	}
	return exitOK, nil
}
