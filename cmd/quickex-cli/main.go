package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"quickex/cmd/internal/passphrase"
	"quickex/crypto"
	"quickex/rpc"
)

const keyPassEnv = "QUICKEX_KEY_PASS"

var (
	rpcEndpoint = defaultRPCEndpoint()
	passSource  = passphrase.NewSource(keyPassEnv, "Enter keystore passphrase: ")

	newClient = func() rpcCaller { return rpc.NewClient(rpcEndpoint, nil) }
	loadKey   = loadKeystoreKey
)

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}
	rest := args[1:]
	switch args[0] {
	case "generate-key":
		return runGenerateKey(rest, stdout, stderr)
	case "commitment":
		return runCommitment(rest, stdout, stderr)
	case "deposit":
		return runDeposit(rest, stdout, stderr)
	case "withdraw":
		return runWithdraw(rest, stdout, stderr)
	case "refund":
		return runRefund(rest, stdout, stderr)
	case "privacy":
		return runPrivacy(rest, stdout, stderr)
	case "details":
		return runDetails(rest, stdout, stderr)
	case "state":
		return runState(rest, stdout, stderr)
	case "balance":
		return runBalance(rest, stdout, stderr)
	case "status":
		return runStatus(rest, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("QUICKEX_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8645/rpc"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func loadKeystoreKey(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("--key is required")
	}
	pass, err := passSource.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.ReadKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("load keystore %s: %w", path, err)
	}
	return key, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: quickex-cli [--rpc URL] <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  generate-key  --out FILE [--force]             create a keystore key")
	fmt.Fprintln(w, "  commitment    --owner --amount [--salt]        compute a commitment locally")
	fmt.Fprintln(w, "  deposit       --key --token --amount [--salt] [--timeout] [--commitment]")
	fmt.Fprintln(w, "  withdraw      --key --amount --salt")
	fmt.Fprintln(w, "  refund        --key --commitment")
	fmt.Fprintln(w, "  privacy       set --key --enabled | get --account")
	fmt.Fprintln(w, "  details       --commitment --caller")
	fmt.Fprintln(w, "  state         --commitment")
	fmt.Fprintln(w, "  balance       --account --token")
	fmt.Fprintln(w, "  status                                         contract pause/admin status")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Keystore passphrases are read from %s or prompted.\n", keyPassEnv)
}
