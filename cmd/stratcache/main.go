// Command stratcache inspects and edits the cache the host environment is
// configured for. It reads the same STRATCACHE_* variables (and .env file)
// a service would, bootstraps the same strategy and runs one operation.
//
//	stratcache status
//	stratcache set [-ttl 10m] <key> <value>
//	stratcache get [-decode json|msgpack|cbor] <key>
//	stratcache exists <key>
//	stratcache expire [-ttl 10m] <key>
//	stratcache rm <key>
//	stratcache clear
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/unkn0wn-root/stratcache"
	"github.com/unkn0wn-root/stratcache/codec"
	"github.com/unkn0wn-root/stratcache/config"
	zaplog "github.com/unkn0wn-root/stratcache/log/zap"
	"github.com/unkn0wn-root/stratcache/provider/memory"
)

var errUsage = errors.New("usage: stratcache [-env file] <status|get|set|exists|expire|rm|clear> [-ttl d] [key] [value]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("stratcache", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	envFile := global.String("env", ".env", "dotenv file to load before reading the environment")
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if global.NArg() == 0 {
		return errUsage
	}
	// A missing .env is normal outside development.
	_ = godotenv.Load(*envFile)

	settings := config.Load()
	logger, err := zaplog.New(settings.LogLevel)
	if err != nil {
		return err
	}
	defer logger.L.Sync() //nolint:errcheck

	sel := stratcache.NewSelector(
		stratcache.WithLogger(logger),
		stratcache.WithRegistry(stratcache.NewRegistry(stratcache.WithMemoryConfig(memoryConfig(settings)))),
	)
	defer sel.Close(context.Background())

	id, err := sel.Bootstrap(settings)
	if err != nil {
		return err
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	ttl := fs.Duration("ttl", 0, "entry lifetime; 0 means no expiry")
	decode := fs.String("decode", "", "print a value written by a typed codec (json, msgpack, cbor) as JSON")
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	st := sel.Current()

	switch cmd {
	case "status":
		fmt.Fprintf(out, "strategy=%s namespace=%s\n", id, sel.Namespace().Resolve())
		return nil
	case "clear":
		return st.ClearNamespace(ctx)
	}

	if fs.NArg() < 1 {
		return errUsage
	}
	key := fs.Arg(0)
	switch cmd {
	case "get":
		v, ok, err := st.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%q: not found", key)
		}
		if *decode == "" {
			fmt.Fprintf(out, "%s\n", v)
			return nil
		}
		return printDocument(out, *decode, v)
	case "set":
		if fs.NArg() != 2 {
			return errUsage
		}
		return st.Set(ctx, key, []byte(fs.Arg(1)), *ttl)
	case "exists":
		ok, err := st.Exists(ctx, key)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ok)
	case "expire":
		ok, err := st.Expire(ctx, key, *ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ok)
	case "rm":
		ok, err := st.Remove(ctx, key)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ok)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	return nil
}

func memoryConfig(s config.Settings) memory.Config {
	return memory.Config{SweepInterval: s.MemorySweep}
}

func printDocument(out io.Writer, format string, raw []byte) error {
	doc, err := codec.Document(format)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	v, err := doc.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode %s: %w", format, err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", b)
	return nil
}
