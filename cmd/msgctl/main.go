package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/celerix-dev/celerix-messages/pkg/sdk"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	addr := os.Getenv("MESSAGES_API_ADDR")
	if addr == "" {
		addr = "http://localhost:8000"
	}

	var opts []sdk.Option
	if os.Getenv("MESSAGES_API_INSECURE") == "true" {
		opts = append(opts, sdk.WithInsecureTLS())
	}
	client, err := sdk.New(addr, opts...)
	if err != nil {
		log.Fatalf("Invalid address %s: %v", addr, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	command := strings.ToUpper(os.Args[1])
	args := os.Args[2:]

	switch command {
	case "LIST":
		var q sdk.ListOptions
		if len(args) > 0 {
			q.Type = args[0]
		}
		if len(args) > 1 {
			q.Date = args[1]
		}
		res, err := client.ListMessages(ctx, q)
		if err != nil {
			log.Fatal(err)
		}
		if res.Degraded {
			fmt.Fprintln(os.Stderr, "warning: store unavailable, result is empty")
		}
		printJSON(res.Items)

	case "GET":
		if len(args) < 1 {
			log.Fatal("Usage: msgctl GET <id>")
		}
		msg, err := client.GetMessage(ctx, args[0])
		if err != nil {
			log.Fatal(err)
		}
		printJSON(msg)

	case "CREATE":
		if len(args) < 3 {
			log.Fatal("Usage: msgctl CREATE <date> <type> <message...>")
		}
		msg, err := client.CreateMessage(ctx, sdk.MessageInput{
			Date:    args[0],
			Type:    args[1],
			Message: strings.Join(args[2:], " "),
		})
		if err != nil {
			log.Fatal(err)
		}
		printJSON(msg)

	case "UPDATE":
		if len(args) < 2 {
			log.Fatal("Usage: msgctl UPDATE <id> <field=value>...")
		}
		patch, err := parsePatch(args[1:])
		if err != nil {
			log.Fatal(err)
		}
		msg, err := client.UpdateMessage(ctx, args[0], patch)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(msg)

	case "DEL":
		if len(args) < 1 {
			log.Fatal("Usage: msgctl DEL <id>")
		}
		text, err := client.DeleteMessage(ctx, args[0])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(text)

	case "TYPES":
		list, err := client.ListTypes(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(list)

	case "DATES":
		list, err := client.ListDates(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(list)

	case "SEED":
		rep, err := client.SeedTestData(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(rep)

	case "REPAIR":
		rep, err := client.Repair(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(rep)

	case "DBCONFIG":
		info, err := client.DatabaseInfo(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(info)

	case "PING":
		if err := client.Ping(ctx); err != nil {
			log.Fatal(err)
		}
		fmt.Println("PONG")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// parsePatch reads date=..., message=... and type=... pairs.
func parsePatch(pairs []string) (sdk.MessagePatch, error) {
	var p sdk.MessagePatch
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			return p, fmt.Errorf("expected field=value, got %q", pair)
		}
		v := val
		switch strings.ToLower(key) {
		case "date":
			p.Date = &v
		case "message":
			p.Message = &v
		case "type":
			p.Type = &v
		default:
			return p, fmt.Errorf("unknown field %q", key)
		}
	}
	return p, nil
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func printUsage() {
	fmt.Println("Messages CLI")
	fmt.Println("Usage: msgctl <command> [args]")
	fmt.Println("\nCommands:")
	fmt.Println("  LIST [type] [date]             List messages")
	fmt.Println("  GET <id>                       Get one message")
	fmt.Println("  CREATE <date> <type> <msg...>  Create a message")
	fmt.Println("  UPDATE <id> <field=value>...   Update date, message or type")
	fmt.Println("  DEL <id>                       Delete a message")
	fmt.Println("  TYPES                          List distinct types")
	fmt.Println("  DATES                          List distinct dates")
	fmt.Println("  SEED                           Replace the collection with test data")
	fmt.Println("  REPAIR                         Add lowercase copies of capitalized fields")
	fmt.Println("  DBCONFIG                       Show database information")
	fmt.Println("  PING                           Check the server is up")
	fmt.Println("\nEnvironment:")
	fmt.Println("  MESSAGES_API_ADDR      Server URL (default: http://localhost:8000)")
	fmt.Println("  MESSAGES_API_INSECURE  Accept self-signed certificates when \"true\"")
}
