// ddb plans and runs reads against a single-table DynamoDB schema.
//
// # Installation
//
//	go install github.com/acksell/dynaplan/dynamodb/cmd/ddb@latest
//
// # Commands
//
//	ddb plan   Show the request a read compiles to, without sending it
//	ddb find   Run a read and print the items, with relations
//
// # Examples
//
//	ddb plan User --where id=42
//	ddb find User --where id=42 --with posts
//	ddb find Post --where authorId=42 --where 'likes>10' --limit 5 --desc
//
// Settings are read from ddb.yaml, found by walking up from the working
// directory; flags override it.
package main

import (
	"fmt"
	"os"
)

const version = "0.2.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ddb: %v\n", err)
		os.Exit(1)
	}
}
