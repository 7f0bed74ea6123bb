/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
WeaveDB is a reactive graph database which stores its data as a
self-describing higher-order hypergraph.

Features:

- Data is stored in typed nodes (attribute-value objects) which are connected
via typed hyperedges. Edges can target other edges.

- A declarative schema describes all node and edge kinds. Kind inheritance
with multiple parents is supported.

- All mutations run through transactions with rule evaluation and constraint
checking. Deleting a node cascades along all edges targeting it.

- Declarative rules react to mutations and derive further mutations within
the same transaction.

- Constraints are checked immediately or at commit time and can be hard
(abort) or soft (warning).

- The database can be embedded or used as a standalone application.

- When used as a standalone application it comes with an internal HTTPS
webserver which provides a REST API and ECAL scripting support.
*/
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/krotik/weavedb/config"
	"github.com/krotik/weavedb/graph"
	"github.com/krotik/weavedb/server"
)

func main() {

	// Initialize the default command line parser

	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)

	// Define default usage message

	flag.Usage = func() {

		// Print usage for tool selection

		fmt.Println(fmt.Sprintf("Usage of %s <tool>", os.Args[0]))
		fmt.Println()
		fmt.Println("WeaveDB reactive graph database")
		fmt.Println()
		fmt.Println("Available commands:")
		fmt.Println()
		fmt.Println("    server    Start WeaveDB server")
		fmt.Println()
		fmt.Println(fmt.Sprintf("Use %s <command> -help for more information about a given command.", os.Args[0]))
		fmt.Println()
	}

	// Parse the command bit

	err := flag.CommandLine.Parse(os.Args[1:])

	if len(flag.Args()) > 0 {

		arg := flag.Args()[0]

		if arg == "server" {
			config.LoadConfigFile(config.DefaultConfigFile)
			server.StartServerWithSingleOp(handleServerCommandLine)
		} else {
			flag.Usage()
		}

	} else if err == nil {

		flag.Usage()
	}
}

/*
handleServerCommandLine handles all command line options for the server
*/
func handleServerCommandLine(gm *graph.Manager) bool {

	noServ := flag.Bool("no-serv", false, "Do not start the server after initialization")

	showHelp := flag.Bool("help", false, "Show this help message")

	flag.Usage = func() {
		fmt.Println()
		fmt.Println(fmt.Sprintf("Usage of %s server [options]", os.Args[0]))
		fmt.Println()
		flag.PrintDefaults()
		fmt.Println()
	}

	flag.CommandLine.Parse(os.Args[2:])

	if *showHelp {
		flag.Usage()
		return true
	}

	return *noServ
}
