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
Package server contains the code for the WeaveDB server.
*/
package server

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"devt.de/krotik/common/cryptutil"
	"devt.de/krotik/common/fileutil"
	"devt.de/krotik/common/httputil"
	"devt.de/krotik/common/lockutil"
	"github.com/krotik/weavedb/api"
	v1 "github.com/krotik/weavedb/api/v1"
	"github.com/krotik/weavedb/config"
	"github.com/krotik/weavedb/ecal"
	"github.com/krotik/weavedb/graph"
	"github.com/krotik/weavedb/graph/schema"
	"github.com/krotik/weavedb/graph/storage"
)

/*
Using custom consolelogger type so we can test log.Fatal calls with unit tests. Overwrite
these if the server should not call os.Exit on a fatal error.
*/
type consolelogger func(v ...interface{})

var fatal = consolelogger(log.Fatal)
var print = consolelogger(log.Print)

/*
Base path for all files (used by unit tests)
*/
var basepath = ""

/*
defaultSchemaFile is an empty schema declaration. It is used as the
default schema file if no schema file exists.
*/
const defaultSchemaFile = `{
    "node_kinds" : [],
    "edge_kinds" : []
}
`

/*
StartServer runs the WeaveDB server. The server uses config.Config for all its
configuration parameters.
*/
func StartServer() {
	StartServerWithSingleOp(nil)
}

/*
StartServerWithSingleOp runs the WeaveDB server. If the singleOperation function is
not nil then the server executes the function and exists if the function returns true.
*/
func StartServerWithSingleOp(singleOperation func(*graph.Manager) bool) {
	var err error

	print(fmt.Sprintf("WeaveDB %v", config.ProductVersion))

	// Ensure we have a configuration - use the default configuration if nothing was set

	if config.Config == nil {
		config.LoadDefaultConfig()
	}

	// Load the schema - write a default schema file if nothing is there yet

	schemaFile := filepath.Join(basepath, config.Str(config.LocationSchema))

	if ok, _ := fileutil.PathExists(schemaFile); !ok {

		print("Writing default schema file: ", schemaFile)

		if err = ioutil.WriteFile(schemaFile, []byte(defaultSchemaFile), 0600); err != nil {
			fatal("Failed to write default schema file:", err)
			return
		}
	}

	print("Loading schema from: ", schemaFile)

	var src []byte
	var snap *schema.Snapshot

	if src, err = ioutil.ReadFile(schemaFile); err == nil {
		snap, err = schema.FromJSON(src)
	}

	if err != nil {
		fatal("Failed to load schema:", err)
		return
	}

	// Create the graph manager on a memory store

	print("Creating GraphManager instance")

	name := config.Str(config.GraphName)

	gm := graph.NewManager(name, storage.NewMemoryStore(name), snap)

	gm.MaxTraversalDepth = int(config.Int(config.MaxTraversalDepth))
	gm.MaxRuleDepth = int(config.Int(config.MaxRuleTriggerDepth))
	gm.MaxActions = int(config.Int(config.MaxTransactionActions))

	api.GM = gm

	defer func() {
		os.RemoveAll(filepath.Join(basepath, config.Str(config.LockFile)))
	}()

	// Handle single operation - these are operations which work on the GraphManager
	// and then exit.

	if singleOperation != nil && singleOperation(api.GM) {
		return
	}

	// Setting other API parameters

	api.APIHost = config.Str(config.HTTPSHost) + ":" + config.Str(config.HTTPSPort)
	v1.ResultCacheMaxSize = uint64(config.Int(config.ResultCacheMaxSize))
	v1.ResultCacheMaxAge = config.Int(config.ResultCacheMaxAgeSeconds)

	// Check if HTTPS key and certificate are in place

	keyPath := filepath.Join(basepath, config.Str(config.LocationHTTPS), config.Str(config.HTTPSKey))
	certPath := filepath.Join(basepath, config.Str(config.LocationHTTPS), config.Str(config.HTTPSCertificate))

	keyExists, _ := fileutil.PathExists(keyPath)
	certExists, _ := fileutil.PathExists(certPath)

	if !keyExists || !certExists {

		// Ensure path for ssl files exists

		ensurePath(filepath.Join(basepath, config.Str(config.LocationHTTPS)))

		print("Creating key (", config.Str(config.HTTPSKey), ") and certificate (",
			config.Str(config.HTTPSCertificate), ") in: ", config.Str(config.LocationHTTPS))

		// Generate a certificate and private key

		err = cryptutil.GenCert(filepath.Join(basepath, config.Str(config.LocationHTTPS)),
			config.Str(config.HTTPSCertificate), config.Str(config.HTTPSKey),
			"localhost", "", 365*24*time.Hour, false, 4096, "")

		if err != nil {
			fatal("Failed to generate ssl key and certificate:", err)
			return
		}
	}

	// Start the ECAL scripting interpreter

	if config.Bool(config.EnableScripting) {

		scriptFolder := filepath.Join(basepath, config.Str(config.LocationScripts))

		print("Loading ECAL scripts in: ", scriptFolder)

		ensurePath(scriptFolder)

		si := ecal.NewScriptingInterpreter(scriptFolder, gm)

		if err = si.Run(); err != nil {
			fatal("Failed to start ECAL scripting interpreter:", err)
			return
		}

		api.SI = si
	}

	// Register REST endpoints

	api.RegisterRestEndpoints(api.GeneralEndpointMap)
	api.RegisterRestEndpoints(v1.V1EndpointMap)

	// Start HTTPS server and enable REST API

	hs := &httputil.HTTPServer{}

	var wg sync.WaitGroup
	wg.Add(1)

	port := config.Str(config.HTTPSPort)

	print("Starting server on: ", api.APIHost)

	go hs.RunHTTPSServer(basepath+config.Str(config.LocationHTTPS), config.Str(config.HTTPSCertificate),
		config.Str(config.HTTPSKey), ":"+port, &wg)

	// Wait until the server has started

	wg.Wait()

	// HTTPS Server has started

	if hs.LastError != nil {
		fatal(hs.LastError)
		return
	}

	// Create a lockfile so the server can be shut down

	lf := lockutil.NewLockFile(basepath+config.Str(config.LockFile), time.Duration(2)*time.Second)

	lf.Start()

	go func() {

		// Check if the lockfile watcher is running and
		// call shutdown once it has finished

		for lf.WatcherRunning() {
			time.Sleep(time.Duration(1) * time.Second)
		}

		print("Lockfile was modified")

		hs.Shutdown()
	}()

	// Add to the wait group so we can wait for the shutdown

	wg.Add(1)

	print("Waiting for shutdown")
	wg.Wait()

	print("Shutting down")
}

/*
ensurePath ensures that a given relative path exists.
*/
func ensurePath(path string) {
	if res, _ := fileutil.PathExists(path); !res {
		if err := os.Mkdir(path, 0770); err != nil {
			fatal("Could not create directory:", err.Error())
			return
		}
	}
}
