/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package server

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"devt.de/krotik/common/fileutil"
	"devt.de/krotik/common/httputil"
	"github.com/krotik/weavedb/config"
	"github.com/krotik/weavedb/graph"
)

/*
Flag to enable / disable long running tests.
(Only used for test development - should never be false)
*/
const RunLongRunningTests = true

const testdb = "testdb"

const invalidFileName = "**" + string(rune(0))

var printLog = []string{}
var errorLog = []string{}

var printLogging = false

func TestMain(m *testing.M) {
	flag.Parse()

	basepath = testdb + "/"

	// Log all print and error messages

	print = func(v ...interface{}) {
		if printLogging {
			fmt.Println(v...)
		}
		printLog = append(printLog, fmt.Sprint(v...))
	}
	fatal = func(v ...interface{}) {
		if printLogging {
			fmt.Println(v...)
		}
		errorLog = append(errorLog, fmt.Sprint(v...))
	}

	defer func() {
		fatal = log.Fatal
		basepath = ""
	}()

	if res, _ := fileutil.PathExists(testdb); res {
		if err := os.RemoveAll(testdb); err != nil {
			fmt.Print("Could not remove test directory:", err.Error())
		}
	}

	ensurePath(testdb)

	// Run the tests

	res := m.Run()

	if res, _ := fileutil.PathExists(testdb); res {
		if err := os.RemoveAll(testdb); err != nil {
			fmt.Print("Could not remove test directory:", err.Error())
		}
	}

	os.Exit(res)
}

func TestMainNormalCase(t *testing.T) {

	if !RunLongRunningTests {
		return
	}

	// Make sure to reset the DefaultServeMux

	defer func() { http.DefaultServeMux = http.NewServeMux() }()

	// Reset logs

	printLog = []string{}
	errorLog = []string{}

	errorChan := make(chan error)

	// Load default configuration

	config.LoadDefaultConfig()
	config.Config[config.HTTPSPort] = "9093"

	// Kick off main function

	go func() {
		StartServer()
		errorChan <- nil
	}()

	// To exit the main function the lock watcher thread
	// has to recognise that the lockfile was modified

	shutdown := false

	go func() {
		filename := basepath + config.Str(config.LockFile)

		for !shutdown {

			// Do a normal shutdown with a log file - don't check for errors

			shutdownWithLogFile(filename)

			time.Sleep(time.Duration(200) * time.Millisecond)
		}
	}()

	// Wait for the main function to end

	if err := <-errorChan; err != nil || len(errorLog) != 0 {
		t.Error("Unexpected ending of main thread:", err, errorLog)
		return
	}

	shutdown = true

	// Check the print log

	logString := strings.Join(printLog, "\n")

	if runtime.GOOS == "windows" {

		// Very primitive but good enough

		logString = strings.Replace(logString, "\\", "/", -1)
	}

	if logString != `
WeaveDB `[1:]+config.ProductVersion+`
Writing default schema file: testdb/schema.json
Loading schema from: testdb/schema.json
Creating GraphManager instance
Creating key (key.pem) and certificate (cert.pem) in: ssl
Starting server on: localhost:9093
Waiting for shutdown
Lockfile was modified
Shutting down` {
		t.Error("Unexpected log:", logString)
		return
	}

	config.Config = nil
}

func TestMainScriptingCase(t *testing.T) {

	if !RunLongRunningTests {
		return
	}

	// Make sure to reset the DefaultServeMux

	defer func() { http.DefaultServeMux = http.NewServeMux() }()

	// Reset logs

	printLog = []string{}
	errorLog = []string{}

	errorChan := make(chan error)

	// Load default configuration and enable scripting

	config.LoadDefaultConfig()
	config.Config[config.HTTPSPort] = "9093"
	config.Config[config.EnableScripting] = true

	// Kick off main function

	go func() {
		StartServer()
		errorChan <- nil
	}()

	shutdown := false

	go func() {
		filename := basepath + config.Str(config.LockFile)

		for !shutdown {
			shutdownWithLogFile(filename)
			time.Sleep(time.Duration(200) * time.Millisecond)
		}
	}()

	// Wait for the main function to end

	if err := <-errorChan; err != nil || len(errorLog) != 0 {
		t.Error("Unexpected ending of main thread:", err, errorLog)
		return
	}

	shutdown = true

	// The schema file and ssl files exist from the previous run

	logString := strings.Join(printLog, "\n")

	if runtime.GOOS == "windows" {
		logString = strings.Replace(logString, "\\", "/", -1)
	}

	if logString != `
WeaveDB `[1:]+config.ProductVersion+`
Loading schema from: testdb/schema.json
Creating GraphManager instance
Loading ECAL scripts in: testdb/scripts
Starting server on: localhost:9093
Waiting for shutdown
Lockfile was modified
Shutting down` {
		t.Error("Unexpected log:", logString)
		return
	}

	config.Config = nil
}

func TestMainErrorCases(t *testing.T) {

	if !RunLongRunningTests {
		return
	}

	// Make sure to reset the DefaultServeMux

	defer func() { http.DefaultServeMux = http.NewServeMux() }()

	// Make sure to remove any files

	defer func() {
		if err := os.RemoveAll(testdb); err != nil {
			fmt.Print("Could not remove test directory:", err.Error())
		}
		time.Sleep(time.Duration(100) * time.Millisecond)
		ensurePath(testdb)
	}()

	// Setup config and logs

	data := make(map[string]interface{})
	for k, v := range config.DefaultConfig {
		data[k] = v
	}

	config.Config = data
	config.Config[config.HTTPSPort] = "9093"

	printLog = []string{}
	errorLog = []string{}

	// Test schema write error

	config.Config[config.LocationSchema] = invalidFileName

	StartServer()

	if len(errorLog) != 1 ||
		!strings.Contains(errorLog[0], "Failed to write default schema file") {
		t.Error("Unexpected error:", errorLog)
		return
	}

	// Set back logs

	printLog = []string{}
	errorLog = []string{}

	// Test invalid schema error

	ioutil.WriteFile(basepath+"badschema.json", []byte("{ bad"), 0600)
	config.Config[config.LocationSchema] = "badschema.json"

	StartServer()

	if len(errorLog) != 1 ||
		!strings.Contains(errorLog[0], "Failed to load schema") {
		t.Error("Unexpected error:", errorLog)
		return
	}

	config.Config[config.LocationSchema] = config.DefaultConfig[config.LocationSchema]

	// Set back logs

	printLog = []string{}
	errorLog = []string{}

	// Test failed ssl key generation

	config.Config[config.HTTPSKey] = invalidFileName

	StartServer()

	if len(errorLog) != 1 ||
		!strings.Contains(errorLog[0], "Failed to generate ssl key and certificate") {
		t.Error("Unexpected error:", errorLog)
		return
	}

	config.Config[config.HTTPSKey] = config.DefaultConfig[config.HTTPSKey]

	// Set back logs

	printLog = []string{}
	errorLog = []string{}

	// Test single operation

	SOPExecuted := false

	StartServerWithSingleOp(func(gm *graph.Manager) bool {
		SOPExecuted = true
		return true
	})

	if !SOPExecuted {
		t.Error("Single operation function was not executed")
		return
	}

	// Set back logs

	printLog = []string{}
	errorLog = []string{}

	// Test port which is already taken

	ths := httputil.HTTPServer{}
	go ths.RunHTTPServer(":9093", nil)

	time.Sleep(time.Duration(1) * time.Second)

	StartServer()

	ths.Shutdown()

	time.Sleep(time.Duration(1) * time.Second)

	if ths.Running {
		t.Error("Server should not be running")
		return
	}

	if len(errorLog) != 1 || !strings.Contains(errorLog[0], "listen tcp :9093") {
		t.Error("Unexpected error:", errorLog)
		return
	}

	config.Config = nil
}

func shutdownWithLogFile(filename string) error {

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0660)
	defer file.Close()
	if err != nil {
		fmt.Println(errorLog)
		return err
	}

	_, err = file.Write([]byte("a"))
	if err != nil {
		return err
	}

	return nil
}
