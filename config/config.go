/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config

import (
	"fmt"
	"strconv"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/fileutil"
)

/*
ProductVersion is the current version of WeaveDB
*/
const ProductVersion = "1.0.0"

// Global variables
// ================

/*
DefaultConfigFile is the default config file which will be used to configure WeaveDB
*/
var DefaultConfigFile = "weavedb.config.json"

/*
Known configuration options for WeaveDB
*/
const (
	LocationSchema           = "LocationSchema"
	LocationScripts          = "LocationScripts"
	LocationHTTPS            = "LocationHTTPS"
	HTTPSCertificate         = "HTTPSCertificate"
	HTTPSKey                 = "HTTPSKey"
	LockFile                 = "LockFile"
	HTTPSHost                = "HTTPSHost"
	HTTPSPort                = "HTTPSPort"
	EnableScripting          = "EnableScripting"
	ECALEntryScript          = "ECALEntryScript"
	ECALLogLevel             = "ECALLogLevel"
	ECALLogFile              = "ECALLogFile"
	ECALWorkerCount          = "ECALWorkerCount"
	EnableECALDebugServer    = "EnableECALDebugServer"
	ECALDebugServerHost      = "ECALDebugServerHost"
	ECALDebugServerPort      = "ECALDebugServerPort"
	GraphName                = "GraphName"
	MaxTraversalDepth        = "MaxTraversalDepth"
	MaxRuleTriggerDepth      = "MaxRuleTriggerDepth"
	MaxTransactionActions    = "MaxTransactionActions"
	ResultCacheMaxSize       = "ResultCacheMaxSize"
	ResultCacheMaxAgeSeconds = "ResultCacheMaxAgeSeconds"
)

/*
DefaultConfig is the defaut configuration
*/
var DefaultConfig = map[string]interface{}{
	LocationSchema:           "schema.json",
	LocationScripts:          "scripts",
	LocationHTTPS:            "ssl",
	HTTPSHost:                "localhost",
	HTTPSPort:                "9090",
	HTTPSCertificate:         "cert.pem",
	HTTPSKey:                 "key.pem",
	LockFile:                 "weavedb.lck",
	EnableScripting:          false,
	ECALEntryScript:          "main.ecal",
	ECALLogLevel:             "info",
	ECALLogFile:              "",
	ECALWorkerCount:          1,
	EnableECALDebugServer:    false,
	ECALDebugServerHost:      "localhost",
	ECALDebugServerPort:      "33274",
	GraphName:                "main",
	MaxTraversalDepth:        100.0,
	MaxRuleTriggerDepth:      100.0,
	MaxTransactionActions:    10000.0,
	ResultCacheMaxSize:       0,
	ResultCacheMaxAgeSeconds: 0,
}

/*
Config is the actual config which is used
*/
var Config map[string]interface{}

/*
LoadConfigFile loads a given config file. If the config file does not exist it is
created with the default options.
*/
func LoadConfigFile(configfile string) error {
	var err error

	Config, err = fileutil.LoadConfig(configfile, DefaultConfig)

	return err
}

/*
LoadDefaultConfig loads the default configuration.
*/
func LoadDefaultConfig() {
	data := make(map[string]interface{})
	for k, v := range DefaultConfig {
		data[k] = v
	}

	Config = data
}

// Helper functions
// ================

/*
Str reads a config value as a string value.
*/
func Str(key string) string {
	return fmt.Sprint(Config[key])
}

/*
Int reads a config value as an int value.
*/
func Int(key string) int64 {
	ret, err := strconv.ParseInt(fmt.Sprint(Config[key]), 10, 64)

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Bool reads a config value as a boolean value.
*/
func Bool(key string) bool {
	ret, err := strconv.ParseBool(fmt.Sprint(Config[key]))

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}
