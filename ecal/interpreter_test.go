/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package ecal

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/fileutil"
	"github.com/krotik/weavedb/config"
	"github.com/krotik/weavedb/graph"
	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/graph/schema"
	"github.com/krotik/weavedb/graph/storage"
)

const testScriptDir = "testscripts"

func TestMain(m *testing.M) {
	flag.Parse()

	defer func() {
		if res, _ := fileutil.PathExists(testScriptDir); res {
			if err := os.RemoveAll(testScriptDir); err != nil {
				fmt.Print("Could not remove test directory:", err.Error())
			}
		}
	}()

	if res, _ := fileutil.PathExists(testScriptDir); res {
		if err := os.RemoveAll(testScriptDir); err != nil {
			fmt.Print("Could not remove test directory:", err.Error())
		}
	}

	ensurePath(testScriptDir)

	data := make(map[string]interface{})
	for k, v := range config.DefaultConfig {
		data[k] = v
	}

	config.Config = data

	config.Config[config.EnableScripting] = true
	config.Config[config.LocationScripts] = testScriptDir
	config.Config[config.ECALLogFile] = filepath.Join(testScriptDir, "interpreter.log")

	// Run the tests

	m.Run()
}

/*
ensurePath ensures that a given relative path exists.
*/
func ensurePath(path string) {
	if res, _ := fileutil.PathExists(path); !res {
		if err := os.Mkdir(path, 0770); err != nil {
			fmt.Print("Could not create directory:", err.Error())
			return
		}
	}
}

func writeScript(content string) {
	filename := filepath.Join(testScriptDir, config.Str(config.ECALEntryScript))
	err := ioutil.WriteFile(
		filename,
		[]byte(content), 0600)
	errorutil.AssertOk(err)
	os.Remove(config.Str(config.ECALLogFile))
}

func checkLog(expected string) error {
	var err error

	content, err := ioutil.ReadFile(config.Str(config.ECALLogFile))
	errorutil.AssertOk(err)

	logtext := string(content)

	if logtext != expected {
		err = fmt.Errorf("Unexpected log text:\n%v", logtext)
	}

	return err
}

/*
scriptGraphManager builds a GraphManager for the interpreter tests.
*/
func scriptGraphManager() *graph.Manager {
	snap, err := schema.NewSnapshot([]schema.NodeKindDef{
		{
			Name: "task",
			Attrs: []schema.AttrDef{
				{Name: "title", Type: data.TypeString, Required: true},
				{Name: "effort", Type: data.TypeInt},
			},
		},
	}, []schema.EdgeKindDef{
		{
			Name: "causes",
			Targets: []schema.TargetDef{
				{Kinds: []string{"task"}},
				{Kinds: []string{"task"}},
			},
			Attrs: []schema.AttrDef{
				{Name: "weight", Type: data.TypeInt},
			},
		},
	})
	errorutil.AssertOk(err)

	return graph.NewManager("main", storage.NewMemoryStore("main"), snap)
}

func TestDebugInterpreter(t *testing.T) {

	config.Config[config.EnableECALDebugServer] = true
	defer func() {
		config.Config[config.EnableECALDebugServer] = false
		errorutil.AssertOk(os.Remove(config.Str(config.ECALLogFile)))

	}()

	gm := scriptGraphManager()

	ds := NewScriptingInterpreter(testScriptDir, gm)

	filename := filepath.Join(testScriptDir, config.Str(config.ECALEntryScript))
	os.Remove(filename)

	if err := ds.Run(); err != nil {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestInterpreter(t *testing.T) {

	gm := scriptGraphManager()

	ds := NewScriptingInterpreter(testScriptDir, gm)

	// Test normal log output

	writeScript(`
log("test insert")
`)

	if err := ds.Run(); err != nil {
		t.Error("Unexpected result:", err)
		return
	}

	if err := checkLog(`test insert
`); err != nil {
		t.Error(err)
	}

	// Test stack trace

	writeScript(`
raise("some error")
`)

	if err := ds.Run(); err == nil || err.Error() != `ECAL error in weavedb-runtime (testscripts/main.ecal): some error () (Line:2 Pos:1)
  raise("some error") (testscripts/main.ecal:2)` {
		t.Error("Unexpected result:", err)
		return
	}

	// Test db functions

	writeScript(`
t := db.newTrans()
id1 := db.spawn("task", { "title" : "fix roof", "effort" : 3 }, t)
id2 := db.spawn("task", { "title" : "clear gutters" }, t)
db.link("causes", [ id1, id2 ], { "weight" : 1 }, t)
db.commit(t)

log("node: ", db.fetchNode(id1))
log("result: ", db.query({ "vars" : [ { "name" : "t", "kind" : "task" } ] }))
`)

	// The mutations run before the eventbridge is registered so no
	// events reach ECAL here

	if err := ds.Run(); err != nil {
		t.Error("Unexpected result:", err)
		return
	}

	if err := checkLog(`node: {
  "attrs": {
    "effort": 3,
    "title": "fix roof"
  },
  "id": 1,
  "kind": "task"
}
result: {
  "rows": [
    [
      1
    ],
    [
      2
    ]
  ],
  "vars": [
    "t"
  ]
}
`); err != nil {
		t.Error(err)
	}
}

func TestEvents(t *testing.T) {
	gm := scriptGraphManager()

	ds := NewScriptingInterpreter(testScriptDir, gm)

	writeScript(`
sink mysink
  kindmatch [ "db.node.created" ],
{
  log("Got event: ", event.kind, " title: ", event.state.node.attrs.title)
}
`)

	if err := ds.Run(); err != nil {
		t.Error("Unexpected result:", err)
		return
	}

	// A commit now notifies the sink via the eventbridge

	trans := gm.Begin()

	if _, err := trans.Spawn("task", map[string]data.Value{
		"title": data.StringValue("fix roof"),
	}); err != nil {
		t.Error(err)
		return
	}

	if err := trans.Commit(); err != nil {
		t.Error(err)
		return
	}

	if err := checkLog(`Got event: db.node.created title: fix roof
`); err != nil {
		t.Error(err)
	}

	// Edge events have no matching sink and take the trigger check shortcut

	trans = gm.Begin()

	id, err := trans.Spawn("task", map[string]data.Value{
		"title": data.StringValue("clear gutters"),
	})
	if err != nil {
		t.Error(err)
		return
	}

	if _, err := trans.Link("causes", []uint64{1, id}, nil); err != nil {
		t.Error(err)
		return
	}

	if err := trans.Commit(); err != nil {
		t.Error(err)
		return
	}

	if err := checkLog(`Got event: db.node.created title: fix roof
Got event: db.node.created title: clear gutters
`); err != nil {
		t.Error(err)
	}
}
