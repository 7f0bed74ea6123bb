/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package v1

import (
	"bytes"
	"encoding/json"
	"flag"
	"io/ioutil"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/httputil"
	"github.com/krotik/weavedb/api"
	"github.com/krotik/weavedb/graph"
	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/graph/schema"
	"github.com/krotik/weavedb/graph/storage"
)

const TESTPORT = ":9091"

/*
Ids of the seeded test entities.
*/
var (
	task1ID  uint64
	task2ID  uint64
	event1ID uint64
	causesID uint64
	notesID  uint64
)

/*
TestMain sets up a populated GraphManager and a running server for
all endpoint tests of this package.
*/
func TestMain(m *testing.M) {
	flag.Parse()

	snap, err := schema.NewSnapshot([]schema.NodeKindDef{
		{
			Name:     "item",
			Abstract: true,
			Attrs: []schema.AttrDef{
				{Name: "title", Type: data.TypeString},
			},
		},
		{
			Name:    "task",
			Parents: []string{"item"},
			Attrs: []schema.AttrDef{
				{Name: "title", Type: data.TypeString, Required: true},
				{Name: "effort", Type: data.TypeInt},
				{Name: "created_at", Type: data.TypeTime},
				{Name: "owner", Type: data.TypeString},
			},
		},
		{
			Name:    "event",
			Parents: []string{"item"},
			Attrs: []schema.AttrDef{
				{Name: "timestamp", Type: data.TypeTime},
			},
		},
	}, []schema.EdgeKindDef{
		{
			Name: "causes",
			Targets: []schema.TargetDef{
				{Kinds: []string{"item"}},
				{Kinds: []string{"item"}},
			},
			Attrs: []schema.AttrDef{
				{Name: "weight", Type: data.TypeInt},
			},
		},
		{
			Name: "notes",
			Targets: []schema.TargetDef{
				{EdgeKind: "causes"},
			},
			Attrs: []schema.AttrDef{
				{Name: "text", Type: data.TypeString},
			},
		},
	})
	errorutil.AssertOk(err)

	api.GM = graph.NewManager("main", storage.NewMemoryStore("main"), snap)

	// Seed some entities

	trans := api.GM.Begin()

	task1ID, err = trans.Spawn("task", map[string]data.Value{
		"title":  data.StringValue("fix roof"),
		"effort": data.IntValue(3),
		"owner":  data.StringValue("fred"),
	})
	errorutil.AssertOk(err)

	task2ID, err = trans.Spawn("task", map[string]data.Value{
		"title":  data.StringValue("clear gutters"),
		"effort": data.IntValue(1),
		"owner":  data.StringValue("hans"),
	})
	errorutil.AssertOk(err)

	event1ID, err = trans.Spawn("event", map[string]data.Value{
		"title":     data.StringValue("storm"),
		"timestamp": data.TimeValue(1577836800000),
	})
	errorutil.AssertOk(err)

	causesID, err = trans.Link("causes", []uint64{event1ID, task1ID}, map[string]data.Value{
		"weight": data.IntValue(2),
	})
	errorutil.AssertOk(err)

	notesID, err = trans.Link("notes", []uint64{causesID}, map[string]data.Value{
		"text": data.StringValue("storm damage"),
	})
	errorutil.AssertOk(err)

	errorutil.AssertOk(trans.Commit())

	hs, wg := startServer()
	if hs == nil {
		return
	}

	api.RegisterRestEndpoints(V1EndpointMap)
	api.RegisterRestEndpoints(api.GeneralEndpointMap)

	// Run the tests

	res := m.Run()

	stopServer(hs, wg)

	os.Exit(res)
}

/*
Send a request to a HTTP test server
*/
func sendTestRequest(url string, method string, content []byte) string {
	body, _ := sendTestRequestResponse(url, method, content)
	return body
}

/*
Send a request to a HTTP test server
*/
func sendTestRequestResponse(url string, method string, content []byte) (string, *http.Response) {
	var req *http.Request
	var err error

	if content != nil {
		req, err = http.NewRequest(method, url, bytes.NewBuffer(content))
	} else {
		req, err = http.NewRequest(method, url, nil)
	}

	if err != nil {
		panic(err)
	}

	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	body, _ := ioutil.ReadAll(resp.Body)
	bodyStr := strings.Trim(string(body), " \n")

	// Try json decoding first

	out := bytes.Buffer{}
	err = json.Indent(&out, []byte(bodyStr), "", "  ")
	if err == nil {
		return out.String(), resp
	}

	// Just return the body

	return bodyStr, resp
}

/*
Start a HTTP test server.
*/
func startServer() (*httputil.HTTPServer, *sync.WaitGroup) {
	hs := &httputil.HTTPServer{}

	var wg sync.WaitGroup
	wg.Add(1)

	go hs.RunHTTPServer(TESTPORT, &wg)

	wg.Wait()

	// Server is started

	if hs.LastError != nil {
		panic(hs.LastError)
	}

	return hs, &wg
}

/*
Stop a started HTTP test server.
*/
func stopServer(hs *httputil.HTTPServer, wg *sync.WaitGroup) {

	if hs.Running == true {

		wg.Add(1)

		// Server is shut down

		hs.Shutdown()

		wg.Wait()

	} else {

		panic("Server was not running as expected")
	}
}
