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
	"testing"
)

func TestQueryResult(t *testing.T) {
	queryURL := "http://localhost" + TESTPORT + EndpointQuery
	resultURL := "http://localhost" + TESTPORT + EndpointQueryResult

	// Run a query to get a cached result

	_, resp := sendTestRequestResponse(queryURL, "POST", []byte(`
{
	"vars" : [ { "name" : "t", "kind" : "task" } ]
}`))

	rid := resp.Header.Get(HTTPHeaderCacheID)
	if rid == "" {
		t.Error("Unexpected cache id:", rid)
		return
	}

	// Retrieve the result in full

	res, resp := sendTestRequestResponse(resultURL+rid, "GET", nil)

	if res != `
{
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
}`[1:] {
		t.Error("Unexpected response:", res)
		return
	}

	if cl := resp.Header.Get(HTTPHeaderTotalCount); cl != "2" {
		t.Error("Unexpected total count:", cl)
		return
	}

	if cl := resp.Header.Get(HTTPHeaderCacheID); cl != rid {
		t.Error("Unexpected cache id:", cl)
		return
	}

	// Remove the result from the cache

	if res := sendTestRequest(resultURL+rid, "DELETE", nil); res != `"`+rid+`"` {
		t.Error("Unexpected response:", res)
		return
	}

	if res := sendTestRequest(resultURL+rid, "GET", nil); res !=
		"Unknown result ID: "+rid {
		t.Error("Unexpected response:", res)
		return
	}

	// Test error cases

	if res := sendTestRequest(resultURL, "GET", nil); res != "Need a result ID" {
		t.Error("Unexpected response:", res)
		return
	}
}
