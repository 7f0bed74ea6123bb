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
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

/*
WebsocketConnection is a single websocket connection between the database
and an API client. Gorilla websockets support one concurrent reader and
one concurrent writer so reads and writes are serialized separately.
See: https://godoc.org/github.com/gorilla/websocket#hdr-Concurrency
*/
type WebsocketConnection struct {
	CommID string
	Conn   *websocket.Conn

	rmutex sync.Mutex
	wmutex sync.Mutex
}

/*
NewWebsocketConnection creates a new WebsocketConnection object.
*/
func NewWebsocketConnection(commID string, c *websocket.Conn) *WebsocketConnection {
	return &WebsocketConnection{CommID: commID, Conn: c}
}

/*
Init sends the initial handshake message over the websocket connection.
*/
func (wc *WebsocketConnection) Init() {
	wc.wmutex.Lock()
	defer wc.wmutex.Unlock()

	wc.Conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"init_success","payload":{}}`))
}

/*
ReadData reads the next JSON object from the websocket connection. The
second return value indicates if a returned error is fatal for the
connection (read errors are, decode errors are not).
*/
func (wc *WebsocketConnection) ReadData() (map[string]interface{}, bool, error) {
	var data map[string]interface{}

	wc.rmutex.Lock()
	_, msg, err := wc.Conn.ReadMessage()
	wc.rmutex.Unlock()

	if err != nil {
		return data, true, err
	}

	err = json.Unmarshal(msg, &data)

	return data, false, err
}

/*
WriteData writes a data message to the websocket.
*/
func (wc *WebsocketConnection) WriteData(data map[string]interface{}) {
	wc.wmutex.Lock()
	defer wc.wmutex.Unlock()

	jsonData, _ := json.Marshal(map[string]interface{}{
		"commID":  wc.CommID,
		"type":    "data",
		"payload": data,
	})

	wc.Conn.WriteMessage(websocket.TextMessage, jsonData)
}

/*
Close sends a close message and shuts down the websocket connection.
*/
func (wc *WebsocketConnection) Close(msg string) {
	wc.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(
			websocket.CloseNormalClosure, msg), time.Now().Add(10*time.Second))

	wc.Conn.Close()
}
