// Package websocket streams a browser client's auth state over a gorilla
// websocket so open pages can follow sign-in and sign-out without polling.
package websocket
