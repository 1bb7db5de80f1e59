// Package client embeds the browser runtime of the live form wizard.
package client

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed src/*.js
var assets embed.FS

// ScriptName is the file name of the live client.
const ScriptName = "formwizard.js"

// Assets returns the embedded filesystem containing JavaScript files.
func Assets() fs.FS {
	fsys, err := fs.Sub(assets, "src")
	if err != nil {
		panic(err)
	}
	return fsys
}

// Handler serves the embedded assets.
func Handler() http.Handler {
	return http.FileServer(http.FS(Assets()))
}

// Script returns the live client source.
func Script() []byte {
	data, err := assets.ReadFile("src/" + ScriptName)
	if err != nil {
		panic(err)
	}
	return data
}
