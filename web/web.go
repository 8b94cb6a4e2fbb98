// Package web holds the embedded browser assets.
package web

import _ "embed"

//go:embed chat.html
var ChatPage []byte
