// Package logger re-exports the shared goLogger package so internal code
// imports one local path.
package logger

import (
	pkglogger "github.com/Bparsons0904/goLogger"
)

type Logger = pkglogger.Logger

var New = pkglogger.New
