package server

import "embed"

//go:embed templates/* static/*
var embeddedFS embed.FS
