package web

import "embed"

// Templates embeds the document rendering templates.
//
//go:embed templates/documents/*
var Templates embed.FS
