package pubfront

import "embed"

// EmbeddedAssets contains static assets shipped with the front-end:
// styles.css
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
