//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

package engine

import (
	"strings"
)

// Base64 magic prefixes of raw (un-prefixed) image payloads.
const (
	base64JPEGMagic = "/9j/"
	base64PNGMagic  = "iVBOR"
)

// isImageValue reports whether v looks like a usable image reference: an
// http(s) URL, a data:image/ URI, or a bare base64 JPEG/PNG payload.
func isImageValue(v any) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}
	if strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "data:image/") {
		return true
	}
	return strings.HasPrefix(s, base64JPEGMagic) || strings.HasPrefix(s, base64PNGMagic)
}

// isDataURI reports whether v is an embedded data URI.
func isDataURI(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, "data:")
}
